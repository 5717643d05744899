package aggregator

import "time"

// Ticker is the periodic flush signal.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Options represents configuration options for the Aggregator.
type Options struct {
	// Period is the window length.
	Period time.Duration
	// PublishTimeout bounds every publish, including the final flush.
	PublishTimeout time.Duration
	// AlignToWallClock delays the first flush to the next multiple of Period.
	AlignToWallClock bool

	Now       func() time.Time
	NewTicker func(d time.Duration) Ticker
	After     func(d time.Duration) <-chan time.Time
}

// DefaultOptions returns the default aggregator options.
func DefaultOptions() *Options {
	return &Options{
		Period:         time.Second,
		PublishTimeout: 5 * time.Second,
		Now:            time.Now,
		NewTicker:      newTimeTicker,
		After:          time.After,
	}
}

// alignDelay returns how long to wait from now until the next multiple of period.
func alignDelay(now time.Time, period time.Duration) time.Duration {
	elapsed := now.Sub(now.Truncate(period))
	if elapsed == 0 {
		return period
	}
	return period - elapsed
}
