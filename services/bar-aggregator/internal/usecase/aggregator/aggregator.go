package aggregator

import (
	"context"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	barpublisherv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
	queuev1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/queue/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/metrics"
)

// Aggregator folds ticks into fixed-period OHLCV bars and publishes them.
// Run must be called from a single goroutine; it owns the window.
type Aggregator struct {
	symbol    string
	queue     queuev1.Queue
	publisher barpublisherv1.Publisher
	logger    logger.Interface
	metrics   *metrics.Metrics
	options   *Options

	window barv1.Window
}

// NewAggregator creates an Aggregator with DefaultOptions.
func NewAggregator(
	symbol string,
	queue queuev1.Queue,
	publisher barpublisherv1.Publisher,
	logger logger.Interface,
	metrics *metrics.Metrics,
) *Aggregator {
	return NewAggregatorWithOptions(symbol, queue, publisher, logger, metrics, DefaultOptions())
}

// NewAggregatorWithOptions creates an Aggregator with custom options.
// Unset option fields fall back to their defaults.
func NewAggregatorWithOptions(
	symbol string,
	queue queuev1.Queue,
	publisher barpublisherv1.Publisher,
	logger logger.Interface,
	metrics *metrics.Metrics,
	options *Options,
) *Aggregator {
	defaults := DefaultOptions()
	if options == nil {
		options = defaults
	}
	if options.Period <= 0 {
		options.Period = defaults.Period
	}
	if options.PublishTimeout <= 0 {
		options.PublishTimeout = defaults.PublishTimeout
	}
	if options.Now == nil {
		options.Now = defaults.Now
	}
	if options.NewTicker == nil {
		options.NewTicker = defaults.NewTicker
	}
	if options.After == nil {
		options.After = defaults.After
	}

	return &Aggregator{
		symbol:    symbol,
		queue:     queue,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		options:   options,
	}
}

// Run consumes ticks until the queue is closed, flushing a bar every period.
// On queue closure a non-empty window is flushed once more and Run returns nil.
// A publish failure is returned immediately.
func (a *Aggregator) Run(ctx context.Context) error {
	var (
		ticker Ticker
		flushC <-chan time.Time
	)

	if a.options.AlignToWallClock {
		flushC = a.options.After(alignDelay(a.options.Now(), a.options.Period))
	} else {
		ticker = a.options.NewTicker(a.options.Period)
		flushC = ticker.C()
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	a.logger.InfoContext(ctx, "aggregator started",
		logger.Field{Key: "period", Value: a.options.Period.String()},
		logger.Field{Key: "align_to_wall_clock", Value: a.options.AlignToWallClock},
	)

	ticks := a.queue.C()
	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				if err := a.flush(ctx); err != nil {
					return err
				}
				a.logger.InfoContext(ctx, "aggregator stopped: tick queue closed")
				return nil
			}
			if !a.window.Add(tick) {
				a.logger.WarnContext(ctx, "skipping non-finite tick",
					logger.Field{Key: "price", Value: tick.Price},
					logger.Field{Key: "size", Value: tick.Size},
				)
			}
		case <-flushC:
			if ticker == nil {
				ticker = a.options.NewTicker(a.options.Period)
				flushC = ticker.C()
			}
			if err := a.flush(ctx); err != nil {
				return err
			}
		}
	}
}

// flush publishes the current window, if any, and resets it.
// The publish is detached from ctx cancellation so a completed window survives shutdown.
func (a *Aggregator) flush(ctx context.Context) error {
	if a.window.IsEmpty() {
		return nil
	}

	bar := a.window.Bar(a.symbol, a.options.Now())
	count := a.window.Count()
	a.window.Reset()

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.options.PublishTimeout)
	defer cancel()

	start := time.Now()
	if err := a.publisher.Publish(publishCtx, bar); err != nil {
		a.logger.ErrorContext(ctx, errors.TracerFromError(err),
			logger.Field{Key: "action", Value: "publish_bar"},
			logger.Field{Key: "timestamp", Value: bar.Timestamp},
		)
		return err
	}
	a.metrics.BarPublished(time.Since(start).Seconds())

	a.logger.DebugContext(ctx, "bar flushed",
		logger.Field{Key: "timestamp", Value: bar.Timestamp},
		logger.Field{Key: "ticks", Value: count},
		logger.Field{Key: "close", Value: bar.Close},
		logger.Field{Key: "volume", Value: bar.Volume},
	)
	return nil
}
