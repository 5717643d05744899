package barv1

import (
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
	"github.com/shopspring/decimal"
)

// ChannelPrefix is prepended to the symbol to form the publish channel.
const ChannelPrefix = "bars:"

// Bar is one flushed OHLCV window.
type Bar struct {
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Channel returns the pub/sub channel a bar for symbol is published on.
func Channel(symbol string) string {
	return ChannelPrefix + symbol
}

// ToBytes serializes the bar to its JSON payload.
func ToBytes(bar *Bar) ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(bar)
}

// FromBytes parses a JSON payload produced by ToBytes.
func FromBytes(data []byte) (*Bar, error) {
	var bar Bar
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &bar); err != nil {
		return nil, err
	}
	return &bar, nil
}

// Window accumulates ticks between two flushes.
// The zero value is an empty window.
type Window struct {
	open   float64
	high   float64
	low    float64
	close  float64
	volume decimal.Decimal
	count  int
}

// Add folds a tick into the window. A tick with a non-finite price or size
// is rejected and Add returns false.
func (w *Window) Add(tick tickv1.Tick) bool {
	if !isFinite(tick.Price) || !isFinite(tick.Size) {
		return false
	}

	if w.count == 0 {
		w.open = tick.Price
		w.high = tick.Price
		w.low = tick.Price
		w.close = tick.Price
		w.volume = decimal.Zero
	} else {
		w.high = max(w.high, tick.Price)
		w.low = min(w.low, tick.Price)
		w.close = tick.Price
	}

	w.volume = w.volume.Add(decimal.NewFromFloat(tick.Size))
	w.count++
	return true
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// IsEmpty reports whether no tick was added since the last reset.
func (w *Window) IsEmpty() bool {
	return w.count == 0
}

// Count returns the number of ticks in the window.
func (w *Window) Count() int {
	return w.count
}

// Bar builds the bar for the current window stamped with at in UTC.
// It returns nil for an empty window.
func (w *Window) Bar(symbol string, at time.Time) *Bar {
	if w.count == 0 {
		return nil
	}

	return &Bar{
		Symbol:    symbol,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Open:      w.open,
		High:      w.high,
		Low:       w.low,
		Close:     w.close,
		Volume:    w.volume.InexactFloat64(),
	}
}

// Reset empties the window.
func (w *Window) Reset() {
	*w = Window{}
}
