package barv1

import (
	"math"
	"testing"
	"time"

	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	at := time.Date(2024, 3, 1, 14, 30, 1, 500_000_000, time.FixedZone("EST", -5*3600))

	testCases := []struct {
		name    string
		ticks   []tickv1.Tick
		wantBar *Bar
	}{
		{
			name:    "empty window produces no bar",
			ticks:   nil,
			wantBar: nil,
		},
		{
			name: "single tick",
			ticks: []tickv1.Tick{
				tickv1.NewTradeTick(100, 3),
			},
			wantBar: &Bar{Symbol: "SPY", Timestamp: "2024-03-01T19:30:01.5Z", Open: 100, High: 100, Low: 100, Close: 100, Volume: 3},
		},
		{
			name: "three trades",
			ticks: []tickv1.Tick{
				tickv1.NewTradeTick(100, 1),
				tickv1.NewTradeTick(105, 2),
				tickv1.NewTradeTick(102, 1),
			},
			wantBar: &Bar{Symbol: "SPY", Timestamp: "2024-03-01T19:30:01.5Z", Open: 100, High: 105, Low: 100, Close: 102, Volume: 4},
		},
		{
			name: "fractional sizes sum exactly",
			ticks: []tickv1.Tick{
				tickv1.NewTradeTick(10, 0.1),
				tickv1.NewTradeTick(9, 0.2),
				tickv1.NewQuoteTick(10, 12, 0.3, 0.4),
			},
			wantBar: &Bar{Symbol: "SPY", Timestamp: "2024-03-01T19:30:01.5Z", Open: 10, High: 11, Low: 9, Close: 11, Volume: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w Window
			for _, tick := range tc.ticks {
				w.Add(tick)
			}

			assert.Equal(t, len(tc.ticks) == 0, w.IsEmpty())
			assert.Equal(t, len(tc.ticks), w.Count())
			bar := w.Bar("SPY", at)
			assert.Equal(t, tc.wantBar, bar)
			if bar != nil {
				assert.LessOrEqual(t, bar.Low, bar.Open)
				assert.LessOrEqual(t, bar.Open, bar.High)
				assert.LessOrEqual(t, bar.Low, bar.Close)
				assert.LessOrEqual(t, bar.Close, bar.High)
			}

			w.Reset()
			assert.True(t, w.IsEmpty())
			assert.Nil(t, w.Bar("SPY", at))
		})
	}
}

func TestWindow_ResetStartsFresh(t *testing.T) {
	var w Window
	w.Add(tickv1.NewTradeTick(50, 5))
	w.Reset()
	w.Add(tickv1.NewTradeTick(20, 1))

	bar := w.Bar("SPY", time.Unix(0, 0))
	require.NotNil(t, bar)
	assert.Equal(t, 20.0, bar.Open)
	assert.Equal(t, 20.0, bar.High)
	assert.Equal(t, 1.0, bar.Volume)
}

func TestWindow_RejectsNonFiniteTicks(t *testing.T) {
	testCases := []struct {
		name string
		tick tickv1.Tick
	}{
		{name: "summed quote size overflows", tick: tickv1.NewQuoteTick(1, 1, 1.7e308, 1.7e308)},
		{name: "quote mid price overflows", tick: tickv1.NewQuoteTick(1.7e308, 1.7e308, 1, 1)},
		{name: "nan price", tick: tickv1.NewTradeTick(math.NaN(), 1)},
		{name: "negative infinite size", tick: tickv1.NewTradeTick(10, math.Inf(-1))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w Window
			require.True(t, w.Add(tickv1.NewTradeTick(10, 2)))

			require.NotPanics(t, func() {
				assert.False(t, w.Add(tc.tick))
			})
			assert.Equal(t, 1, w.Count())

			bar := w.Bar("SPY", time.Unix(0, 0))
			require.NotNil(t, bar)
			assert.Equal(t, 10.0, bar.High)
			assert.Equal(t, 2.0, bar.Volume)

			_, err := ToBytes(bar)
			assert.NoError(t, err)
		})
	}
}

func TestBarPayload(t *testing.T) {
	bar := &Bar{Symbol: "SPY", Timestamp: "2024-03-01T19:30:01Z", Open: 100, High: 105, Low: 100, Close: 102, Volume: 4}

	data, err := ToBytes(bar)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"SPY","timestamp":"2024-03-01T19:30:01Z","open":100,"high":105,"low":100,"close":102,"volume":4}`, string(data))

	decoded, err := FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, bar, decoded)

	_, err = FromBytes([]byte("not json"))
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "bars:SPY", Channel("SPY"))
}
