package decoder

import (
	"testing"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		format   decoderv1.Format
		assertFn func(t *testing.T, d decoderv1.Decoder, err error)
	}{
		{
			format: decoderv1.FormatAuto,
			assertFn: func(t *testing.T, d decoderv1.Decoder, err error) {
				require.NoError(t, err)
				assert.IsType(t, &AutoDecoder{}, d)
			},
		},
		{
			format: decoderv1.FormatFlat,
			assertFn: func(t *testing.T, d decoderv1.Decoder, err error) {
				require.NoError(t, err)
				assert.IsType(t, &FlatDecoder{}, d)
			},
		},
		{
			format: decoderv1.FormatEnveloped,
			assertFn: func(t *testing.T, d decoderv1.Decoder, err error) {
				require.NoError(t, err)
				assert.IsType(t, &EnvelopedDecoder{}, d)
			},
		},
		{
			format: "protobuf",
			assertFn: func(t *testing.T, d decoderv1.Decoder, err error) {
				assert.Nil(t, d)
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.ConfigValidationError)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(string(tc.format), func(t *testing.T) {
			d, err := New(tc.format, DefaultOptions("SPY"))
			tc.assertFn(t, d, err)
		})
	}
}

func TestFlatDecoder_Decode(t *testing.T) {
	testCases := []struct {
		name     string
		opts     Options
		frame    string
		assertFn func(t *testing.T, res decoderv1.Result, err error)
	}{
		{
			name:  "trade",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","S":"SPY","p":100.5,"s":10,"t":"2024-03-01T14:30:00Z"}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 100.5, Size: 10, Kind: tickv1.KindTrade}}, res.Ticks)
				assert.Empty(t, res.Anomalies)
				assert.Zero(t, res.Ignored)
			},
		},
		{
			name:  "quote becomes mid price tick",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"q","S":"SPY","bp":10,"ap":12,"bs":5,"as":7}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 11, Size: 12, Kind: tickv1.KindQuote}}, res.Ticks)
			},
		},
		{
			name:  "mixed batch keeps arrival order",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","p":1,"s":1},{"T":"q","bp":2,"ap":4,"bs":1,"as":1},{"T":"t","p":5,"s":2}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				require.Len(t, res.Ticks, 3)
				assert.Equal(t, 1.0, res.Ticks[0].Price)
				assert.Equal(t, 3.0, res.Ticks[1].Price)
				assert.Equal(t, 5.0, res.Ticks[2].Price)
			},
		},
		{
			name:  "unknown tag is ignored",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"x","p":1,"s":1},{"T":"b","o":1}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 2, res.Ignored)
			},
		},
		{
			name:  "missing tag is ignored",
			opts:  DefaultOptions("SPY"),
			frame: `[{"p":1,"s":1}, 42, "x"]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 3, res.Ignored)
			},
		},
		{
			name:  "other symbol is ignored",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","S":"QQQ","p":1,"s":1}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 1, res.Ignored)
			},
		},
		{
			name:  "lowercase keys are distinct from uppercase",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","S":"SPY","s":3,"p":2,"t":"2024-03-01T14:30:00Z"}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 2, Size: 3, Kind: tickv1.KindTrade}}, res.Ticks)
			},
		},
		{
			name:  "missing field dropped under drop policy",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","s":3},{"T":"q","bp":1,"ap":"2","bs":1}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{
					{Field: "p", Kind: tickv1.KindTrade},
					{Field: "ap", Kind: tickv1.KindQuote},
					{Field: "as", Kind: tickv1.KindQuote},
				}, res.Anomalies)
			},
		},
		{
			name:  "missing field zeroed under zero policy",
			opts:  Options{Symbol: "SPY", MissingFieldPolicy: decoderv1.MissingFieldZero},
			frame: `[{"T":"t","s":3}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 0, Size: 3, Kind: tickv1.KindTrade}}, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "p", Kind: tickv1.KindTrade}}, res.Anomalies)
			},
		},
		{
			name:  "quote sizes overflowing to infinity are dropped",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"q","S":"SPY","bp":1,"ap":1,"bs":1.7e308,"as":1.7e308}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "size", Kind: tickv1.KindQuote}}, res.Anomalies)
			},
		},
		{
			name:  "quote prices overflowing to infinity are dropped",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"q","S":"SPY","bp":1.7e308,"ap":1.7e308,"bs":1,"as":1}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "price", Kind: tickv1.KindQuote}}, res.Anomalies)
			},
		},
		{
			name:  "overflowing size zeroed under zero policy",
			opts:  Options{Symbol: "SPY", MissingFieldPolicy: decoderv1.MissingFieldZero},
			frame: `[{"T":"q","S":"SPY","bp":1,"ap":3,"bs":1.7e308,"as":1.7e308}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 2, Size: 0, Kind: tickv1.KindQuote}}, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "size", Kind: tickv1.KindQuote}}, res.Anomalies)
			},
		},
		{
			name:  "control messages",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"success","msg":"connected"},{"T":"error","code":402,"msg":"auth failed"},{"T":"subscription","trades":["SPY"]}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, []decoderv1.Control{
					{Kind: decoderv1.ControlSuccess, Msg: "connected"},
					{Kind: decoderv1.ControlError, Code: 402, Msg: "auth failed"},
					{Kind: decoderv1.ControlSubscription},
				}, res.Controls)
			},
		},
		{
			name:  "empty array",
			opts:  DefaultOptions("SPY"),
			frame: `[]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, decoderv1.Result{}, res)
			},
		},
		{
			name:  "invalid json",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t",`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)))
				assert.Empty(t, res.Ticks)
			},
		},
		{
			name:  "object frame",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.SPY","data":[]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewFlatDecoder(tc.opts).Decode([]byte(tc.frame))
			tc.assertFn(t, res, err)
		})
	}
}

func TestEnvelopedDecoder_Decode(t *testing.T) {
	testCases := []struct {
		name     string
		opts     Options
		frame    string
		assertFn func(t *testing.T, res decoderv1.Result, err error)
	}{
		{
			name:  "trade stream",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.SPY","data":[{"p":100.5,"s":10}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 100.5, Size: 10, Kind: tickv1.KindTrade}}, res.Ticks)
			},
		},
		{
			name:  "quote stream",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"Q.SPY","data":[{"bp":10,"ap":12,"bs":5,"as":7},{"bp":11,"ap":13,"bs":1,"as":1}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{
					{Price: 11, Size: 12, Kind: tickv1.KindQuote},
					{Price: 12, Size: 2, Kind: tickv1.KindQuote},
				}, res.Ticks)
			},
		},
		{
			name:  "overflowing quote in stream is dropped",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"Q.SPY","data":[{"bp":1,"ap":1,"bs":1.7e308,"as":1.7e308},{"bp":10,"ap":12,"bs":5,"as":7}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 11, Size: 12, Kind: tickv1.KindQuote}}, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "size", Kind: tickv1.KindQuote}}, res.Anomalies)
			},
		},
		{
			name:  "single object data",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.SPY","data":{"p":3,"s":1}}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 3, Size: 1, Kind: tickv1.KindTrade}}, res.Ticks)
			},
		},
		{
			name:  "unknown stream is ignored",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"B.SPY","data":[{"o":1}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 1, res.Ignored)
			},
		},
		{
			name:  "other symbol stream is ignored",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.QQQ","data":[{"p":1,"s":1}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 1, res.Ignored)
			},
		},
		{
			name:  "stream prefix without symbol is ignored",
			opts:  Options{MissingFieldPolicy: decoderv1.MissingFieldDrop},
			frame: `{"stream":"T.","data":[{"p":1,"s":1}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 1, res.Ignored)
			},
		},
		{
			name:  "stream key is case sensitive",
			opts:  DefaultOptions("SPY"),
			frame: `{"Stream":"T.SPY","data":[{"p":1,"s":1}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Empty(t, res.Ticks)
				assert.Equal(t, 1, res.Ignored)
			},
		},
		{
			name:  "missing field dropped",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.SPY","data":[{"p":1},{"p":2,"s":2}]}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, []tickv1.Tick{{Price: 2, Size: 2, Kind: tickv1.KindTrade}}, res.Ticks)
				assert.Equal(t, []decoderv1.Anomaly{{Field: "s", Kind: tickv1.KindTrade}}, res.Anomalies)
			},
		},
		{
			name:  "data of wrong type",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":"T.SPY","data":"nope"}`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)))
			},
		},
		{
			name:  "invalid json",
			opts:  DefaultOptions("SPY"),
			frame: `{"stream":`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)))
			},
		},
		{
			name:  "array frame",
			opts:  DefaultOptions("SPY"),
			frame: `[{"T":"t","p":1,"s":1}]`,
			assertFn: func(t *testing.T, res decoderv1.Result, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewEnvelopedDecoder(tc.opts).Decode([]byte(tc.frame))
			tc.assertFn(t, res, err)
		})
	}
}

func TestAutoDecoder_BothShapesAgree(t *testing.T) {
	d := NewAutoDecoder(DefaultOptions("SPY"))

	flat, err := d.Decode([]byte(`[{"T":"t","p":100.5,"s":10}]`))
	require.NoError(t, err)

	enveloped, err := d.Decode([]byte(` {"stream":"T.SPY","data":[{"p":100.5,"s":10}]}`))
	require.NoError(t, err)

	want := []tickv1.Tick{{Price: 100.5, Size: 10, Kind: tickv1.KindTrade}}
	assert.Equal(t, want, flat.Ticks)
	assert.Equal(t, want, enveloped.Ticks)
}

func TestAutoDecoder_Malformed(t *testing.T) {
	d := NewAutoDecoder(DefaultOptions("SPY"))

	for _, frame := range []string{"", "   ", "hello", "42", `"T"`} {
		res, err := d.Decode([]byte(frame))
		assert.True(t, errors.ErrorCodeEquals(err, string(errors.StreamMalformedFrame)), frame)
		assert.Empty(t, res.Ticks)
	}
}
