package decoder

import (
	"bytes"
	"math"

	jsoniter "github.com/json-iterator/go"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
)

// The feed uses "t"/"T" and "s"/"S" as distinct keys.
var json = jsoniter.Config{
	CaseSensitive:          true,
	ValidateJsonRawMessage: true,
}.Froze()

const (
	tagTrade = "t"
	tagQuote = "q"
)

// event is one decoded feed object. Numbers decode as float64.
type event map[string]any

// Options configures every decoding strategy.
type Options struct {
	// Symbol filters out events for other symbols. Empty accepts all.
	Symbol             string
	MissingFieldPolicy decoderv1.MissingFieldPolicy
}

// DefaultOptions returns options that drop events with missing fields.
func DefaultOptions(symbol string) Options {
	return Options{
		Symbol:             symbol,
		MissingFieldPolicy: decoderv1.MissingFieldDrop,
	}
}

// New returns the decoder for format.
func New(format decoderv1.Format, opts Options) (decoderv1.Decoder, error) {
	switch format {
	case decoderv1.FormatAuto:
		return NewAutoDecoder(opts), nil
	case decoderv1.FormatFlat:
		return NewFlatDecoder(opts), nil
	case decoderv1.FormatEnveloped:
		return NewEnvelopedDecoder(opts), nil
	}
	return nil, errors.NewErrorDetails("unknown feed format "+string(format), string(errors.ConfigValidationError), "FEED_FORMAT")
}

func malformed(cause error) error {
	return errors.NewErrorDetailsWithCause("frame is not valid JSON", string(errors.StreamMalformedFrame), "frame", cause)
}

func malformedShape(message string) error {
	return errors.NewErrorDetails(message, string(errors.StreamMalformedFrame), "frame")
}

// fieldReader extracts numeric fields from one event, collecting anomalies for absent ones.
type fieldReader struct {
	ev      event
	kind    tickv1.Kind
	policy  decoderv1.MissingFieldPolicy
	missing []decoderv1.Anomaly
}

func (r *fieldReader) number(key string) float64 {
	if v, ok := r.ev[key].(float64); ok {
		return v
	}
	r.missing = append(r.missing, decoderv1.Anomaly{Field: key, Kind: r.kind})
	return 0
}

// finite returns v, or records an anomaly for field and returns 0 when the
// computed value overflowed.
func (r *fieldReader) finite(field string, v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		r.missing = append(r.missing, decoderv1.Anomaly{Field: field, Kind: r.kind})
		return 0
	}
	return v
}

// checked applies finite to the derived price and size of tick.
func (r *fieldReader) checked(tick tickv1.Tick) tickv1.Tick {
	tick.Price = r.finite("price", tick.Price)
	tick.Size = r.finite("size", tick.Size)
	return tick
}

// finish records anomalies on res and reports whether the tick should be kept.
func (r *fieldReader) finish(res *decoderv1.Result) bool {
	if len(r.missing) == 0 {
		return true
	}
	res.Anomalies = append(res.Anomalies, r.missing...)
	return r.policy == decoderv1.MissingFieldZero
}

func (o Options) appendTrade(res *decoderv1.Result, ev event) {
	r := fieldReader{ev: ev, kind: tickv1.KindTrade, policy: o.MissingFieldPolicy}
	price := r.number("p")
	size := r.number("s")
	tick := r.checked(tickv1.NewTradeTick(price, size))
	if r.finish(res) {
		res.Ticks = append(res.Ticks, tick)
	}
}

func (o Options) appendQuote(res *decoderv1.Result, ev event) {
	r := fieldReader{ev: ev, kind: tickv1.KindQuote, policy: o.MissingFieldPolicy}
	bidPrice := r.number("bp")
	askPrice := r.number("ap")
	bidSize := r.number("bs")
	askSize := r.number("as")
	tick := r.checked(tickv1.NewQuoteTick(bidPrice, askPrice, bidSize, askSize))
	if r.finish(res) {
		res.Ticks = append(res.Ticks, tick)
	}
}

// firstByte returns the first non-whitespace byte of frame, or 0.
func firstByte(frame []byte) byte {
	trimmed := bytes.TrimLeft(frame, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
