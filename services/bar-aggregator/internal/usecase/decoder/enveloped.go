package decoder

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
)

const (
	streamTradePrefix = "T."
	streamQuotePrefix = "Q."
)

type envelope struct {
	Stream string              `json:"stream"`
	Data   jsoniter.RawMessage `json:"data"`
}

// EnvelopedDecoder decodes {"stream":"T.<sym>"|"Q.<sym>","data":[...]} frames.
// data may also be a single object.
type EnvelopedDecoder struct {
	opts Options
}

// NewEnvelopedDecoder creates an EnvelopedDecoder.
func NewEnvelopedDecoder(opts Options) *EnvelopedDecoder {
	return &EnvelopedDecoder{opts: opts}
}

// Decode implements decoderv1.Decoder.
func (d *EnvelopedDecoder) Decode(frame []byte) (decoderv1.Result, error) {
	var res decoderv1.Result

	if firstByte(frame) != '{' {
		return res, malformedShape("enveloped frame must be a JSON object")
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return res, malformed(err)
	}

	appendFn, ok := d.route(env.Stream)
	if !ok {
		res.Ignored++
		return res, nil
	}

	var items []any
	switch firstByte(env.Data) {
	case '[':
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return res, malformed(err)
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(env.Data, &obj); err != nil {
			return res, malformed(err)
		}
		items = []any{obj}
	default:
		return res, malformedShape("enveloped data must be an array or an object")
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Ignored++
			continue
		}
		appendFn(&res, event(obj))
	}

	return res, nil
}

// route returns the event handler for stream, or false when the stream is not ours.
func (d *EnvelopedDecoder) route(stream string) (func(*decoderv1.Result, event), bool) {
	var fn func(*decoderv1.Result, event)

	symbol, isTrade := strings.CutPrefix(stream, streamTradePrefix)
	if isTrade {
		fn = d.opts.appendTrade
	} else {
		var isQuote bool
		if symbol, isQuote = strings.CutPrefix(stream, streamQuotePrefix); !isQuote {
			return nil, false
		}
		fn = d.opts.appendQuote
	}

	if symbol == "" || (d.opts.Symbol != "" && symbol != d.opts.Symbol) {
		return nil, false
	}
	return fn, true
}
