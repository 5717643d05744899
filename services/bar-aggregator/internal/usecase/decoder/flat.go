package decoder

import (
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
)

// FlatDecoder decodes a JSON array of "T"-tagged events.
type FlatDecoder struct {
	opts Options
}

// NewFlatDecoder creates a FlatDecoder.
func NewFlatDecoder(opts Options) *FlatDecoder {
	return &FlatDecoder{opts: opts}
}

// Decode implements decoderv1.Decoder.
func (d *FlatDecoder) Decode(frame []byte) (decoderv1.Result, error) {
	var res decoderv1.Result

	if firstByte(frame) != '[' {
		return res, malformedShape("flat frame must be a JSON array")
	}

	var items []any
	if err := json.Unmarshal(frame, &items); err != nil {
		return res, malformed(err)
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			res.Ignored++
			continue
		}
		d.decodeEvent(&res, event(obj))
	}

	return res, nil
}

func (d *FlatDecoder) decodeEvent(res *decoderv1.Result, ev event) {
	tag, _ := ev["T"].(string)

	switch tag {
	case tagTrade, tagQuote:
		if sym, ok := ev["S"].(string); ok && d.opts.Symbol != "" && sym != d.opts.Symbol {
			res.Ignored++
			return
		}
		if tag == tagTrade {
			d.opts.appendTrade(res, ev)
		} else {
			d.opts.appendQuote(res, ev)
		}
	case string(decoderv1.ControlSuccess), string(decoderv1.ControlError), string(decoderv1.ControlSubscription):
		res.Controls = append(res.Controls, controlFrom(decoderv1.ControlKind(tag), ev))
	default:
		res.Ignored++
	}
}

func controlFrom(kind decoderv1.ControlKind, ev event) decoderv1.Control {
	c := decoderv1.Control{Kind: kind}
	if code, ok := ev["code"].(float64); ok {
		c.Code = int(code)
	}
	if msg, ok := ev["msg"].(string); ok {
		c.Msg = msg
	}
	return c
}
