package decoder

import (
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
)

// AutoDecoder dispatches each frame by its first non-whitespace byte.
type AutoDecoder struct {
	flat      *FlatDecoder
	enveloped *EnvelopedDecoder
}

// NewAutoDecoder creates an AutoDecoder.
func NewAutoDecoder(opts Options) *AutoDecoder {
	return &AutoDecoder{
		flat:      NewFlatDecoder(opts),
		enveloped: NewEnvelopedDecoder(opts),
	}
}

// Decode implements decoderv1.Decoder.
func (d *AutoDecoder) Decode(frame []byte) (decoderv1.Result, error) {
	switch firstByte(frame) {
	case '[':
		return d.flat.Decode(frame)
	case '{':
		return d.enveloped.Decode(frame)
	}
	return decoderv1.Result{}, malformedShape("frame is neither a JSON array nor a JSON object")
}
