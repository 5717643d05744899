package decoderv1

// Decoder turns one raw stream frame into normalized ticks.
// Implementations hold no state between frames.
type Decoder interface {
	// Decode returns an error only when the frame is not valid structured data.
	Decode(frame []byte) (Result, error)
}
