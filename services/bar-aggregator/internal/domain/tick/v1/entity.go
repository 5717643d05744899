package tickv1

// Kind identifies which feed event a Tick was derived from.
type Kind string

const (
	// KindTrade is a Tick taken directly from a trade print.
	KindTrade Kind = "trade"
	// KindQuote is a synthetic Tick built from a quote's mid price and combined size.
	KindQuote Kind = "quote"
)

// Tick is one normalized price observation.
type Tick struct {
	Price float64
	Size  float64
	Kind  Kind
}

// NewTradeTick creates a Tick from a trade price and size.
func NewTradeTick(price, size float64) Tick {
	return Tick{Price: price, Size: size, Kind: KindTrade}
}

// NewQuoteTick creates a Tick at the bid/ask mid price with the combined bid and ask size.
func NewQuoteTick(bidPrice, askPrice, bidSize, askSize float64) Tick {
	return Tick{
		Price: (bidPrice + askPrice) / 2,
		Size:  bidSize + askSize,
		Kind:  KindQuote,
	}
}
