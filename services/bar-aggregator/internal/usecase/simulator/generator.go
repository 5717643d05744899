package simulator

import (
	"math"
	"math/rand/v2"
	"time"
)

// Trade is a simulated trade print.
type Trade struct {
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Quote is a simulated top-of-book quote.
type Quote struct {
	BidPrice  float64
	AskPrice  float64
	BidSize   float64
	AskSize   float64
	Timestamp time.Time
}

// Generator produces a random walk of trades and quotes around a base price.
type Generator struct {
	rng        *rand.Rand
	price      float64
	spread     float64
	tradeRatio float64
	now        func() time.Time
}

// NewGenerator creates a Generator. seed makes the sequence reproducible.
func NewGenerator(basePrice, spread float64, seed uint64) *Generator {
	return &Generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		price:      basePrice,
		spread:     spread,
		tradeRatio: 0.7,
		now:        time.Now,
	}
}

// Next returns either a trade or a quote; exactly one of them is non-nil.
func (g *Generator) Next() (*Trade, *Quote) {
	g.walk()

	if g.rng.Float64() < g.tradeRatio {
		return &Trade{
			Price:     round(g.price, 2),
			Size:      float64(1 + g.rng.IntN(500)),
			Timestamp: g.now().UTC(),
		}, nil
	}

	half := max(g.spread/2, 0.01)
	return nil, &Quote{
		BidPrice:  round(g.price-half, 2),
		AskPrice:  round(g.price+half, 2),
		BidSize:   float64(1 + g.rng.IntN(20)),
		AskSize:   float64(1 + g.rng.IntN(20)),
		Timestamp: g.now().UTC(),
	}
}

// walk moves the price by at most 0.05% and keeps it positive.
func (g *Generator) walk() {
	step := (g.rng.Float64() - 0.5) * 0.001 * g.price
	if next := g.price + step; next > 0 {
		g.price = next
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
