package simulator

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type flatTrade struct {
	T  string  `json:"T"`
	S  string  `json:"S"`
	P  float64 `json:"p"`
	Z  float64 `json:"s"`
	Ts string  `json:"t"`
}

type flatQuote struct {
	T  string  `json:"T"`
	S  string  `json:"S"`
	BP float64 `json:"bp"`
	AP float64 `json:"ap"`
	BS float64 `json:"bs"`
	AS float64 `json:"as"`
	Ts string  `json:"t"`
}

type tradeData struct {
	P  float64 `json:"p"`
	S  float64 `json:"s"`
	Ts string  `json:"t"`
}

type quoteData struct {
	BP float64 `json:"bp"`
	AP float64 `json:"ap"`
	BS float64 `json:"bs"`
	AS float64 `json:"as"`
	Ts string  `json:"t"`
}

type envelope struct {
	Stream string `json:"stream"`
	Data   any    `json:"data"`
}

type control struct {
	T    string `json:"T"`
	Msg  string `json:"msg,omitempty"`
	Code int    `json:"code,omitempty"`
}

type subscription struct {
	T      string   `json:"T"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
}

// encodeTrade renders one trade in the requested wire shape.
func encodeTrade(format decoderv1.Format, symbol string, t *Trade) ([]byte, error) {
	ts := t.Timestamp.Format(time.RFC3339Nano)
	switch format {
	case decoderv1.FormatEnveloped:
		return json.Marshal(envelope{
			Stream: "T." + symbol,
			Data:   []tradeData{{P: t.Price, S: t.Size, Ts: ts}},
		})
	case decoderv1.FormatFlat:
		return json.Marshal([]flatTrade{{T: "t", S: symbol, P: t.Price, Z: t.Size, Ts: ts}})
	}
	return nil, fmt.Errorf("unsupported simulator format %q", format)
}

// encodeQuote renders one quote in the requested wire shape.
func encodeQuote(format decoderv1.Format, symbol string, q *Quote) ([]byte, error) {
	ts := q.Timestamp.Format(time.RFC3339Nano)
	switch format {
	case decoderv1.FormatEnveloped:
		return json.Marshal(envelope{
			Stream: "Q." + symbol,
			Data:   []quoteData{{BP: q.BidPrice, AP: q.AskPrice, BS: q.BidSize, AS: q.AskSize, Ts: ts}},
		})
	case decoderv1.FormatFlat:
		return json.Marshal([]flatQuote{{T: "q", S: symbol, BP: q.BidPrice, AP: q.AskPrice, BS: q.BidSize, AS: q.AskSize, Ts: ts}})
	}
	return nil, fmt.Errorf("unsupported simulator format %q", format)
}
