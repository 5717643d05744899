package streamreaderv1

// AuthMessage is the first message sent after the connection opens.
type AuthMessage struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// SubscribeMessage requests trades and quotes for the configured symbols.
type SubscribeMessage struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
}

// NewAuthMessage creates the auth handshake message.
func NewAuthMessage(key, secret string) AuthMessage {
	return AuthMessage{Action: "auth", Key: key, Secret: secret}
}

// NewSubscribeMessage creates a subscription for trades and quotes of symbol.
func NewSubscribeMessage(symbol string) SubscribeMessage {
	return SubscribeMessage{
		Action: "subscribe",
		Trades: []string{symbol},
		Quotes: []string{symbol},
	}
}
