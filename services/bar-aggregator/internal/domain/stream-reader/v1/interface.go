package streamreaderv1

import (
	"context"
	"time"
)

// Conn is the receive side of an open feed connection.
// *websocket.Conn satisfies it.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=streamreaderv1_mock
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens feed connections. It is the extension point for reconnect policies.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Reader pumps frames from the feed into the tick queue until the stream ends.
type Reader interface {
	// Run returns nil when the stream ends cleanly or ctx is cancelled.
	Run(ctx context.Context) error
}
