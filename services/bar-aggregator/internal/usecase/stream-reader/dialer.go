package streamreader

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	streamreaderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/stream-reader/v1"
)

// WebsocketDialer opens feed connections with gorilla/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a dialer with the given handshake timeout.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial implements streamreaderv1.Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (streamreaderv1.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		details := errors.NewErrorDetailsWithCause("failed to open feed connection", string(errors.StreamDialError), "url", err)
		if resp != nil {
			details.Object = resp.Status
		}
		return nil, details
	}
	return conn, nil
}
