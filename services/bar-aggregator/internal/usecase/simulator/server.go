package simulator

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/muhammadchandra19/bar-aggregator/pkg/util"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	streamreaderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/stream-reader/v1"
)

// Error codes sent in error control messages.
const (
	codeInvalidSyntax = 400
	codeAuthFailed    = 402
)

// Options configures the simulated feed.
type Options struct {
	// Symbol overrides the subscribed symbol when set.
	Symbol   string
	Format   decoderv1.Format
	Interval time.Duration
	// Count of zero streams until the client disconnects.
	Count     int
	BasePrice float64
	Spread    float64
	Seed      uint64
	// KeyID and SecretKey of "" accept any credentials.
	KeyID            string
	SecretKey        string
	HandshakeTimeout time.Duration
}

// DefaultOptions returns the simulator defaults.
func DefaultOptions() Options {
	return Options{
		Symbol:           "",
		Format:           decoderv1.FormatFlat,
		Interval:         20 * time.Millisecond,
		BasePrice:        450,
		Spread:           0.02,
		Seed:             uint64(time.Now().UnixNano()),
		HandshakeTimeout: 5 * time.Second,
	}
}

// Server is an http.Handler speaking the market data websocket protocol.
type Server struct {
	opts     Options
	logger   logger.Interface
	upgrader websocket.Upgrader
}

// NewServer creates a Server. Format auto is served as flat.
func NewServer(opts Options, logger logger.Interface) *Server {
	if opts.Format != decoderv1.FormatEnveloped {
		opts.Format = decoderv1.FormatFlat
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultOptions().HandshakeTimeout
	}
	return &Server{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs one feed session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := util.WithSessionID(r.Context(), "")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.Field{Key: "action", Value: "upgrade"})
		return
	}
	defer conn.Close()

	symbol, ok := s.handshake(ctx, conn)
	if !ok {
		return
	}
	ctx = util.WithSymbol(ctx, symbol)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.drain(conn, cancel)

	s.logger.InfoContext(ctx, "client subscribed", logger.Field{Key: "format", Value: s.opts.Format})

	sent, err := s.stream(ctx, conn, symbol)
	if err != nil {
		s.logger.WarnContext(ctx, "stream ended", logger.Field{Key: "error", Value: err.Error()}, logger.Field{Key: "sent", Value: sent})
		return
	}
	s.logger.InfoContext(ctx, "stream finished", logger.Field{Key: "sent", Value: sent})
}

// handshake sends the connected status, checks auth and echoes the subscription.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	if err := s.writeControl(conn, control{T: string(decoderv1.ControlSuccess), Msg: "connected"}); err != nil {
		return "", false
	}

	var auth streamreaderv1.AuthMessage
	if err := conn.ReadJSON(&auth); err != nil || auth.Action != "auth" {
		s.logger.WarnContext(ctx, "expected auth message", logger.Field{Key: "action", Value: auth.Action})
		return "", false
	}
	if !s.authorized(auth) {
		s.reject(conn, codeAuthFailed, "auth failed")
		s.logger.WarnContext(ctx, "rejected client credentials", logger.Field{Key: "key", Value: auth.Key})
		return "", false
	}
	if err := s.writeControl(conn, control{T: string(decoderv1.ControlSuccess), Msg: "authenticated"}); err != nil {
		return "", false
	}

	var sub streamreaderv1.SubscribeMessage
	if err := conn.ReadJSON(&sub); err != nil || sub.Action != "subscribe" {
		s.logger.WarnContext(ctx, "expected subscribe message", logger.Field{Key: "action", Value: sub.Action})
		return "", false
	}

	symbol := s.opts.Symbol
	if symbol == "" && len(sub.Trades) > 0 {
		symbol = sub.Trades[0]
	}
	if symbol == "" {
		s.reject(conn, codeInvalidSyntax, "invalid syntax")
		return "", false
	}

	err := conn.WriteJSON([]subscription{{
		T:      string(decoderv1.ControlSubscription),
		Trades: []string{symbol},
		Quotes: []string{symbol},
	}})
	return symbol, err == nil
}

func (s *Server) authorized(auth streamreaderv1.AuthMessage) bool {
	if s.opts.KeyID == "" && s.opts.SecretKey == "" {
		return true
	}
	return auth.Key == s.opts.KeyID && auth.Secret == s.opts.SecretKey
}

// reject reports an error and waits for the client to hang up, so the error
// frame is not lost to a reset.
func (s *Server) reject(conn *websocket.Conn, code int, msg string) {
	if err := s.writeControl(conn, control{T: string(decoderv1.ControlError), Code: code, Msg: msg}); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *Server) writeControl(conn *websocket.Conn, c control) error {
	return conn.WriteJSON([]control{c})
}

// stream writes one event per interval until Count is reached or ctx ends.
func (s *Server) stream(ctx context.Context, conn *websocket.Conn, symbol string) (int, error) {
	gen := NewGenerator(s.opts.BasePrice, s.opts.Spread, s.opts.Seed)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	sent := 0
	for s.opts.Count == 0 || sent < s.opts.Count {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}

		frame, err := s.nextFrame(gen, symbol)
		if err != nil {
			return sent, err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			return sent, err
		}
		sent++
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return sent, nil
}

func (s *Server) nextFrame(gen *Generator, symbol string) ([]byte, error) {
	trade, quote := gen.Next()
	if trade != nil {
		return encodeTrade(s.opts.Format, symbol, trade)
	}
	return encodeQuote(s.opts.Format, symbol, quote)
}

// drain consumes client frames so close and ping messages are processed.
func (s *Server) drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
