package streamreader

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/muhammadchandra19/bar-aggregator/pkg/util"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	queuev1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/queue/v1"
	streamreaderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/stream-reader/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/metrics"
)

// Options configures a Reader session.
type Options struct {
	URL       string
	KeyID     string
	SecretKey string
	Symbol    string
	// ReadTimeout of zero waits forever for the next frame.
	ReadTimeout     time.Duration
	StopOnAuthError bool
	// SIPFeed marks a URL on the SIP feed, which needs a paid subscription.
	SIPFeed bool
}

// Reader owns the receive side of one feed connection.
type Reader struct {
	dialer  streamreaderv1.Dialer
	decoder decoderv1.Decoder
	queue   queuev1.Queue
	logger  logger.Interface
	metrics *metrics.Metrics
	opts    Options
}

// NewReader creates a Reader. metrics may be nil.
func NewReader(
	dialer streamreaderv1.Dialer,
	decoder decoderv1.Decoder,
	queue queuev1.Queue,
	logger logger.Interface,
	metrics *metrics.Metrics,
	opts Options,
) *Reader {
	return &Reader{
		dialer:  dialer,
		decoder: decoder,
		queue:   queue,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// Run connects, authenticates, subscribes and pumps ticks into the queue.
// The queue is closed when Run returns, whatever the outcome.
// A remote close or ctx cancellation returns nil.
func (r *Reader) Run(ctx context.Context) error {
	defer r.queue.Close()

	ctx = util.WithSymbol(util.WithSessionID(ctx, ""), r.opts.Symbol)

	conn, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblocks ReadMessage when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		if r.opts.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(r.opts.ReadTimeout)); err != nil {
				return r.readFailed(ctx, err)
			}
		}

		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				r.logger.InfoContext(ctx, "stream reader stopped", logger.Field{Key: "reason", Value: ctx.Err().Error()})
				return nil
			}
			if isRemoteClose(err) {
				r.logger.InfoContext(ctx, "feed closed the stream", logger.Field{Key: "reason", Value: err.Error()})
				return nil
			}
			return r.readFailed(ctx, err)
		}

		if msgType != websocket.TextMessage {
			r.logger.DebugContext(ctx, "ignoring non-text frame", logger.Field{Key: "type", Value: msgType})
			continue
		}

		if err := r.handleFrame(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (r *Reader) connect(ctx context.Context) (streamreaderv1.Conn, error) {
	if r.opts.SIPFeed {
		r.logger.WarnContext(ctx, "using SIP feed; ensure the account has a SIP subscription", logger.Field{Key: "url", Value: r.opts.URL})
	} else {
		r.logger.InfoContext(ctx, "connecting to feed", logger.Field{Key: "url", Value: r.opts.URL})
	}

	conn, err := r.dialer.Dial(ctx, r.opts.URL)
	if err != nil {
		r.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.Field{Key: "action", Value: "dial_feed"})
		return nil, err
	}

	handshake := []any{
		streamreaderv1.NewAuthMessage(r.opts.KeyID, r.opts.SecretKey),
		streamreaderv1.NewSubscribeMessage(r.opts.Symbol),
	}
	for _, msg := range handshake {
		if err := conn.WriteJSON(msg); err != nil {
			_ = conn.Close()
			herr := errors.NewErrorDetailsWithCause("failed to send handshake message", string(errors.StreamHandshakeError), "handshake", err)
			r.logger.ErrorContext(ctx, errors.TracerFromError(herr), logger.Field{Key: "action", Value: "feed_handshake"})
			return nil, herr
		}
	}

	r.logger.InfoContext(ctx, "subscribed to trades and quotes")
	return conn, nil
}

func (r *Reader) handleFrame(ctx context.Context, frame []byte) error {
	r.metrics.FrameReceived()

	res, err := r.decoder.Decode(frame)
	if err != nil {
		r.metrics.MalformedFrame()
		r.logger.DebugContext(ctx, "dropping malformed frame",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "size", Value: len(frame)},
		)
		return nil
	}

	for _, c := range res.Controls {
		r.metrics.ControlMessage(string(c.Kind))
		if c.Kind == decoderv1.ControlError {
			r.logger.WarnContext(ctx, "feed reported an error",
				logger.Field{Key: "code", Value: c.Code},
				logger.Field{Key: "msg", Value: c.Msg},
			)
			if c.IsAuthFailure() && r.opts.StopOnAuthError {
				return errors.NewErrorDetails("feed rejected the session: "+c.Msg, string(errors.StreamAuthError), "auth")
			}
			continue
		}
		r.logger.InfoContext(ctx, "feed status", logger.Field{Key: "kind", Value: c.Kind}, logger.Field{Key: "msg", Value: c.Msg})
	}

	for _, a := range res.Anomalies {
		r.metrics.Anomaly(string(a.Kind), a.Field)
		r.logger.WarnContext(ctx, "event missing numeric field",
			logger.Field{Key: "kind", Value: a.Kind},
			logger.Field{Key: "field", Value: a.Field},
		)
	}

	r.metrics.EventsIgnored(res.Ignored)

	for _, tick := range res.Ticks {
		r.metrics.TickDecoded(string(tick.Kind))
		if err := r.queue.Push(ctx, tick); err != nil {
			return err
		}
	}
	r.metrics.QueueDepth(r.queue.Len())

	return nil
}

func (r *Reader) readFailed(ctx context.Context, err error) error {
	rerr := errors.NewErrorDetailsWithCause("failed to read from feed", string(errors.StreamReadError), "read", err)
	r.logger.ErrorContext(ctx, errors.TracerFromError(rerr), logger.Field{Key: "action", Value: "read_feed"})
	return rerr
}

func isRemoteClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return stderrors.Is(err, io.EOF)
}

var _ streamreaderv1.Reader = (*Reader)(nil)
