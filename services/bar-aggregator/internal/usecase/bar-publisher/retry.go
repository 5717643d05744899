package barpublisher

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	barpublisherv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/pkg/config"
)

// transientCodes are sink failures worth retrying.
var transientCodes = []errors.ErrorCode{
	errors.RedisPublishError,
	errors.KafkaWriteError,
}

// IsTransient reports whether err is a sink failure that may succeed on retry.
func IsTransient(err error) bool {
	for _, code := range transientCodes {
		if errors.ErrorCodeEquals(err, string(code)) {
			return true
		}
	}
	return false
}

// RetryPublisher retries transient failures of the wrapped publisher with exponential backoff.
type RetryPublisher struct {
	next       barpublisherv1.Publisher
	logger     logger.Interface
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRetryPublisher wraps next with the configured retry bounds.
func NewRetryPublisher(next barpublisherv1.Publisher, cfg config.PublishConfig, logger logger.Interface) *RetryPublisher {
	return &RetryPublisher{
		next:       next,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
	}
}

// Publish implements barpublisherv1.Publisher.
func (r *RetryPublisher) Publish(ctx context.Context, bar *barv1.Bar) error {
	err := r.next.Publish(ctx, bar)

	for attempt := 0; err != nil && attempt < r.maxRetries; attempt++ {
		if !IsTransient(err) {
			return err
		}

		delay := r.backoff(attempt)
		r.logger.WarnContext(ctx, "publish failed, retrying",
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "delay", Value: delay.String()},
			logger.Field{Key: "error", Value: err.Error()},
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.TracerFromError(err)
		case <-timer.C:
		}

		err = r.next.Publish(ctx, bar)
	}

	return err
}

// backoff doubles minBackoff per attempt and stops at maxBackoff before it can overflow.
func (r *RetryPublisher) backoff(attempt int) time.Duration {
	backoff := r.minBackoff
	for i := 0; i < attempt && backoff < r.maxBackoff; i++ {
		backoff *= 2
	}
	backoff = min(backoff, r.maxBackoff)
	if backoff <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2 + 1))
	return backoff + jitter
}

// Close closes the wrapped publisher.
func (r *RetryPublisher) Close() error {
	return r.next.Close()
}
