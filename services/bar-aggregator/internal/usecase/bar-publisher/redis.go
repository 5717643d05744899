package barpublisher

import (
	"context"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/muhammadchandra19/bar-aggregator/pkg/redis"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
)

// RedisPublisher publishes bars on the bars:<symbol> pub/sub channel.
type RedisPublisher struct {
	client redis.Client
	logger logger.Interface
}

// NewRedisPublisher creates a RedisPublisher on an already connected client.
func NewRedisPublisher(client redis.Client, logger logger.Interface) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger,
	}
}

// Publish implements barpublisherv1.Publisher.
// A bar nobody is subscribed to is still a successful publish.
func (p *RedisPublisher) Publish(ctx context.Context, bar *barv1.Bar) error {
	payload, err := barv1.ToBytes(bar)
	if err != nil {
		return errors.NewErrorDetailsWithCause("failed to marshal bar", string(errors.PublishMarshalError), "bar", err)
	}

	channel := barv1.Channel(bar.Symbol)
	receivers, err := p.client.Publish(ctx, channel, payload)
	if err != nil {
		p.reconnectIfDown(ctx)
		return err
	}

	p.logger.DebugContext(ctx, "bar published",
		logger.Field{Key: "sink", Value: SinkNameRedis},
		logger.Field{Key: "channel", Value: channel},
		logger.Field{Key: "receivers", Value: receivers},
	)
	return nil
}

// reconnectIfDown re-establishes the connection when the server stopped answering.
func (p *RedisPublisher) reconnectIfDown(ctx context.Context) {
	if p.client.Ping(ctx) == nil {
		return
	}
	if !p.client.Reconnect(ctx) {
		p.logger.WarnContext(ctx, "redis still unreachable after reconnect", logger.Field{Key: "sink", Value: SinkNameRedis})
		return
	}
	p.logger.InfoContext(ctx, "redis reconnected", logger.Field{Key: "sink", Value: SinkNameRedis})
}

// Close disconnects the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Disconnect(context.Background())
}
