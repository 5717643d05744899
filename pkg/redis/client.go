package redis

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type client struct {
	logger    logger.Interface
	config    *Config
	universal redis.UniversalClient
}

// NewClient creates a new Redis client with the provided logger and configuration.
func NewClient(logger logger.Interface, config *Config) Client {
	return &client{
		logger: logger,
		config: config,
	}
}

func (c *client) validate() error {
	if c.config == nil {
		return errors.NewErrorDetails("Redis config is nil", string(errors.RedisConfigError), "connect")
	}

	if c.config.URL == "" && len(c.config.Addrs) == 0 {
		return errors.NewErrorDetails("Redis addresses are empty", string(errors.RedisConfigError), "connect")
	}

	if c.config.Mode != Standalone && c.config.Mode != Cluster {
		return errors.NewErrorDetails("Invalid Redis mode", string(errors.RedisConfigError), "connect")
	}

	if c.config.ConnectTimeout <= 0 {
		return errors.NewErrorDetails("Invalid Redis connect timeout", string(errors.RedisConfigError), "connect")
	}

	if c.config.PoolSize <= 0 {
		return errors.NewErrorDetails("Invalid Redis pool size", string(errors.RedisConfigError), "connect")
	}

	if c.config.MaxIdleConns < 0 {
		return errors.NewErrorDetails("Invalid Redis max idle connections", string(errors.RedisConfigError), "connect")
	}

	if c.config.MaxRetries < 0 {
		return errors.NewErrorDetails("Invalid Redis max retries", string(errors.RedisConfigError), "connect")
	}

	if c.config.MinRetryBackoff < 0 || c.config.MaxRetryBackoff < 0 {
		return errors.NewErrorDetails("Invalid Redis retry backoff", string(errors.RedisConfigError), "connect")
	}

	return nil
}

func (c *client) standaloneOptions() (*redis.Options, error) {
	var opts *redis.Options
	if c.config.URL != "" {
		parsed, err := redis.ParseURL(c.config.URL)
		if err != nil {
			return nil, errors.NewErrorDetailsWithCause("Invalid Redis URL", string(errors.RedisConfigError), "url", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     c.config.Addrs[0],
			Username: c.config.Username,
			Password: c.config.Password,
			DB:       c.config.DB,
		}
	}

	opts.MaxRetries = c.config.MaxRetries
	opts.MinRetryBackoff = c.config.MinRetryBackoff
	opts.MaxRetryBackoff = c.config.MaxRetryBackoff
	opts.DialTimeout = c.config.ConnectTimeout
	opts.ReadTimeout = c.config.ConnectTimeout
	opts.WriteTimeout = c.config.ConnectTimeout
	opts.PoolSize = c.config.PoolSize
	opts.MinIdleConns = c.config.MinIdleConns
	opts.MaxIdleConns = c.config.MaxIdleConns
	opts.ConnMaxLifetime = c.config.ConnMaxLifetime
	opts.ConnMaxIdleTime = c.config.ConnMaxIdleTime
	opts.PoolTimeout = c.config.PoolTimeout

	return opts, nil
}

func (c *client) Connect(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}

	switch c.config.Mode {
	case Standalone:
		opts, err := c.standaloneOptions()
		if err != nil {
			return err
		}
		c.universal = redis.NewClient(opts)
	case Cluster:
		if len(c.config.Addrs) == 0 {
			return errors.NewErrorDetails("Redis cluster addresses are empty", string(errors.RedisConfigError), "connect")
		}
		c.universal = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           c.config.Addrs,
			Username:        c.config.Username,
			Password:        c.config.Password,
			MaxRetries:      c.config.MaxRetries,
			MinRetryBackoff: c.config.MinRetryBackoff,
			MaxRetryBackoff: c.config.MaxRetryBackoff,
			DialTimeout:     c.config.ConnectTimeout,
			ReadTimeout:     c.config.ConnectTimeout,
			WriteTimeout:    c.config.ConnectTimeout,
			PoolSize:        c.config.PoolSize,
			MinIdleConns:    c.config.MinIdleConns,
			MaxIdleConns:    c.config.MaxIdleConns,
			ConnMaxLifetime: c.config.ConnMaxLifetime,
			ConnMaxIdleTime: c.config.ConnMaxIdleTime,
			PoolTimeout:     c.config.PoolTimeout,
		})
	}

	if err := c.universal.Ping(ctx).Err(); err != nil {
		return errors.NewErrorDetailsWithCause("Failed to connect to Redis", string(errors.RedisConnectionError), "connect", err)
	}

	return nil
}

func (c *client) Reconnect(ctx context.Context) bool {
	baseDelay := c.config.MinRetryBackoff
	maxDelay := c.config.MaxRetryBackoff

	for i := range c.config.ReconnectMaxRetries {
		backoff := min(baseDelay*time.Duration(math.Pow(2, float64(i))), maxDelay)

		jitter := time.Duration(rand.IntN(100)) * time.Millisecond
		totalDelay := backoff + jitter

		c.logger.Info("Reconnecting to Redis",
			logger.NewField("attempt", i+1),
			logger.NewField("delay", totalDelay),
		)

		select {
		case <-ctx.Done():
			c.logger.Info("Reconnect cancelled", logger.NewField("reason", ctx.Err()))
			return false
		case <-time.After(totalDelay):
			if c.universal != nil {
				_ = c.universal.Close()
			}

			connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
			err := c.Connect(connectCtx)
			cancel()
			if err == nil {
				c.logger.Info("Reconnected to Redis successfully", logger.NewField("attempt", i+1))
				return true
			}
			c.logger.Error(errors.TracerFromError(err), logger.NewField("attempt", i+1))
		}
	}

	return false
}

func (c *client) Disconnect(ctx context.Context) error {
	if c.universal == nil {
		return nil
	}

	if err := c.universal.Close(); err != nil {
		return errors.NewErrorDetailsWithCause("Failed to disconnect from Redis", string(errors.RedisDisconnectionError), "disconnect", err)
	}
	return nil
}

func (c *client) Ping(ctx context.Context) error {
	if c.universal == nil {
		return errors.NewErrorDetails("Redis client is not connected", string(errors.RedisPingError), "ping")
	}

	if err := c.universal.Ping(ctx).Err(); err != nil {
		return errors.NewErrorDetailsWithCause("Failed to ping Redis", string(errors.RedisPingError), "ping", err)
	}
	return nil
}

func (c *client) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if c.universal == nil {
		return nil, errors.NewErrorDetails("Redis client is not connected", string(errors.RedisSubscribeError), "subscribe")
	}

	pubSub := c.universal.Subscribe(ctx, channels...)
	if _, err := pubSub.Receive(ctx); err != nil {
		_ = pubSub.Close()
		return nil, errors.NewErrorDetailsWithCause("Failed to subscribe to channels in Redis", string(errors.RedisSubscribeError), "subscribe", err)
	}
	return pubSub, nil
}

func (c *client) Publish(ctx context.Context, channel string, message any) (int64, error) {
	if c.universal == nil {
		return 0, errors.NewErrorDetails("Redis client is not connected", string(errors.RedisConfigError), "publish")
	}

	receivers, err := c.universal.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, errors.NewErrorDetailsWithCause("Failed to publish message to Redis", string(errors.RedisPublishError), "publish", err)
	}
	return receivers, nil
}
