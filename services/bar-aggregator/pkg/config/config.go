package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/redis"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	queuev1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/queue/v1"
)

const (
	// DefaultFeedURL is the IEX feed, available without a SIP subscription.
	DefaultFeedURL = "wss://stream.data.alpaca.markets/v2/iex"
	// DefaultRedisURL points at a local Redis.
	DefaultRedisURL = "redis://127.0.0.1:6379/0"

	// SinkRedis publishes bars on Redis pub/sub.
	SinkRedis = "redis"
	// SinkKafka writes bars to a Kafka topic.
	SinkKafka = "kafka"
)

// Config holds the configuration for the application
type Config struct {
	// Symbol comes from the command line, not the environment.
	Symbol string

	App        AppConfig        `envPrefix:"APP_"`
	Feed       FeedConfig       // feed variables keep their established unprefixed names
	Queue      QueueConfig      `envPrefix:"QUEUE_"`
	Aggregator AggregatorConfig `envPrefix:"AGGREGATOR_"`
	Redis      redis.Config     `envPrefix:"REDIS_"`
	Kafka      KafkaConfig      `envPrefix:"KAFKA_"`
	Publish    PublishConfig    `envPrefix:"PUBLISH_"`
	Sinks      []string         `env:"SINKS" envSeparator:"," envDefault:"redis"`
}

// AppConfig represents the process-level configuration.
type AppConfig struct {
	Name        string   `env:"NAME" envDefault:"bar-aggregator"`
	Environment string   `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogOutputs  []string `env:"LOG_OUTPUTS" envSeparator:"," envDefault:"stdout"`
	// HTTPAddr serves /health and /metrics. Empty disables it.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// GRPCAddr serves the gRPC health service. Empty disables it.
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":8880"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// FeedConfig holds the market data stream settings.
type FeedConfig struct {
	KeyID              string        `env:"APCA_API_KEY_ID"`
	SecretKey          string        `env:"APCA_API_SECRET_KEY"`
	URL                string        `env:"ALPACA_WS_URL" envDefault:"wss://stream.data.alpaca.markets/v2/iex"`
	Format             string        `env:"FEED_FORMAT" envDefault:"auto"`
	MissingFieldPolicy string        `env:"FEED_MISSING_FIELD_POLICY" envDefault:"drop"`
	StopOnAuthError    bool          `env:"FEED_STOP_ON_AUTH_ERROR" envDefault:"true"`
	HandshakeTimeout   time.Duration `env:"STREAM_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	// ReadTimeout of zero waits forever for the next frame.
	ReadTimeout time.Duration `env:"STREAM_READ_TIMEOUT" envDefault:"0s"`
}

// QueueConfig bounds the reader to aggregator handoff.
type QueueConfig struct {
	Capacity       int    `env:"CAPACITY" envDefault:"65536"`
	OverflowPolicy string `env:"OVERFLOW_POLICY" envDefault:"drop_oldest"`
}

// AggregatorConfig controls windowing.
type AggregatorConfig struct {
	Period           time.Duration `env:"PERIOD" envDefault:"1s"`
	FlushTimeout     time.Duration `env:"FLUSH_TIMEOUT" envDefault:"5s"`
	AlignToWallClock bool          `env:"ALIGN_TO_WALL_CLOCK" envDefault:"false"`
}

// KafkaConfig holds the configuration for the Kafka bar sink.
type KafkaConfig struct {
	Brokers      []string      `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic        string        `env:"TOPIC" envDefault:"bars"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

// PublishConfig bounds retries of transient sink failures.
type PublishConfig struct {
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"3"`
	MinBackoff time.Duration `env:"MIN_BACKOFF" envDefault:"100ms"`
	MaxBackoff time.Duration `env:"MAX_BACKOFF" envDefault:"2s"`
}

// Load loads the configuration from environment variables and an optional .env file.
func Load(cfg *Config) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return errors.NewErrorDetailsWithCause("failed to parse config", string(errors.ConfigValidationError), "env", err)
	}

	// REDIS_URL mirrors the feed variables: a single DSN for the standalone sink.
	if cfg.Redis.URL == "" && cfg.Redis.Mode == redis.Standalone {
		cfg.Redis.URL = DefaultRedisURL
	}

	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// IsSIPFeed reports whether the feed URL points at the SIP feed, which needs a paid subscription.
func (c *Config) IsSIPFeed() bool {
	return strings.Contains(c.Feed.URL, "/v2/sip")
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	baseErr := errors.NewBaseError()
	invalid := func(message, field string) {
		baseErr.AddErrorDetails(errors.NewErrorDetails(message, string(errors.ConfigValidationError), field))
	}

	if strings.TrimSpace(c.Symbol) == "" {
		invalid("symbol is required", "symbol")
	}
	if c.Feed.KeyID == "" {
		invalid("feed key id is required", "APCA_API_KEY_ID")
	}
	if c.Feed.SecretKey == "" {
		invalid("feed secret key is required", "APCA_API_SECRET_KEY")
	}
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		invalid("feed url must use ws or wss", "ALPACA_WS_URL")
	}
	if _, err := decoderv1.ParseFormat(c.Feed.Format); err != nil {
		invalid(err.Error(), "FEED_FORMAT")
	}
	if _, err := decoderv1.ParseMissingFieldPolicy(c.Feed.MissingFieldPolicy); err != nil {
		invalid(err.Error(), "FEED_MISSING_FIELD_POLICY")
	}
	if c.Feed.ReadTimeout < 0 {
		invalid("read timeout must not be negative", "STREAM_READ_TIMEOUT")
	}
	if c.Queue.Capacity <= 0 {
		invalid("queue capacity must be positive", "QUEUE_CAPACITY")
	}
	if _, err := queuev1.ParseOverflowPolicy(c.Queue.OverflowPolicy); err != nil {
		invalid(err.Error(), "QUEUE_OVERFLOW_POLICY")
	}
	if c.Aggregator.Period <= 0 {
		invalid("aggregator period must be positive", "AGGREGATOR_PERIOD")
	}
	if c.Aggregator.FlushTimeout <= 0 {
		invalid("flush timeout must be positive", "AGGREGATOR_FLUSH_TIMEOUT")
	}
	if len(c.Sinks) == 0 {
		invalid("at least one sink is required", "SINKS")
	}
	for _, s := range c.Sinks {
		if !strings.EqualFold(strings.TrimSpace(s), SinkRedis) && !strings.EqualFold(strings.TrimSpace(s), SinkKafka) {
			invalid("unknown sink "+s, "SINKS")
		}
	}
	if c.HasSink(SinkKafka) {
		if len(c.Kafka.Brokers) == 0 {
			invalid("kafka brokers are required for the kafka sink", "KAFKA_BROKERS")
		}
		if c.Kafka.Topic == "" {
			invalid("kafka topic is required for the kafka sink", "KAFKA_TOPIC")
		}
	}
	if c.Publish.MaxRetries < 0 {
		invalid("max retries must not be negative", "PUBLISH_MAX_RETRIES")
	}
	if c.Publish.MinBackoff < 0 || c.Publish.MaxBackoff < c.Publish.MinBackoff {
		invalid("publish backoff range is invalid", "PUBLISH_MIN_BACKOFF")
	}

	if baseErr.HasDetails() {
		return baseErr
	}
	return nil
}
