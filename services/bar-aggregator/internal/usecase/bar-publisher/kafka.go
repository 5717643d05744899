package barpublisher

import (
	"context"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/pkg/config"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes bars to a Kafka topic keyed by symbol.
type KafkaPublisher struct {
	writer messageWriter
	logger logger.Interface
}

// NewKafkaPublisher creates a KafkaPublisher for the configured brokers and topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger logger.Interface) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}

	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger logger.Interface) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

// Publish implements barpublisherv1.Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, bar *barv1.Bar) error {
	payload, err := barv1.ToBytes(bar)
	if err != nil {
		return errors.NewErrorDetailsWithCause("failed to marshal bar", string(errors.PublishMarshalError), "bar", err)
	}

	msg := kafka.Message{
		Key:   []byte(bar.Symbol),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.NewErrorDetailsWithCause("failed to write bar to kafka", string(errors.KafkaWriteError), "bar", err)
	}

	p.logger.DebugContext(ctx, "bar published",
		logger.Field{Key: "sink", Value: SinkNameKafka},
		logger.Field{Key: "key", Value: bar.Symbol},
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
