package barpublisher

import (
	"context"
	stderrors "errors"

	barpublisherv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
)

const (
	// SinkNameRedis labels the Redis sink in logs and metrics.
	SinkNameRedis = "redis"
	// SinkNameKafka labels the Kafka sink in logs and metrics.
	SinkNameKafka = "kafka"
)

// FailureRecorder is notified of every failed publish attempt.
type FailureRecorder interface {
	PublishFailed(sink string)
}

// NamedPublisher pairs a sink with the label used for it in metrics.
type NamedPublisher struct {
	Name      string
	Publisher barpublisherv1.Publisher
}

// FanoutPublisher publishes each bar to every sink in order and stops at the first failure.
type FanoutPublisher struct {
	sinks    []NamedPublisher
	recorder FailureRecorder
}

// NewFanoutPublisher creates a FanoutPublisher. recorder may be nil.
func NewFanoutPublisher(recorder FailureRecorder, sinks ...NamedPublisher) *FanoutPublisher {
	return &FanoutPublisher{
		sinks:    sinks,
		recorder: recorder,
	}
}

// Publish implements barpublisherv1.Publisher.
func (f *FanoutPublisher) Publish(ctx context.Context, bar *barv1.Bar) error {
	for _, sink := range f.sinks {
		if err := sink.Publisher.Publish(ctx, bar); err != nil {
			if f.recorder != nil {
				f.recorder.PublishFailed(sink.Name)
			}
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (f *FanoutPublisher) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
