package barpublisherv1

import (
	"context"

	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
)

// Publisher defines the interface for publishing flushed bars.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=barpublisherv1_mock
type Publisher interface {
	// Publish delivers one bar to the sink.
	Publish(ctx context.Context, bar *barv1.Bar) error
	// Close releases the sink's resources.
	Close() error
}
