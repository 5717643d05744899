package queuev1

import (
	"context"
	"fmt"

	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
)

// OverflowPolicy decides what happens when a tick is pushed onto a full queue.
type OverflowPolicy string

const (
	// OverflowBlock makes the producer wait for free capacity.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropNewest discards the incoming tick.
	OverflowDropNewest OverflowPolicy = "drop_newest"
	// OverflowDropOldest discards the head of the queue to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
)

// ParseOverflowPolicy validates a configured policy name.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case OverflowBlock, OverflowDropNewest, OverflowDropOldest:
		return OverflowPolicy(s), nil
	}
	return "", fmt.Errorf("unknown overflow policy %q", s)
}

// Queue is the single-producer single-consumer handoff between the stream reader and the aggregator.
type Queue interface {
	// Push enqueues a tick, applying the overflow policy when full.
	Push(ctx context.Context, tick tickv1.Tick) error
	// C is closed once Close was called and every queued tick was received.
	C() <-chan tickv1.Tick
	// Close signals end of stream. Safe to call more than once.
	Close()
	// Len returns the number of queued ticks.
	Len() int
	// Dropped returns the number of ticks discarded by the overflow policy.
	Dropped() uint64
}
