package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	queuev1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/queue/v1"
	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 65536

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.NewErrorDetails("tick queue is closed", string(errors.QueueClosedError), "queue")

// DropRecorder is notified of every tick discarded by the overflow policy.
type DropRecorder interface {
	QueueDropped()
}

// Queue is a bounded channel-backed tick queue with a single producer and a single consumer.
type Queue struct {
	ch       chan tickv1.Tick
	policy   queuev1.OverflowPolicy
	recorder DropRecorder

	// mu serializes Push against Close so a send never races a channel close.
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	dropped  atomic.Uint64
}

// NewQueue creates a queue. A non-positive capacity falls back to DefaultCapacity.
func NewQueue(capacity int, policy queuev1.OverflowPolicy, recorder DropRecorder) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy == "" {
		policy = queuev1.OverflowDropOldest
	}

	return &Queue{
		ch:       make(chan tickv1.Tick, capacity),
		policy:   policy,
		recorder: recorder,
		done:     make(chan struct{}),
	}
}

// Push enqueues tick according to the overflow policy.
// Under OverflowBlock it waits for capacity, ctx cancellation, or Close.
func (q *Queue) Push(ctx context.Context, tick tickv1.Tick) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- tick:
		return nil
	default:
	}

	switch q.policy {
	case queuev1.OverflowDropNewest:
		q.drop()
		return nil
	case queuev1.OverflowDropOldest:
		for {
			select {
			case <-q.ch:
				q.drop()
			default:
			}

			select {
			case q.ch <- tick:
				return nil
			default:
			}
		}
	default:
		select {
		case q.ch <- tick:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		}
	}
}

func (q *Queue) drop() {
	q.dropped.Add(1)
	if q.recorder != nil {
		q.recorder.QueueDropped()
	}
}

// C returns the receive side. It is closed after Close once drained.
func (q *Queue) C() <-chan tickv1.Tick {
	return q.ch
}

// Close marks end of stream. Subsequent calls are no-ops.
func (q *Queue) Close() {
	// Wake a producer blocked in Push before taking the write lock.
	q.doneOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of queued ticks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns the number of ticks discarded by the overflow policy.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

var _ queuev1.Queue = (*Queue)(nil)
