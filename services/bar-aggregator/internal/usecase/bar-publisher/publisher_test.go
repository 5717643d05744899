package barpublisher

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	loggermock "github.com/muhammadchandra19/bar-aggregator/pkg/logger/mock"
	redismock "github.com/muhammadchandra19/bar-aggregator/pkg/redis/mock"
	barpublishermock "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1/mock"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/pkg/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBar() *barv1.Bar {
	return &barv1.Bar{
		Symbol:    "SPY",
		Timestamp: "2024-03-01T19:30:01Z",
		Open:      100,
		High:      105,
		Low:       100,
		Close:     102,
		Volume:    4,
	}
}

const testPayload = `{"symbol":"SPY","timestamp":"2024-03-01T19:30:01Z","open":100,"high":105,"low":100,"close":102,"volume":4}`

func TestRedisPublisher_Publish(t *testing.T) {
	testCases := []struct {
		name     string
		mockFn   func(client *redismock.MockClient)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "publishes payload on symbol channel",
			mockFn: func(client *redismock.MockClient) {
				client.EXPECT().
					Publish(gomock.Any(), "bars:SPY", gomock.Any()).
					DoAndReturn(func(_ context.Context, _ string, message any) (int64, error) {
						payload, ok := message.([]byte)
						require.True(t, ok)
						assert.JSONEq(t, testPayload, string(payload))
						return 2, nil
					})
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "no subscribers is not an error",
			mockFn: func(client *redismock.MockClient) {
				client.EXPECT().Publish(gomock.Any(), "bars:SPY", gomock.Any()).Return(int64(0), nil)
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "client failure is returned",
			mockFn: func(client *redismock.MockClient) {
				client.EXPECT().
					Publish(gomock.Any(), "bars:SPY", gomock.Any()).
					Return(int64(0), errors.NewErrorDetails("Failed to publish message to Redis", string(errors.RedisPublishError), "publish"))
				client.EXPECT().Ping(gomock.Any()).Return(nil)
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.RedisPublishError)))
				assert.True(t, IsTransient(err))
			},
		},
		{
			name: "lost connection is re-established before returning",
			mockFn: func(client *redismock.MockClient) {
				gomock.InOrder(
					client.EXPECT().
						Publish(gomock.Any(), "bars:SPY", gomock.Any()).
						Return(int64(0), errors.NewErrorDetails("Failed to publish message to Redis", string(errors.RedisPublishError), "publish")),
					client.EXPECT().Ping(gomock.Any()).Return(stderrors.New("connection refused")),
					client.EXPECT().Reconnect(gomock.Any()).Return(true),
				)
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.RedisPublishError)))
			},
		},
		{
			name: "failed reconnect still returns the publish error",
			mockFn: func(client *redismock.MockClient) {
				client.EXPECT().
					Publish(gomock.Any(), "bars:SPY", gomock.Any()).
					Return(int64(0), errors.NewErrorDetails("Failed to publish message to Redis", string(errors.RedisPublishError), "publish"))
				client.EXPECT().Ping(gomock.Any()).Return(stderrors.New("connection refused"))
				client.EXPECT().Reconnect(gomock.Any()).Return(false)
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, IsTransient(err))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := redismock.NewMockClient(ctrl)
			tc.mockFn(client)

			p := NewRedisPublisher(client, logger.NewNop())
			tc.assertFn(t, p.Publish(context.Background(), testBar()))
		})
	}
}

func TestRedisPublisher_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := redismock.NewMockClient(ctrl)
	client.EXPECT().Disconnect(gomock.Any()).Return(nil)

	assert.NoError(t, NewRedisPublisher(client, logger.NewNop()).Close())
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("writes keyed message", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, logger.NewNop())

		require.NoError(t, p.Publish(context.Background(), testBar()))
		require.Len(t, w.msgs, 1)
		assert.Equal(t, "SPY", string(w.msgs[0].Key))
		assert.JSONEq(t, testPayload, string(w.msgs[0].Value))

		require.NoError(t, p.Close())
		assert.True(t, w.closed)
	})

	t.Run("write failure is transient", func(t *testing.T) {
		w := &fakeWriter{err: stderrors.New("leader not available")}
		p := newKafkaPublisher(w, logger.NewNop())

		err := p.Publish(context.Background(), testBar())
		assert.True(t, errors.ErrorCodeEquals(err, string(errors.KafkaWriteError)))
		assert.True(t, IsTransient(err))
		assert.ErrorContains(t, err, "leader not available")
	})

	t.Run("constructor targets configured topic", func(t *testing.T) {
		p := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "bars"}, logger.NewNop())
		writer, ok := p.writer.(*kafka.Writer)
		require.True(t, ok)
		assert.Equal(t, "bars", writer.Topic)
	})
}

type recordedFailures struct {
	sinks []string
}

func (r *recordedFailures) PublishFailed(sink string) {
	r.sinks = append(r.sinks, sink)
}

func TestFanoutPublisher(t *testing.T) {
	boom := stderrors.New("boom")

	testCases := []struct {
		name         string
		mockFn       func(first, second *barpublishermock.MockPublisher)
		wantErr      error
		wantFailures []string
	}{
		{
			name: "publishes to every sink in order",
			mockFn: func(first, second *barpublishermock.MockPublisher) {
				gomock.InOrder(
					first.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
					second.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
				)
			},
		},
		{
			name: "first failure stops the fan out",
			mockFn: func(first, second *barpublishermock.MockPublisher) {
				first.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(boom)
			},
			wantErr:      boom,
			wantFailures: []string{"redis"},
		},
		{
			name: "second failure is reported",
			mockFn: func(first, second *barpublishermock.MockPublisher) {
				first.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
				second.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(boom)
			},
			wantErr:      boom,
			wantFailures: []string{"kafka"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			first := barpublishermock.NewMockPublisher(ctrl)
			second := barpublishermock.NewMockPublisher(ctrl)
			tc.mockFn(first, second)

			rec := &recordedFailures{}
			f := NewFanoutPublisher(rec,
				NamedPublisher{Name: SinkNameRedis, Publisher: first},
				NamedPublisher{Name: SinkNameKafka, Publisher: second},
			)

			err := f.Publish(context.Background(), testBar())
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.wantFailures, rec.sinks)
		})
	}
}

func TestFanoutPublisher_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := barpublishermock.NewMockPublisher(ctrl)
	second := barpublishermock.NewMockPublisher(ctrl)
	first.EXPECT().Close().Return(stderrors.New("redis close"))
	second.EXPECT().Close().Return(nil)

	err := NewFanoutPublisher(nil,
		NamedPublisher{Name: SinkNameRedis, Publisher: first},
		NamedPublisher{Name: SinkNameKafka, Publisher: second},
	).Close()
	assert.ErrorContains(t, err, "redis close")
}

func TestRetryPublisher_Publish(t *testing.T) {
	transient := errors.NewErrorDetails("Failed to publish message to Redis", string(errors.RedisPublishError), "publish")
	permanent := errors.NewErrorDetails("failed to marshal bar", string(errors.PublishMarshalError), "bar")

	testCases := []struct {
		name     string
		mockFn   func(next *barpublishermock.MockPublisher, log *loggermock.MockInterface)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "success on first attempt",
			mockFn: func(next *barpublishermock.MockPublisher, log *loggermock.MockInterface) {
				next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "transient failure recovers",
			mockFn: func(next *barpublishermock.MockPublisher, log *loggermock.MockInterface) {
				gomock.InOrder(
					next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(transient),
					next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(transient),
					next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
				)
				log.EXPECT().WarnContext(gomock.Any(), "publish failed, retrying", gomock.Any()).Times(2)
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "transient failure exhausts retries",
			mockFn: func(next *barpublishermock.MockPublisher, log *loggermock.MockInterface) {
				next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(transient).Times(4)
				log.EXPECT().WarnContext(gomock.Any(), "publish failed, retrying", gomock.Any()).Times(3)
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.RedisPublishError)))
			},
		},
		{
			name: "permanent failure is not retried",
			mockFn: func(next *barpublishermock.MockPublisher, log *loggermock.MockInterface) {
				next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(permanent).Times(1)
			},
			assertFn: func(t *testing.T, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.PublishMarshalError)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			next := barpublishermock.NewMockPublisher(ctrl)
			log := loggermock.NewMockInterface(ctrl)
			tc.mockFn(next, log)

			r := NewRetryPublisher(next, config.PublishConfig{
				MaxRetries: 3,
				MinBackoff: time.Millisecond,
				MaxBackoff: 2 * time.Millisecond,
			}, log)

			tc.assertFn(t, r.Publish(context.Background(), testBar()))
		})
	}
}

func TestRetryPublisher_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	transient := errors.NewErrorDetails("failed to write bar to kafka", string(errors.KafkaWriteError), "bar")
	next := barpublishermock.NewMockPublisher(ctrl)
	next.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(transient).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetryPublisher(next, config.PublishConfig{
		MaxRetries: 3,
		MinBackoff: time.Hour,
		MaxBackoff: time.Hour,
	}, logger.NewNop())

	err := r.Publish(ctx, testBar())
	assert.True(t, errors.ErrorCodeEquals(err, string(errors.KafkaWriteError)))
}

func TestRetryPublisher_Backoff(t *testing.T) {
	r := &RetryPublisher{minBackoff: 100 * time.Millisecond, maxBackoff: 2 * time.Second}

	for attempt, base := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond} {
		d := r.backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}

	d := r.backoff(10)
	assert.GreaterOrEqual(t, d, 2*time.Second)
	assert.LessOrEqual(t, d, 3*time.Second)
}

func TestRetryPublisher_BackoffLargeAttempts(t *testing.T) {
	r := &RetryPublisher{minBackoff: 100 * time.Millisecond, maxBackoff: 2 * time.Second}

	for _, attempt := range []int{30, 40, 63, 64, 1000} {
		d := r.backoff(attempt)
		assert.GreaterOrEqual(t, d, 2*time.Second, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 3*time.Second, "attempt %d", attempt)
	}
}
