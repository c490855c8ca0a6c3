package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"binancebridge/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSink stores every published message. release, when set, blocks Publish until closed.
type recordingSink struct {
	mu      sync.Mutex
	topics  []string
	msgs    []*message.Message
	err     error
	release chan struct{}
	closed  bool
}

func (s *recordingSink) Publish(topic string, msgs ...*message.Message) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) published() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*message.Message(nil), s.msgs...)
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestMetrics(t *testing.T) *metrics.Collector {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

// go test -v --run TestEnqueueQueueFull
func TestEnqueueQueueFull(t *testing.T) {
	m := newTestMetrics(t)
	// Run is never started, the same as a broker that stopped draining
	pub := NewPublisher(&recordingSink{}, Options{Topic: "binance", BufferSize: 2}, m, zap.NewNop())

	require.NoError(t, pub.Enqueue("btcusdt", []byte("1")))
	require.NoError(t, pub.Enqueue("btcusdt", []byte("2")))

	start := time.Now()
	err := pub.Enqueue("btcusdt", []byte("3"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "enqueue must not wait for room")

	assert.ErrorIs(t, err, ErrQueueFull)
	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, QueueFull, pubErr.Reason)
	assert.Equal(t, "btcusdt", pubErr.Key)

	assert.Equal(t, 2, pub.Pending())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Enqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonQueueFull)))
}

// go test -v --run TestEnqueueDoesNotBlockOnSlowBroker
func TestEnqueueDoesNotBlockOnSlowBroker(t *testing.T) {
	sink := &recordingSink{release: make(chan struct{})}
	pub := NewPublisher(sink, Options{BufferSize: 4, BatchSize: 1, FlushInterval: time.Hour}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	var full int
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := pub.Enqueue("ethusdt", []byte("x")); errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Positive(t, full, "a stalled broker must surface as QueueFull")

	close(sink.release)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not stop")
	}
}

// go test -v --run TestPublisherDeliversKeyAndPayload
func TestPublisherDeliversKeyAndPayload(t *testing.T) {
	m := newTestMetrics(t)
	sink := &recordingSink{}
	pub := NewPublisher(sink, Options{Topic: "binance", BatchSize: 2, FlushInterval: 10 * time.Millisecond}, m, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	payloads := []string{
		`{"stream":"btcusdt@trade","data":{"p":"1"}}`,
		`{"stream":"ethusdt@trade","data":{"p":"2"}}`,
		`{"stream":"btcusdt@trade","data":{"p":"3"}}`,
	}
	keys := []string{"btcusdt", "ethusdt", "btcusdt"}
	for i := range payloads {
		require.NoError(t, pub.Enqueue(keys[i], []byte(payloads[i])))
	}

	require.Eventually(t, func() bool { return len(sink.published()) == 3 }, 2*time.Second, 5*time.Millisecond)

	for i, msg := range sink.published() {
		assert.Equal(t, keys[i], msg.Metadata.Get(KeyMetadata))
		assert.Equal(t, payloads[i], string(msg.Payload))
		assert.Len(t, msg.UUID, 26)
	}
	assert.Equal(t, "binance", sink.topics[0])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Published))
}

// go test -v --run TestPublisherFlushesOnShutdown
func TestPublisherFlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(sink, Options{BatchSize: 100, FlushInterval: time.Hour}, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Enqueue("solusdt", []byte("x")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pub.Run(ctx))

	assert.Len(t, sink.published(), 5)
	assert.True(t, sink.isClosed())

	err := pub.Enqueue("solusdt", []byte("late"))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

// go test -v --run TestPublisherShutdownTimeoutBoundsBlockedFlush
func TestPublisherShutdownTimeoutBoundsBlockedFlush(t *testing.T) {
	m := newTestMetrics(t)
	// a broker that never acknowledges
	sink := &recordingSink{release: make(chan struct{})}
	t.Cleanup(func() { close(sink.release) })

	pub := NewPublisher(sink, Options{
		BatchSize:       100,
		FlushInterval:   time.Hour,
		ShutdownTimeout: 100 * time.Millisecond,
	}, m, zap.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Enqueue("adausdt", []byte("x")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run ignored the shutdown timeout")
	}
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, sink.isClosed(), "sink must be closed even when the final flush is abandoned")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonClosed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Published))
}

// go test -v --run TestPublisherDropsFailedBatch
func TestPublisherDropsFailedBatch(t *testing.T) {
	m := newTestMetrics(t)
	sink := &recordingSink{err: errors.New("broker unavailable")}
	pub := NewPublisher(sink, Options{BatchSize: 3, FlushInterval: time.Hour}, m, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Enqueue("xrpusdt", []byte("x")))
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonPublishFailed)) == 3
	}, 2*time.Second, 5*time.Millisecond)

	// the worker keeps going after a failed flush
	require.NoError(t, pub.Enqueue("xrpusdt", []byte("y")))
}

// go test -v --run TestPublisherWithMemorySink
func TestPublisherWithMemorySink(t *testing.T) {
	sink := NewMemorySink(watermill.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received, err := sink.Subscribe(ctx, "binance")
	require.NoError(t, err)

	pub := NewPublisher(sink, Options{Topic: "binance", FlushInterval: 5 * time.Millisecond}, nil, zap.NewNop())
	go func() { _ = pub.Run(ctx) }()

	require.NoError(t, pub.Enqueue("bnbusdt", []byte(`{"stream":"bnbusdt@trade","data":{}}`)))

	select {
	case msg := <-received:
		assert.Equal(t, "bnbusdt", msg.Metadata.Get(KeyMetadata))
		assert.JSONEq(t, `{"stream":"bnbusdt@trade","data":{}}`, string(msg.Payload))
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
