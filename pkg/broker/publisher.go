package broker

import (
	"context"
	"sync"
	"time"

	"binancebridge/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KeyMetadata carries the routing key (trading symbol) of a message. Sinks map it
// to the Kafka record key; no partition is chosen here, the client's default
// key-hash partitioner decides.
const KeyMetadata = "routing_key"

type Options struct {
	Topic           string
	BufferSize      int
	BatchSize       int
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Topic == "" {
		o.Topic = "binance"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 100 * time.Millisecond
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	return o
}

// Publisher decouples the receive loop from the broker. Enqueue drops into a
// bounded buffer and returns at once; Run drains the buffer in batches on its own
// goroutine. Delivery is best effort: a full buffer or a failed flush drops messages.
type Publisher struct {
	sink    message.Publisher
	opts    Options
	queue   chan *message.Message
	done    chan struct{}
	once    sync.Once
	metrics *metrics.Collector
	logger  *zap.Logger

	// worker goroutine only
	failLog rate.Sometimes
	failed  int
}

func NewPublisher(sink message.Publisher, opts Options, m *metrics.Collector, logger *zap.Logger) *Publisher {
	opts = opts.withDefaults()
	return &Publisher{
		sink:    sink,
		opts:    opts,
		queue:   make(chan *message.Message, opts.BufferSize),
		done:    make(chan struct{}),
		metrics: m,
		logger:  logger,
		failLog: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// Enqueue hands payload to the send buffer. It never blocks: when the buffer is
// full it returns a *PublishError wrapping ErrQueueFull.
func (p *Publisher) Enqueue(key string, payload []byte) error {
	select {
	case <-p.done:
		p.metrics.MessagesDropped(metrics.ReasonClosed, 1)
		return &PublishError{Reason: Closed, Key: key, Err: ErrPublisherClosed}
	default:
	}

	msg := message.NewMessage(NewMessageID(), payload)
	msg.Metadata.Set(KeyMetadata, key)

	select {
	case p.queue <- msg:
		p.metrics.MessageEnqueued()
		return nil
	default:
		p.metrics.MessagesDropped(metrics.ReasonQueueFull, 1)
		return &PublishError{Reason: QueueFull, Key: key, Err: ErrQueueFull}
	}
}

// Pending is the number of messages waiting in the send buffer.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

// Run flushes the buffer every FlushInterval or whenever BatchSize messages are
// waiting. On cancellation it drains what is already buffered, flushes it within
// ShutdownTimeout and closes the sink.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*message.Message, 0, p.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			return p.shutdown(batch)

		case msg := <-p.queue:
			batch = append(batch, msg)
			if len(batch) >= p.opts.BatchSize {
				p.flush(batch)
				batch = make([]*message.Message, 0, p.opts.BatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = make([]*message.Message, 0, p.opts.BatchSize)
			}
		}
	}
}

// Close stops accepting messages. Run performs the final flush.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Publisher) shutdown(batch []*message.Message) error {
	p.Close()
	deadline := time.Now().Add(p.opts.ShutdownTimeout)

	var lost int
	for {
	drain:
		for len(batch) < p.opts.BatchSize {
			select {
			case msg := <-p.queue:
				batch = append(batch, msg)
			default:
				break drain
			}
		}
		if len(batch) == 0 {
			break
		}
		if !p.flushBefore(batch, deadline) {
			lost = len(batch) + len(p.queue)
			break
		}
		batch = make([]*message.Message, 0, p.opts.BatchSize)
	}

	if lost > 0 {
		p.metrics.MessagesDropped(metrics.ReasonClosed, lost)
		p.logger.Warn("shutdown timeout reached, dropping buffered messages", zap.Int("messages", lost))
	}

	p.logger.Info("publisher stopped")
	// closing the sink also aborts a send abandoned by flushBefore
	return p.sink.Close()
}

// flushBefore publishes batch unless deadline passes first. An abandoned send is
// left to finish or fail in the background and its result is ignored.
func (p *Publisher) flushBefore(batch []*message.Message, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}

	result := make(chan error, 1)
	go func() {
		result <- p.sink.Publish(p.opts.Topic, batch...)
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case err := <-result:
		p.record(len(batch), err)
		return true
	case <-timer.C:
		return false
	}
}

func (p *Publisher) flush(batch []*message.Message) {
	p.record(len(batch), p.sink.Publish(p.opts.Topic, batch...))
}

func (p *Publisher) record(n int, err error) {
	if err == nil {
		p.metrics.MessagesPublished(n)
		return
	}

	// watermill publishers stop at the first failure, so part of the batch may have been delivered
	p.metrics.MessagesDropped(metrics.ReasonPublishFailed, n)
	p.failed += n
	p.failLog.Do(func() {
		p.logger.Error("failed to publish batch, dropping",
			zap.String("topic", p.opts.Topic),
			zap.Int("dropped", p.failed),
			zap.Error(err))
		p.failed = 0
	})
}
