package broker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the franz sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// FranzClientFactory creates the franz-go client. Tests may replace it.
var FranzClientFactory = func(opts ...kgo.Opt) (Producer, error) {
	return kgo.NewClient(opts...)
}

// franzPublisher adapts a franz-go client to message.Publisher. The client
// connects lazily, so an unreachable cluster shows up as failed batches rather
// than a startup error.
type franzPublisher struct {
	client  Producer
	timeout time.Duration
	closed  atomic.Bool
}

func newFranzSink(brokers []string, clientID string, timeout time.Duration) (message.Publisher, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RecordDeliveryTimeout(timeout),
	}
	if clientID != "" {
		opts = append(opts, kgo.ClientID(clientID))
	}

	client, err := FranzClientFactory(opts...)
	if err != nil {
		return nil, err
	}
	return &franzPublisher{client: client, timeout: timeout}, nil
}

// Publish produces msgs to topic and waits for every record to be acknowledged.
// Records carry the routing key and leave Partition unset for the default sticky
// key partitioner.
func (p *franzPublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	records := make([]*kgo.Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, &kgo.Record{
			Topic: topic,
			Key:   []byte(msg.Metadata.Get(KeyMetadata)),
			Value: msg.Payload,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.client.ProduceSync(ctx, records...).FirstErr()
}

func (p *franzPublisher) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.client.Close()
	}
	return nil
}
