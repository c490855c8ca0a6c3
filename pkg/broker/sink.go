package broker

import (
	"fmt"

	"binancebridge/config"
	"binancebridge/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// NewSink creates the message.Publisher for cfg.Driver. addrs are the resolved
// bootstrap servers; the memory driver ignores them.
func NewSink(cfg config.BrokerConfig, addrs []string, log *zap.Logger) (message.Publisher, error) {
	switch cfg.Driver {
	case config.DriverKafka:
		return newKafkaSink(addrs, cfg.ClientID, cfg.RetryDelay, log.Named("kafka")), nil
	case config.DriverFranz:
		pub, err := newFranzSink(addrs, cfg.ClientID, cfg.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("create franz publisher: %w", err)
		}
		return pub, nil
	case config.DriverMemory:
		return NewMemorySink(logger.NewWatermillAdapter(log.Named("memory"))), nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// OptionsFrom maps the broker config onto Publisher options.
func OptionsFrom(cfg config.BrokerConfig) Options {
	return Options{
		Topic:           cfg.Topic,
		BufferSize:      cfg.BufferSize,
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}
