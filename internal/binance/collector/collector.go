package collector

import (
	"context"
	"fmt"

	"binancebridge/config"
	"binancebridge/internal/binance/snapshot"
	"binancebridge/internal/binance/stream"
	"binancebridge/internal/binance/symbols"
	"binancebridge/internal/binance/throughput"
	"binancebridge/pkg/binance"
	"binancebridge/pkg/broker"
	"binancebridge/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StartCollector wires the Binance trade stream to the broker and blocks until ctx
// is cancelled. It only returns an error when startup fails or the metrics
// listener cannot bind; stream and broker failures are logged and retried.
// A nil reg disables metrics registration and the metrics listener.
func StartCollector(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) error {
	set, err := symbols.New(cfg.Binance.Symbols)
	if err != nil {
		return err
	}

	if cfg.Binance.REST.ValidateSymbols {
		loader := &snapshot.SymbolLoader{
			Client:  binance.NewRESTClient(cfg.Binance.REST.BaseURL, cfg.Binance.REST.Timeout),
			Timeout: cfg.Binance.REST.Timeout,
			Logger:  logger.Named("snapshot"),
		}
		if err := loader.Verify(ctx, set); err != nil {
			return fmt.Errorf("failed to validate symbols: %w", err)
		}
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	m, err := metrics.New(registerer)
	if err != nil {
		return err
	}

	addrs := cfg.Broker.Addresses(ctx, cfg.Environment)
	sink, err := broker.NewSink(cfg.Broker, addrs, logger)
	if err != nil {
		return err
	}
	logger.Info("broker sink ready",
		zap.String("driver", cfg.Broker.Driver),
		zap.Strings("bootstrap_servers", addrs),
		zap.String("topic", cfg.Broker.Topic))

	publisher := broker.NewPublisher(sink, broker.OptionsFrom(cfg.Broker), m, logger.Named("publisher"))
	monitor := throughput.NewMonitor(cfg.Throughput.ReportEvery, m, logger.Named("throughput"))
	transport := binance.NewWSClient(cfg.Binance.WS.HandshakeTimeout, cfg.Binance.WS.ReadTimeout, logger.Named("ws"))

	client, err := stream.NewClient(cfg.Binance.WS.BaseURL, set, transport, publisher, monitor, m, logger.Named("stream"))
	if err != nil {
		_ = sink.Close()
		return fmt.Errorf("failed to create stream client: %w", err)
	}
	supervisor := NewSupervisor(client, cfg.Binance.WS.ReconnectDelay, m, logger.Named("supervisor"))

	var memory <-chan *message.Message
	if sub, ok := sink.(message.Subscriber); ok && cfg.Broker.Driver == config.DriverMemory {
		memory, err = sub.Subscribe(ctx, cfg.Broker.Topic)
		if err != nil {
			_ = sink.Close()
			return fmt.Errorf("failed to subscribe to memory sink: %w", err)
		}
	}

	logger.Info("starting collector", zap.String("url", client.URL()), zap.Int("symbols", set.Len()))

	g, gctx := errgroup.WithContext(ctx)

	// The publisher stops after the supervisor so the last received events still get flushed.
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	g.Go(func() error {
		return publisher.Run(pubCtx)
	})
	g.Go(func() error {
		defer stopPublisher()
		return supervisor.Run(gctx)
	})

	if memory != nil {
		g.Go(func() error {
			logMessages(memory, logger.Named("memory"))
			return nil
		})
	}

	if reg != nil && cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.ListenAddr, reg, logger.Named("metrics"))
		})
	}

	return g.Wait()
}

// logMessages drains the in-memory topic so local runs show what would reach Kafka.
func logMessages(messages <-chan *message.Message, logger *zap.Logger) {
	for msg := range messages {
		logger.Debug("message published",
			zap.String("key", msg.Metadata.Get(broker.KeyMetadata)),
			zap.Int("bytes", len(msg.Payload)))
		msg.Ack()
	}
}
