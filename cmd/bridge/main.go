package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"binancebridge/config"
	"binancebridge/internal/binance/collector"
	"binancebridge/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	if err := run(cfg, log); err != nil {
		os.Exit(1)
	}
}

// run returns instead of exiting so its deferred calls flush logs and release the signal handler.
func run(cfg *config.Config, log *zap.Logger) error {
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// run collector until SIGINT/SIGTERM
	if err := collector.StartCollector(ctx, cfg, log, reg); err != nil {
		log.Error("collector failed", zap.Error(err))
		return err
	}
	log.Info("collector stopped")
	return nil
}
