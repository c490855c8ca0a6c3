package collector

import (
	"context"
	"fmt"
	"time"

	"binancebridge/pkg/metrics"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is the pause between the end of a stream session and the next connect.
const DefaultReconnectDelay = 5 * time.Second

// Runner is one stream session. It returns when the session ends for any reason.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor restarts its Runner forever with a fixed delay in between. Only ctx
// cancellation stops it.
type Supervisor struct {
	runner  Runner
	backoff backoff.BackOff
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewSupervisor(runner Runner, delay time.Duration, m *metrics.Collector, logger *zap.Logger) *Supervisor {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Supervisor{
		runner:  runner,
		backoff: backoff.NewConstantBackOff(delay),
		sleep:   sleepContext,
		metrics: m,
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled. Session errors are logged and never returned.
func (s *Supervisor) Run(ctx context.Context) error {
	s.backoff.Reset()

	for attempt := 1; ; attempt++ {
		err := s.runner.Run(ctx)
		if ctx.Err() != nil {
			s.logger.Info("supervisor stopped", zap.Int("sessions", attempt))
			return nil
		}

		delay := s.backoff.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("reconnect abandoned after %d sessions: %w", attempt, err)
		}

		s.metrics.Reconnect()
		s.logger.Warn("stream session ended, reconnecting",
			zap.Int("session", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Info("supervisor stopped during reconnect delay", zap.Int("sessions", attempt))
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
