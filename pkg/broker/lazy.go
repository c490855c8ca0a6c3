package broker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrSinkUnavailable is returned by a lazy sink while its client cannot be created.
var ErrSinkUnavailable = errors.New("broker: sink unavailable")

// DefaultSinkRetryDelay is the wait between attempts to create an unavailable client.
const DefaultSinkRetryDelay = 5 * time.Second

// lazySink defers creating the real publisher until the first Publish and keeps
// retrying after failures, so a broker that is down at startup does not stop the
// process. Publish calls in the retry window fail fast with ErrSinkUnavailable.
type lazySink struct {
	name    string
	create  func() (message.Publisher, error)
	backoff backoff.BackOff
	now     func() time.Time
	logger  *zap.Logger

	mu      sync.Mutex
	pub     message.Publisher
	retryAt time.Time
	closed  bool
}

func newLazySink(name string, create func() (message.Publisher, error), delay time.Duration, logger *zap.Logger) *lazySink {
	if delay <= 0 {
		delay = DefaultSinkRetryDelay
	}
	return &lazySink{
		name:    name,
		create:  create,
		backoff: backoff.NewConstantBackOff(delay),
		now:     time.Now,
		logger:  logger,
	}
}

func (s *lazySink) Publish(topic string, msgs ...*message.Message) error {
	pub, err := s.publisher()
	if err != nil {
		return err
	}
	return pub.Publish(topic, msgs...)
}

func (s *lazySink) publisher() (message.Publisher, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrPublisherClosed
	case s.pub != nil:
		pub := s.pub
		s.mu.Unlock()
		return pub, nil
	case s.now().Before(s.retryAt):
		s.mu.Unlock()
		return nil, ErrSinkUnavailable
	}
	s.retryAt = s.now().Add(s.backoff.NextBackOff())
	s.mu.Unlock()

	// creating a client may take seconds; Close must not wait for it
	pub, err := s.create()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("broker client unavailable, will retry",
			zap.String("driver", s.name),
			zap.Time("retry_at", s.retryAt),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	if s.closed {
		_ = pub.Close()
		return nil, ErrPublisherClosed
	}

	s.pub = pub
	s.backoff.Reset()
	s.logger.Info("broker client connected", zap.String("driver", s.name))
	return pub, nil
}

func (s *lazySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.pub == nil {
		return nil
	}
	return s.pub.Close()
}
