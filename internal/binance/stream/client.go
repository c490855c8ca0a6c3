package stream

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"binancebridge/internal/binance/symbols"
	"binancebridge/pkg/binance"
	"binancebridge/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Enqueuer accepts decoded events for asynchronous delivery. Enqueue must not block.
type Enqueuer interface {
	Enqueue(key string, payload []byte) error
}

// Observer is notified once per received frame.
type Observer interface {
	Observe()
}

// Client owns one combined trade stream connection at a time. Each Run call is a
// single session: connect, process frames until the connection ends, return.
// Reconnecting is the caller's job. Run must not be called concurrently.
type Client struct {
	url       string
	symbols   symbols.SymbolSet
	transport binance.Transport
	publisher Enqueuer
	monitor   Observer
	metrics   *metrics.Collector
	logger    *zap.Logger

	state atomic.Int32

	dropLog    rate.Sometimes
	suppressed int
}

// NewClient builds a client for the <symbol>@trade streams of set.
func NewClient(baseURL string, set symbols.SymbolSet, transport binance.Transport, publisher Enqueuer,
	monitor Observer, m *metrics.Collector, logger *zap.Logger) (*Client, error) {
	url, err := binance.CombinedStreamURL(baseURL, set.StreamNames(binance.ChannelTrade))
	if err != nil {
		return nil, err
	}

	return &Client{
		url:       url,
		symbols:   set,
		transport: transport,
		publisher: publisher,
		monitor:   monitor,
		metrics:   m,
		logger:    logger,
		dropLog:   rate.Sometimes{First: 1, Interval: time.Second},
	}, nil
}

// URL is the combined stream URL this client subscribes to.
func (c *Client) URL() string {
	return c.url
}

// State returns the current connection state. Safe for concurrent use.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Run opens the stream and processes frames until the connection ends. It returns
// a *binance.ConnectionError when the session fails or the server closes it, and
// ctx.Err() when ctx is cancelled. The client is Disconnected when Run returns.
func (c *Client) Run(ctx context.Context) error {
	c.transition(Connecting)

	events, err := c.transport.Connect(ctx, c.url)
	if err != nil {
		c.transition(Disconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var connErr *binance.ConnectionError
		if !errors.As(err, &connErr) {
			err = &binance.ConnectionError{Op: "dial", Err: err}
		}
		c.logger.Warn("failed to connect to binance websocket", zap.Error(err))
		return err
	}

	c.transition(Connected)
	c.logger.Info("connected to binance websocket", zap.Stringer("tracking", c.symbols))

	for {
		select {
		case <-ctx.Done():
			return c.shutdown(ctx)

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return c.shutdown(ctx)
				}
				return c.disconnect(&binance.ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF})
			}

			switch ev.Kind {
			case binance.EventMessage:
				c.handleFrame(ev.Data)
			case binance.EventClosed:
				return c.disconnect(&binance.ConnectionError{Op: "close", CloseCode: ev.CloseCode, Err: ev.Err})
			case binance.EventError:
				return c.disconnect(&binance.ConnectionError{Op: "read", Err: ev.Err})
			}
		}
	}
}

func (c *Client) shutdown(ctx context.Context) error {
	c.transition(Closing)
	c.transition(Disconnected)
	c.logger.Info("binance websocket closed on shutdown")
	return ctx.Err()
}

func (c *Client) disconnect(err *binance.ConnectionError) error {
	c.transition(Disconnected)
	c.logger.Warn("binance websocket disconnected", zap.Error(err))
	return err
}

// handleFrame runs synchronously on the receive loop; nothing here may block or
// propagate a per-frame failure.
func (c *Client) handleFrame(raw []byte) {
	c.metrics.FrameReceived()
	c.monitor.Observe()

	ev, err := Decode(raw)
	if err != nil {
		c.metrics.DecodeFailed()
		c.logger.Warn("dropping undecodable frame", zap.Error(err))
		return
	}

	if err := c.publisher.Enqueue(ev.RoutingKey, ev.Payload); err != nil {
		c.suppressed++
		c.dropLog.Do(func() {
			c.logger.Warn("dropping trade event",
				zap.String("stream", ev.StreamName),
				zap.String("key", ev.RoutingKey),
				zap.Int("dropped", c.suppressed),
				zap.Error(err))
			c.suppressed = 0
		})
	}
}

func (c *Client) transition(next ConnectionState) {
	prev := ConnectionState(c.state.Load())
	if !prev.CanTransition(next) {
		c.logger.DPanic("invalid connection state transition",
			zap.Stringer("from", prev), zap.Stringer("to", next))
	}
	c.state.Store(int32(next))
	c.metrics.SetConnectionState(int(next))
	c.logger.Debug("connection state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
}
