package binance

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventKind tells the consumer what happened on the connection.
type EventKind int

const (
	EventMessage EventKind = iota // a data frame, Data is set
	EventClosed                   // the server closed the connection, CloseCode is set
	EventError                    // the read failed, Err is set
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single notification from a live stream connection. EventClosed and
// EventError are terminal: the channel is closed right after them.
type Event struct {
	Kind      EventKind
	Data      []byte
	CloseCode int
	Err       error
}

// Transport opens a stream and delivers its events in receipt order. The returned
// channel is closed when the connection ends or ctx is cancelled; a cancelled
// connection ends without a terminal event.
type Transport interface {
	Connect(ctx context.Context, url string) (<-chan Event, error)
}

// WSClient is the gorilla/websocket Transport.
type WSClient struct {
	dialer      *websocket.Dialer
	readTimeout time.Duration
	buffer      int
	logger      *zap.Logger
}

// NewWSClient creates a websocket transport. A zero readTimeout disables the
// read deadline and relies on the server's ping/close frames alone.
func NewWSClient(handshakeTimeout, readTimeout time.Duration, logger *zap.Logger) *WSClient {
	return &WSClient{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		readTimeout: readTimeout,
		buffer:      1024,
		logger:      logger,
	}
}

// Connect dials url and starts the reader goroutine.
func (c *WSClient) Connect(ctx context.Context, url string) (<-chan Event, error) {
	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		cerr := &ConnectionError{Op: "dial", Err: err}
		if resp != nil {
			cerr.Status = resp.StatusCode
		}
		return nil, cerr
	}

	events := make(chan Event, c.buffer)
	go c.listen(ctx, conn, events)
	return events, nil
}

func (c *WSClient) listen(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)

	// Unblock ReadMessage on shutdown
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	if c.readTimeout > 0 {
		// Binance pings every few minutes; any control frame counts as liveness.
		conn.SetPingHandler(func(data string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
			err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
			var netErr net.Error
			if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil
			}
			return err
		})
	}

	for {
		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			ev := Event{Kind: EventError, Err: err}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				ev = Event{Kind: EventClosed, CloseCode: closeErr.Code, Err: err}
			}
			c.logger.Debug("websocket reader stopped", zap.Stringer("kind", ev.Kind), zap.Error(err))

			select {
			case events <- ev:
			case <-ctx.Done():
			}
			return
		}

		select {
		case events <- Event{Kind: EventMessage, Data: msg}:
		case <-ctx.Done():
			return
		}
	}
}
