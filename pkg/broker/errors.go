package broker

import (
	"errors"
	"fmt"
)

var (
	ErrQueueFull       = errors.New("broker: send buffer full")
	ErrPublisherClosed = errors.New("broker: publisher closed")
)

// Reason classifies why Enqueue refused a message.
type Reason string

const (
	QueueFull Reason = "queue_full"
	Closed    Reason = "closed"
)

// PublishError is returned by Enqueue. The message was not buffered and will not be retried.
type PublishError struct {
	Reason Reason
	Key    string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("enqueue %q: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
