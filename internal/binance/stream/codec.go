package stream

import (
	"errors"
	"fmt"
	"strings"

	"binancebridge/pkg/binance"

	"github.com/bytedance/sonic"
)

var frameAPI = sonic.ConfigStd

var (
	ErrMissingStream   = errors.New("frame has no stream field")
	ErrEmptyRoutingKey = errors.New("stream name has no symbol")
)

// DecodeError is returned for frames that cannot be turned into a TradeEvent.
// The receive loop logs it and drops the frame.
type DecodeError struct {
	Preview string // first bytes of the offending frame
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", e.Preview, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

const previewLen = 64

func newDecodeError(raw []byte, err error) *DecodeError {
	p := raw
	if len(p) > previewLen {
		p = p[:previewLen]
	}
	return &DecodeError{Preview: string(p), Err: err}
}

// Decode parses a combined stream frame. The routing key is the part of the
// stream name before the first '@', taken as-is; case is not normalised.
func Decode(raw []byte) (TradeEvent, error) {
	var f frame
	if err := frameAPI.Unmarshal(raw, &f); err != nil {
		return TradeEvent{}, newDecodeError(raw, err)
	}
	if f.Stream == nil || *f.Stream == "" {
		return TradeEvent{}, newDecodeError(raw, ErrMissingStream)
	}

	key := RoutingKey(*f.Stream)
	if key == "" {
		return TradeEvent{}, newDecodeError(raw, ErrEmptyRoutingKey)
	}

	return TradeEvent{
		StreamName: *f.Stream,
		RoutingKey: key,
		Payload:    raw,
	}, nil
}

// RoutingKey returns the symbol part of a stream name, "btcusdt@trade" -> "btcusdt".
// A name without the delimiter is returned whole.
func RoutingKey(streamName string) string {
	key, _, _ := strings.Cut(streamName, binance.StreamDelimiter)
	return key
}
