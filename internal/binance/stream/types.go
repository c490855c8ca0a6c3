package stream

// TradeEvent is one decoded combined-stream frame ready for publishing.
type TradeEvent struct {
	StreamName string // e.g. "btcusdt@trade"
	RoutingKey string // symbol part of StreamName, never empty
	Payload    []byte // the whole frame, verbatim
}

// frame is the combined stream envelope: {"stream":"btcusdt@trade","data":{...}}.
// Only the stream name is needed; the body is forwarded untouched.
type frame struct {
	Stream *string `json:"stream"`
}
