package binance

import (
	"fmt"
	"net/url"
	"strings"
)

// StreamChannel is the per-symbol channel suffix of a combined stream name
type StreamChannel string

const ChannelTrade StreamChannel = "trade"

const (
	DefaultStreamBaseURL = "wss://stream.binance.com:9443/stream"
	DefaultRESTBaseURL   = "https://api.binance.com"

	// StreamDelimiter separates the symbol from the channel, e.g. "btcusdt@trade".
	StreamDelimiter = "@"
	// streamSeparator joins stream names inside the combined stream query.
	streamSeparator = "/"
)

// StreamName returns "<symbol>@<channel>".
func StreamName(symbol string, channel StreamChannel) string {
	return symbol + StreamDelimiter + string(channel)
}

// CombinedStreamURL builds the subscription URL for a combined stream, e.g.
// wss://stream.binance.com:9443/stream?streams=btcusdt@trade/ethusdt@trade.
// Stream names are used as given; Binance expects lower-case symbols.
func CombinedStreamURL(baseURL string, streams []string) (string, error) {
	if len(streams) == 0 {
		return "", fmt.Errorf("combined stream needs at least one stream")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse stream base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("stream base url must be ws or wss, got %q", u.Scheme)
	}

	// '@' and '/' are kept literal; Binance expects them unescaped.
	u.RawQuery = "streams=" + strings.Join(streams, streamSeparator)
	return u.String(), nil
}
