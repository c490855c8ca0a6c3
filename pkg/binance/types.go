package binance

// ExchangeInfoResponse is the subset of GET /api/v3/exchangeInfo the bridge reads.
type ExchangeInfoResponse struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"` // milliseconds since epoch
	Symbols    []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol     string `json:"symbol"`     // e.g., "BTCUSDT"
	Status     string `json:"status"`     // "TRADING", "BREAK", ...
	BaseAsset  string `json:"baseAsset"`  // e.g., "BTC"
	QuoteAsset string `json:"quoteAsset"` // e.g., "USDT"
	// ... extra
}

const SymbolStatusTrading = "TRADING"
