package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetExchangeInfo fetches trading rules for the given symbols. Stream symbols are
// lower-case; the REST API wants them upper-case, so they are converted here.
func (c *RESTClient) GetExchangeInfo(ctx context.Context, symbols []string) (*ExchangeInfoResponse, error) {
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(s))
	}
	list, err := json.Marshal(upper)
	if err != nil {
		return nil, fmt.Errorf("encode symbols: %w", err)
	}

	endpoint := c.baseURL + "/api/v3/exchangeInfo?symbols=" + url.QueryEscape(string(list))

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Msg = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	var info ExchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}

// ValidateSymbols checks that every symbol exists and is currently trading.
func (c *RESTClient) ValidateSymbols(ctx context.Context, symbols []string) error {
	info, err := c.GetExchangeInfo(ctx, symbols)
	if err != nil {
		return fmt.Errorf("exchange info: %w", err)
	}

	status := make(map[string]string, len(info.Symbols))
	for _, s := range info.Symbols {
		status[strings.ToLower(s.Symbol)] = s.Status
	}

	var bad []string
	for _, s := range symbols {
		st, ok := status[strings.ToLower(s)]
		switch {
		case !ok:
			bad = append(bad, s+" (unknown)")
		case st != SymbolStatusTrading:
			bad = append(bad, fmt.Sprintf("%s (%s)", s, st))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("symbols not tradable: %s", strings.Join(bad, ", "))
	}
	return nil
}
