package snapshot

import (
	"context"
	"time"

	"binancebridge/internal/binance/symbols"

	"go.uber.org/zap"
)

// SymbolValidator is implemented by *binance.RESTClient.
type SymbolValidator interface {
	ValidateSymbols(ctx context.Context, symbols []string) error
}

// SymbolLoader checks the configured symbol set against the exchange before the
// stream is opened.
type SymbolLoader struct {
	Client  SymbolValidator
	Timeout time.Duration
	Logger  *zap.Logger
}

// Verify returns an error when any symbol in set is unknown or not trading.
// The REST request is bounded by Timeout.
func (l *SymbolLoader) Verify(ctx context.Context, set symbols.SymbolSet) error {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	if err := l.Client.ValidateSymbols(ctx, set.All()); err != nil {
		l.Logger.Error("symbol validation failed", zap.Error(err))
		return err
	}
	l.Logger.Info("validated symbols", zap.Int("count", set.Len()))
	return nil
}
