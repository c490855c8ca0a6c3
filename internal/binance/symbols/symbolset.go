package symbols

import (
	"errors"
	"strings"

	"binancebridge/pkg/binance"
)

// SymbolSet is the ordered, de-duplicated list of lower-case tickers the bridge
// subscribes to. It is immutable once built and safe to share without locking.
type SymbolSet struct {
	symbols []string
}

var ErrEmptySymbolSet = errors.New("symbol set is empty")

// New normalises the given tickers (trim, lower-case), drops blanks and duplicates
// while keeping first-seen order.
func New(raw []string) (SymbolSet, error) {
	s := SymbolSet{symbols: make([]string, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		sym := strings.ToLower(strings.TrimSpace(r))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		s.symbols = append(s.symbols, sym)
	}
	if len(s.symbols) == 0 {
		return SymbolSet{}, ErrEmptySymbolSet
	}
	return s, nil
}

func (s SymbolSet) Len() int {
	return len(s.symbols)
}

// All returns a copy of the symbols in configured order.
func (s SymbolSet) All() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// StreamNames returns "<symbol>@<channel>" for every symbol.
func (s SymbolSet) StreamNames(channel binance.StreamChannel) []string {
	out := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, binance.StreamName(sym, channel))
	}
	return out
}

func (s SymbolSet) String() string {
	return strings.Join(s.symbols, ", ")
}
