package market

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// QuoteStore is an in-memory Provider. It serves prices configured up front
// and is what the ledger uses offline and in tests.
type QuoteStore struct {
	mu           sync.RWMutex
	quotes       map[string]decimal.Decimal
	history      map[string][]Candle
	fundamentals map[string]Fundamentals
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		quotes:       make(map[string]decimal.Decimal),
		history:      make(map[string][]Candle),
		fundamentals: make(map[string]Fundamentals),
	}
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (qs *QuoteStore) Set(symbol string, price decimal.Decimal) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[key(symbol)] = price
}

func (qs *QuoteStore) SetHistory(symbol string, candles []Candle) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.history[key(symbol)] = append([]Candle(nil), candles...)
}

func (qs *QuoteStore) SetFundamentals(symbol string, f Fundamentals) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.fundamentals[key(symbol)] = f
}

func (qs *QuoteStore) Quote(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	p, ok := qs.quotes[key(symbol)]
	return p, ok, nil
}

// History ignores period and returns everything stored for symbol.
func (qs *QuoteStore) History(ctx context.Context, symbol string, period Period) ([]Candle, bool, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	cs, ok := qs.history[key(symbol)]
	if !ok || len(cs) == 0 {
		return nil, false, nil
	}
	return append([]Candle(nil), cs...), true, nil
}

func (qs *QuoteStore) Fundamentals(ctx context.Context, symbol string) (Fundamentals, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return qs.fundamentals[key(symbol)], nil
}

var _ Provider = (*QuoteStore)(nil)
