// Package broker executes paper orders against the ledger.
package broker

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
)

// Broker is what the CLI trades through.
type Broker interface {
	Buy(ctx context.Context, req OrderRequest) (ledger.Order, error)
	Sell(ctx context.Context, req OrderRequest) (ledger.Order, error)
	Execute(ctx context.Context, typ ledger.OrderType, req OrderRequest) (ledger.Order, error)
}

// Ledger is the transactional store the engine writes to.
type Ledger interface {
	Update(ctx context.Context, fn func(tx *ledger.Tx) error) error
}

var _ Ledger = (*ledger.Store)(nil)

type OrderRequest struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	Strategy string
}

// Total is Quantity * Price.
func (r OrderRequest) Total() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(r.Quantity))
}

func (r OrderRequest) normalize(op string) (OrderRequest, error) {
	r.Symbol = ledger.NormalizeSymbol(r.Symbol)
	if r.Symbol == "" {
		return r, fmt.Errorf("%s: %w: symbol cannot be empty", op, ledger.ErrValidation)
	}
	if r.Quantity <= 0 {
		return r, fmt.Errorf("%s %s: %w: quantity must be positive, got %d", op, r.Symbol, ledger.ErrValidation, r.Quantity)
	}
	if !r.Price.IsPositive() {
		return r, fmt.Errorf("%s %s: %w: price must be positive, got %s", op, r.Symbol, ledger.ErrValidation, r.Price)
	}
	return r, nil
}

func addQuantity(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}
