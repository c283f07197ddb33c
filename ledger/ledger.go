// Package ledger keeps the paper account: one cash balance, the open
// holdings and the append-only order log, all stored in SQLite.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCash is the balance a freshly created ledger starts with.
var DefaultCash = decimal.NewFromInt(500000)

type OrderType string

const (
	Buy  OrderType = "BUY"
	Sell OrderType = "SELL"
)

// ParseOrderType accepts BUY or SELL in any case.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrValidation, s)
}

type OrderStatus string

// Executed is the only status the engine produces.
const Executed OrderStatus = "EXECUTED"

// Holding is the current position in one symbol. A holding exists only while
// Quantity > 0.
type Holding struct {
	Symbol   string
	Quantity int64
	AvgPrice decimal.Decimal
}

// CostBasis is Quantity * AvgPrice.
func (h Holding) CostBasis() decimal.Decimal {
	return h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity))
}

// Order is an immutable record of an executed trade.
type Order struct {
	ID        int64
	Symbol    string
	Type      OrderType
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time
	Status    OrderStatus
	Strategy  string
}

// Total is Quantity * Price.
func (o Order) Total() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// Snapshot is a point-in-time copy of the whole ledger.
type Snapshot struct {
	Holdings []Holding
	Orders   []Order
	Cash     decimal.Decimal
	Time     time.Time
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
