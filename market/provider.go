// Package market holds the price, history and fundamentals types the ledger
// consumes, and the Provider contract implemented by price sources.
package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider supplies market data. A false ok means the data is unavailable;
// callers must never read that as a zero price.
type Provider interface {
	Quote(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)
	History(ctx context.Context, symbol string, period Period) (candles []Candle, ok bool, err error)
	Fundamentals(ctx context.Context, symbol string) (Fundamentals, error)
}

// Fundamentals is a fixed set of optional metrics. A nil field means the
// provider did not report it.
type Fundamentals struct {
	PERatio       *decimal.Decimal
	PBRatio       *decimal.Decimal
	MarketCap     *decimal.Decimal
	ROE           *decimal.Decimal
	DebtToEquity  *decimal.Decimal
	DividendYield *decimal.Decimal
	Week52High    *decimal.Decimal
	Week52Low     *decimal.Decimal
	AvgVolume     *decimal.Decimal
	Sector        *string
	Industry      *string
}

// Empty reports whether no metric is present.
func (f Fundamentals) Empty() bool {
	for _, d := range []*decimal.Decimal{
		f.PERatio, f.PBRatio, f.MarketCap, f.ROE, f.DebtToEquity,
		f.DividendYield, f.Week52High, f.Week52Low, f.AvgVolume,
	} {
		if d != nil {
			return false
		}
	}
	return f.Sector == nil && f.Industry == nil
}
