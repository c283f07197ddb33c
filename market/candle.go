package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one daily OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Closes returns the closing prices of cs in order.
func Closes(cs []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}
