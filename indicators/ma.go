package indicators

import (
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// SMA calculates the Simple Moving Average of the last period closes.
func SMA(candles []market.Candle, period int) (decimal.Decimal, error) {
	if err := checkPeriod(len(candles), period, period); err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, c := range candles[len(candles)-period:] {
		sum = sum.Add(c.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// EMA calculates the Exponential Moving Average for the given period,
// seeded with the SMA of the first period closes.
func EMA(candles []market.Candle, period int) (decimal.Decimal, error) {
	if err := checkPeriod(len(candles), period, period); err != nil {
		return decimal.Zero, err
	}

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))

	ema, _ := SMA(candles[:period], period)
	for _, c := range candles[period:] {
		ema = c.Close.Sub(ema).Mul(k).Add(ema)
	}
	return ema, nil
}

// Trend compares a fast and a slow average.
type Trend string

const (
	Bullish Trend = "BULLISH"
	Bearish Trend = "BEARISH"
	Neutral Trend = "NEUTRAL"
)

// Cross reports Bullish when fast is above slow, Bearish when below.
func Cross(fast, slow decimal.Decimal) Trend {
	switch fast.Cmp(slow) {
	case 1:
		return Bullish
	case -1:
		return Bearish
	}
	return Neutral
}
