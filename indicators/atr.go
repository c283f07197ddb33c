package indicators

import (
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// ATR calculates the Average True Range for the given period using Wilder's
// smoothing. It needs period+1 candles.
func ATR(candles []market.Candle, period int) (decimal.Decimal, error) {
	if err := checkPeriod(len(candles), period, period+1); err != nil {
		return decimal.Zero, err
	}

	p := decimal.NewFromInt(int64(period))

	sum := decimal.Zero
	for i := 1; i <= period; i++ {
		sum = sum.Add(trueRange(candles[i], candles[i-1]))
	}
	atr := sum.Div(p)

	for i := period + 1; i < len(candles); i++ {
		tr := trueRange(candles[i], candles[i-1])
		atr = atr.Mul(p.Sub(decimal.NewFromInt(1))).Add(tr).Div(p)
	}
	return atr, nil
}

func trueRange(cur, prev market.Candle) decimal.Decimal {
	hl := cur.High.Sub(cur.Low)
	hc := cur.High.Sub(prev.Close).Abs()
	lc := cur.Low.Sub(prev.Close).Abs()
	return decimal.Max(hl, hc, lc)
}
