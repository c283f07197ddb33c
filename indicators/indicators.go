// Package indicators computes moving averages and volatility over daily
// candles for the analysis report.
package indicators

import (
	"errors"
	"fmt"
)

// ErrNotEnoughData is returned when the series is shorter than the period.
var ErrNotEnoughData = errors.New("not enough candles")

func checkPeriod(n, period, need int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < need {
		return fmt.Errorf("%w: need %d, got %d", ErrNotEnoughData, need, n)
	}
	return nil
}
