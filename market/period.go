package market

import (
	"fmt"
	"strings"
)

// Period is a history look-back window.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period3Y  Period = "3y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"
)

var periods = []Period{Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, Period2Y, Period3Y, Period5Y, PeriodMax}

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

func (p Period) String() string { return string(p) }
