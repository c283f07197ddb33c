package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	crore = decimal.NewFromInt(10_000_000)
	lakh  = decimal.NewFromInt(100_000)
)

// FormatMoney renders amount in the given ISO currency, rounded to the
// currency's minor unit. Unknown codes fall back to two decimals.
func FormatMoney(amount decimal.Decimal, currency string) string {
	fraction := 2
	if cur := money.GetCurrency(currency); cur != nil {
		fraction = cur.Fraction
	}
	minor := amount.Shift(int32(fraction)).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// FormatINR renders rupee amounts the short way: crores (₹1.25Cr) from one
// crore up, lakhs (₹3.50L) from one lakh up, and plain rupees below that.
func FormatINR(amount decimal.Decimal) string {
	abs := amount.Abs()
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	switch {
	case abs.GreaterThanOrEqual(crore):
		return sign + "₹" + abs.Div(crore).StringFixed(2) + "Cr"
	case abs.GreaterThanOrEqual(lakh):
		return sign + "₹" + abs.Div(lakh).StringFixed(2) + "L"
	}
	return FormatMoney(amount, money.INR)
}

// FormatPct renders a percentage with two decimals and an explicit sign.
func FormatPct(pct decimal.Decimal) string {
	if pct.IsPositive() {
		return "+" + pct.StringFixed(2) + "%"
	}
	return pct.StringFixed(2) + "%"
}
