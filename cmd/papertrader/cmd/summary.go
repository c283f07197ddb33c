package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rustyeddy/papertrader/portfolio"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Value the portfolio at current prices",
	Long: `Show cash, invested amount, current value and unrealized P&L per holding
and in total. Holdings without a quote are listed as unavailable and left
out of the P&L.`,
	Args: cobra.NoArgs,
	RunE: withApp(runSummary),
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	s, err := portfolio.Summarize(ctx, a.store, a.market, a.log)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Total Portfolio Value: %s\n", a.compact(s.Total))
	fmt.Fprintf(out, "Cash Available:        %s\n", a.compact(s.Cash))
	fmt.Fprintf(out, "Invested:              %s\n", a.compact(s.Invested))
	fmt.Fprintf(out, "Current Value:         %s\n", a.compact(s.Current))
	if s.Invested.IsPositive() {
		fmt.Fprintf(out, "Total P&L:             %s (%s)\n", a.compact(s.PnL), portfolio.FormatPct(s.PnLPct))
	}

	if len(s.Positions) > 0 {
		fmt.Fprintln(out)
		w := newTable(out, "SYMBOL", "QTY", "AVG PRICE", "PRICE", "INVESTED", "VALUE", "P&L", "P&L %")
		for _, p := range s.Positions {
			price, value, pnl, pct := "n/a", "n/a", "n/a", "n/a"
			if p.Priced {
				price, value, pnl, pct = a.money(p.Price), a.money(p.Value), a.money(p.PnL), portfolio.FormatPct(p.PnLPct)
			}
			row(w, p.Symbol, strconv.FormatInt(p.Quantity, 10), a.money(p.AvgPrice), price, a.money(p.Invested), value, pnl, pct)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if len(s.Unpriced) > 0 {
		fmt.Fprintf(out, "\nQuote unavailable: %s\n", strings.Join(s.Unpriced, ", "))
	}

	fmt.Fprintf(out, "\nOrders: %d (buy %d, sell %d)\n", s.Stats.Total, s.Stats.Buys, s.Stats.Sells)
	if len(s.Stats.ByStrategy) > 0 {
		names := make([]string, 0, len(s.Stats.ByStrategy))
		for name := range s.Stats.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %d\n", name, s.Stats.ByStrategy[name])
		}
	}
	return nil
}

// compact uses lakh/crore notation for rupees.
func (a *app) compact(d decimal.Decimal) string {
	if a.cfg.Ledger.Currency == "INR" {
		return portfolio.FormatINR(d)
	}
	return a.money(d)
}
