package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>...",
	Short: "Show the current price of one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runQuote),
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <symbol>",
	Short: "Show fundamentals and moving averages for a symbol",
	Long: `Show the reported fundamentals of a stock together with its 20 and 50
day simple moving averages, 20 day exponential moving average and 14 day
ATR over the chosen history period.

Examples:
  papertrader analyze INFY
  papertrader analyze TCS --period 6mo`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runAnalyze),
}

var analyzePeriod string

func init() {
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzePeriod, "period", string(market.Period1Y), "history period (1d,5d,1mo,3mo,6mo,1y,2y,3y,5y,max)")
}

func runQuote(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	w := newTable(cmd.OutOrStdout(), "SYMBOL", "PRICE")
	for _, arg := range args {
		sym := ledger.NormalizeSymbol(arg)
		p, ok, err := a.market.Quote(ctx, sym)
		switch {
		case err != nil:
			row(w, sym, "error: "+err.Error())
		case !ok:
			row(w, sym, "unavailable")
		default:
			row(w, sym, a.money(p))
		}
	}
	return w.Flush()
}

func runAnalyze(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	sym := ledger.NormalizeSymbol(args[0])
	period, err := market.ParsePeriod(analyzePeriod)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s\n\n", sym)

	f, err := a.market.Fundamentals(ctx, sym)
	if err != nil {
		a.log.WithError(err).WithField("symbol", sym).Warn("fundamentals unavailable")
	}
	if f.Empty() {
		fmt.Fprintln(out, "Fundamentals: unavailable")
	} else {
		w := newTable(out, "METRIC", "VALUE")
		row(w, "Sector", optText(f.Sector))
		row(w, "Industry", optText(f.Industry))
		row(w, "P/E", optFixed(f.PERatio, 2))
		row(w, "P/B", optFixed(f.PBRatio, 2))
		row(w, "Market Cap", a.optCompact(f.MarketCap))
		row(w, "ROE", optPct(f.ROE))
		row(w, "Debt/Equity", optFixed(f.DebtToEquity, 2))
		row(w, "Dividend Yield", optPct(f.DividendYield))
		row(w, "52W High", a.optMoney(f.Week52High))
		row(w, "52W Low", a.optMoney(f.Week52Low))
		row(w, "Avg Volume", optFixed(f.AvgVolume, 0))
		if err := w.Flush(); err != nil {
			return err
		}
	}

	candles, ok, err := a.market.History(ctx, sym, period)
	if err != nil {
		return fmt.Errorf("history %s: %w", sym, err)
	}
	fmt.Fprintln(out)
	if !ok || len(candles) == 0 {
		fmt.Fprintln(out, "Price history: unavailable")
		return nil
	}

	a.writeIndicators(out, candles)
	return nil
}

func (a *app) writeIndicators(out io.Writer, candles []market.Candle) {
	last := candles[len(candles)-1]
	fmt.Fprintf(out, "Last close (%s): %s\n", last.Time.Format("2006-01-02"), a.money(last.Close))

	sma20, err20 := indicators.SMA(candles, 20)
	sma50, err50 := indicators.SMA(candles, 50)
	ema20, err := indicators.EMA(candles, 20)
	fmt.Fprintf(out, "SMA20: %s\n", a.indicator(sma20, err20))
	fmt.Fprintf(out, "SMA50: %s\n", a.indicator(sma50, err50))
	fmt.Fprintf(out, "EMA20: %s\n", a.indicator(ema20, err))
	if err20 == nil && err50 == nil {
		fmt.Fprintf(out, "Trend: %s\n", indicators.Cross(sma20, sma50))
	}
	atr, err := indicators.ATR(candles, 14)
	fmt.Fprintf(out, "ATR14: %s\n", a.indicator(atr, err))
}

func (a *app) indicator(d decimal.Decimal, err error) string {
	if errors.Is(err, indicators.ErrNotEnoughData) {
		return "not enough history"
	}
	if err != nil {
		return err.Error()
	}
	return a.money(d)
}

func optText(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func optFixed(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}

// optPct renders a ratio such as 0.0912 as 9.12%.
func optPct(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.Shift(2).StringFixed(2) + "%"
}

func (a *app) optMoney(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return a.money(*d)
}

func (a *app) optCompact(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return a.compact(*d)
}
