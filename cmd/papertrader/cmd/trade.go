package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/portfolio"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var buyCmd = &cobra.Command{
	Use:   "buy <symbol> <quantity>",
	Short: "Buy shares",
	Long: `Buy shares at the given price, or at the current quote when --price is
not set. The cost is debited from cash.

Examples:
  papertrader buy RELIANCE 10
  papertrader buy TCS 5 --price 3500.50 --strategy value`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runTrade(ledger.Buy)),
}

var sellCmd = &cobra.Command{
	Use:   "sell <symbol> <quantity>",
	Short: "Sell shares",
	Long: `Sell shares from a holding at the given price, or at the current quote
when --price is not set. The proceeds are credited to cash.

Examples:
  papertrader sell RELIANCE 5
  papertrader sell TCS 5 --price 3600`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runTrade(ledger.Sell)),
}

var (
	tradePrice    string
	tradeStrategy string
)

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)

	for _, c := range []*cobra.Command{buyCmd, sellCmd} {
		c.Flags().StringVarP(&tradePrice, "price", "p", "", "limit price (default: current quote)")
		c.Flags().StringVarP(&tradeStrategy, "strategy", "s", "", "strategy tag recorded with the order")
	}
}

func runTrade(typ ledger.OrderType) func(context.Context, *app, *cobra.Command, []string) error {
	return func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		symbol := ledger.NormalizeSymbol(args[0])
		qty, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: quantity %q is not a whole number", ledger.ErrValidation, args[1])
		}

		price, err := a.tradePrice(ctx, symbol)
		if err != nil {
			return err
		}

		o, err := a.engine.Execute(ctx, typ, broker.OrderRequest{
			Symbol:   symbol,
			Quantity: qty,
			Price:    price,
			Strategy: tradeStrategy,
		})
		if err != nil {
			return err
		}

		cash, err := a.store.Cash(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s %d %s @ %s (order #%d)\n", o.Type, o.Quantity, o.Symbol, a.money(o.Price), o.ID)
		fmt.Fprintf(out, "  Total: %s  Cash: %s\n", a.money(o.Total()), a.money(cash))
		return nil
	}
}

// tradePrice is the --price flag, or the current quote when it is unset.
func (a *app) tradePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if tradePrice != "" {
		p, err := decimal.NewFromString(tradePrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: price %q is not a number", ledger.ErrValidation, tradePrice)
		}
		return p, nil
	}

	p, ok, err := a.market.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote available for %s; pass --price", symbol)
	}
	return p, nil
}

func (a *app) money(d decimal.Decimal) string {
	return portfolio.FormatMoney(d, a.cfg.Ledger.Currency)
}
