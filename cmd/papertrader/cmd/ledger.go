package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/papertrader/portfolio"
	"github.com/spf13/cobra"
)

var cashCmd = &cobra.Command{
	Use:   "cash",
	Short: "Show the cash balance",
	Args:  cobra.NoArgs,
	RunE:  withApp(runCash),
}

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "List current holdings",
	Args:  cobra.NoArgs,
	RunE:  withApp(runHoldings),
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List executed orders, newest first",
	Long: `List the order log, newest first, followed by order statistics.

Examples:
  papertrader orders
  papertrader orders --limit 20`,
	Args: cobra.NoArgs,
	RunE: withApp(runOrders),
}

var ordersLimit int

func init() {
	rootCmd.AddCommand(cashCmd)
	rootCmd.AddCommand(holdingsCmd)
	rootCmd.AddCommand(ordersCmd)

	ordersCmd.Flags().IntVarP(&ordersLimit, "limit", "n", 0, "show only the newest n orders (0 for all)")
}

func runCash(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	cash, err := a.store.Cash(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cash: %s\n", a.money(cash))
	return nil
}

func runHoldings(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	hs, err := a.store.Holdings(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(hs) == 0 {
		fmt.Fprintln(out, "No holdings.")
		return nil
	}

	w := newTable(out, "SYMBOL", "QTY", "AVG PRICE", "INVESTED")
	for _, h := range hs {
		row(w, h.Symbol, strconv.FormatInt(h.Quantity, 10), a.money(h.AvgPrice), a.money(h.CostBasis()))
	}
	return w.Flush()
}

func runOrders(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	orders, err := a.store.Orders(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders.")
		return nil
	}

	shown := orders
	if ordersLimit > 0 && ordersLimit < len(shown) {
		shown = shown[:ordersLimit]
	}
	w := newTable(out, "ID", "TIME", "TYPE", "SYMBOL", "QTY", "PRICE", "TOTAL", "STRATEGY")
	for _, o := range shown {
		row(w,
			strconv.FormatInt(o.ID, 10),
			o.Timestamp.Local().Format(time.DateTime),
			string(o.Type),
			o.Symbol,
			strconv.FormatInt(o.Quantity, 10),
			a.money(o.Price),
			a.money(o.Total()),
			o.Strategy,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	st := portfolio.Stats(orders)
	fmt.Fprintf(out, "\nOrders: %d (buy %d, sell %d)\n", st.Total, st.Buys, st.Sells)
	return nil
}
