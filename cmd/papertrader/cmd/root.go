package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "A paper-trading ledger for NSE equities",
	Long: `Papertrader keeps a simulated cash balance, stock holdings and order
history in a local SQLite ledger and values them against live or
configured prices.

It provides tools for:
  - Buying and selling at market or at a given price
  - Portfolio summaries with unrealized P&L
  - Quotes, fundamentals and moving-average analysis
  - Exporting and importing the ledger as JSON or CSV
  - Recovering an empty ledger from a snapshot backup`,
	SilenceUsage: true,
}

var (
	cfgFile string
	dbPath  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON; defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "ledger database path (overrides ledger.db_path)")
}
