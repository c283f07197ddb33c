package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rustyeddy/papertrader/snapshot"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export the ledger as JSON or CSV",
	Long: `Export holdings, orders and cash. The json format writes one file; the
csv format writes holdings.csv, orders.csv and cash.csv into a directory.

Examples:
  papertrader export portfolio.json
  papertrader export ./backup --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runExport),
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Replace the ledger with an exported one",
	Long: `Import a ledger written by export. The input is validated completely
before anything is written, and then replaces holdings, orders and cash in
a single transaction.

Examples:
  papertrader import portfolio.json
  papertrader import ./backup --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runImport),
}

var snapshotFormat string

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVarP(&snapshotFormat, "format", "f", "json", "json or csv")
	}
}

func runExport(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	path := args[0]
	switch snapshotFormat {
	case "json":
		payload, err := snapshot.ExportStructured(ctx, a.store)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	case "csv":
		tables, err := snapshot.ExportTabular(ctx, a.store)
		if err != nil {
			return err
		}
		if err := snapshot.WriteTabularDir(path, tables); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", snapshotFormat)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported ledger to %s\n", path)
	return nil
}

func runImport(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	path := args[0]
	var err error
	switch snapshotFormat {
	case "json":
		var payload []byte
		if payload, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		_, err = snapshot.ImportStructured(ctx, a.store, payload)
	case "csv":
		var tables snapshot.Tables
		if tables, err = snapshot.ReadTabularDir(path); err != nil {
			return err
		}
		_, err = snapshot.ImportTabular(ctx, a.store, tables)
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", snapshotFormat)
	}
	if err != nil {
		return err
	}

	if err := a.recovery.Refresh(ctx); err != nil {
		a.log.WithError(err).Warn("snapshot refresh failed")
	}

	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d holdings and %d orders; cash %s\n",
		len(snap.Holdings), len(snap.Orders), a.money(snap.Cash))
	return nil
}
