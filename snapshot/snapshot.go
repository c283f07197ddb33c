// Package snapshot moves whole ledgers in and out as a single JSON document
// or as three CSV tables. Imports are validated completely before the
// ledger is touched and then applied in one transaction.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
)

// Source is anything that can produce a consistent ledger snapshot.
type Source interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
}

// Target restores a snapshot in one transaction.
type Target interface {
	Restore(ctx context.Context, snap ledger.Snapshot, clear bool) error
}

var (
	_ Source = (*ledger.Store)(nil)
	_ Target = (*ledger.Store)(nil)
)

// Accepted timestamp layouts, tried in order. The last two are written by
// older exports that stored local wall time without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func importErr(format string, args ...any) error {
	return fmt.Errorf("import: %w: %s", ledger.ErrImport, fmt.Sprintf(format, args...))
}

func parseQuantity(field, s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1<<63-1)) {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", field, s)
	}
	return d.IntPart(), nil
}

func parsePrice(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be a positive number, got %q", field, s)
	}
	return d, nil
}

func parseCash(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("cash_balance must be a non-negative number, got %q", s)
	}
	return d, nil
}

func parseStatus(s string) (ledger.OrderStatus, error) {
	switch ledger.OrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case "", ledger.Executed:
		return ledger.Executed, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// check enforces the invariants a restored ledger must satisfy that the
// field parsers cannot see on their own.
func check(snap ledger.Snapshot) error {
	seen := make(map[string]bool, len(snap.Holdings))
	for _, h := range snap.Holdings {
		if h.Symbol == "" {
			return importErr("holding with empty symbol")
		}
		if seen[h.Symbol] {
			return importErr("duplicate holding %s", h.Symbol)
		}
		seen[h.Symbol] = true
	}
	for i, o := range snap.Orders {
		if o.Symbol == "" {
			return importErr("order %d: empty symbol", i)
		}
	}
	return nil
}
