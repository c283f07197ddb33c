package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the ledger as seen from inside a Store.Update or Store.View call.
// It must not be used after the callback returns.
type Tx struct {
	q querier
}

func (tx *Tx) Cash(ctx context.Context) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := tx.q.QueryRowContext(ctx, `SELECT balance FROM cash_balance WHERE id = 1`).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, persistence("get cash", errors.New("cash balance row missing"))
	}
	if err != nil {
		return decimal.Zero, persistence("get cash", err)
	}
	return bal, nil
}

func (tx *Tx) SetCash(ctx context.Context, amount decimal.Decimal) error {
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO cash_balance (id, balance) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET balance = excluded.balance`, amount.String())
	if err != nil {
		return persistence("set cash", err)
	}
	return nil
}

// Holdings are returned in insertion order.
func (tx *Tx) Holdings(ctx context.Context) ([]Holding, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT symbol, quantity, avg_price
		FROM holdings
		ORDER BY rowid ASC`)
	if err != nil {
		return nil, persistence("list holdings", err)
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgPrice); err != nil {
			return nil, persistence("list holdings", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list holdings", err)
	}
	return out, nil
}

func (tx *Tx) Holding(ctx context.Context, symbol string) (Holding, bool, error) {
	var h Holding
	err := tx.q.QueryRowContext(ctx, `
		SELECT symbol, quantity, avg_price
		FROM holdings
		WHERE symbol = ?`, NormalizeSymbol(symbol)).Scan(&h.Symbol, &h.Quantity, &h.AvgPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return Holding{}, false, nil
	}
	if err != nil {
		return Holding{}, false, persistence("get holding", err)
	}
	return h, true, nil
}

// UpsertHolding replaces the holding for h.Symbol or creates it. An updated
// holding keeps its position in the insertion order.
func (tx *Tx) UpsertHolding(ctx context.Context, h Holding) error {
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO holdings (symbol, quantity, avg_price) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price`,
		NormalizeSymbol(h.Symbol), h.Quantity, h.AvgPrice.String())
	if err != nil {
		return persistence("upsert holding", err)
	}
	return nil
}

func (tx *Tx) RemoveHolding(ctx context.Context, symbol string) error {
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, NormalizeSymbol(symbol)); err != nil {
		return persistence("remove holding", err)
	}
	return nil
}

// AppendOrder inserts o and returns the identifier assigned to it. o.ID is
// ignored.
func (tx *Tx) AppendOrder(ctx context.Context, o Order) (int64, error) {
	status := o.Status
	if status == "" {
		status = Executed
	}
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO orders (symbol, order_type, quantity, price, timestamp, status, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		NormalizeSymbol(o.Symbol), string(o.Type), o.Quantity, o.Price.String(),
		o.Timestamp.UTC().Format(timestampLayout), string(status), o.Strategy,
	)
	if err != nil {
		return 0, persistence("append order", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistence("append order", err)
	}
	return id, nil
}

// Orders are returned newest first; orders sharing a timestamp are ordered by
// descending id.
func (tx *Tx) Orders(ctx context.Context) ([]Order, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT id, symbol, order_type, quantity, price, timestamp, status, strategy
		FROM orders
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o      Order
			typ    string
			ts     string
			status string
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &typ, &o.Quantity, &o.Price, &ts, &status, &o.Strategy); err != nil {
			return nil, persistence("list orders", err)
		}
		o.Type = OrderType(typ)
		o.Status = OrderStatus(status)
		o.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, persistence("list orders", fmt.Errorf("order %d: bad timestamp %q: %w", o.ID, ts, err))
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list orders", err)
	}
	return out, nil
}

func (tx *Tx) OrderCount(ctx context.Context) (int, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, persistence("count orders", err)
	}
	return n, nil
}

// ClearAll deletes holdings and orders and resets order numbering.
func (tx *Tx) ClearAll(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM holdings`,
		`DELETE FROM orders`,
		`DELETE FROM sqlite_sequence WHERE name = 'orders'`,
	} {
		if _, err := tx.q.ExecContext(ctx, stmt); err != nil {
			return persistence("clear ledger", err)
		}
	}
	return nil
}

// Snapshot reads holdings, orders and cash. The snapshot time is left for
// the caller to set.
func (tx *Tx) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Holdings, err = tx.Holdings(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Orders, err = tx.Orders(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Cash, err = tx.Cash(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Restore writes snap through the normal insert paths. Orders are inserted
// oldest first so that newly assigned ids follow time order.
func (tx *Tx) Restore(ctx context.Context, snap Snapshot, clear bool) error {
	if clear {
		if err := tx.ClearAll(ctx); err != nil {
			return err
		}
	}
	if err := tx.SetCash(ctx, snap.Cash); err != nil {
		return err
	}
	for _, h := range snap.Holdings {
		if err := tx.UpsertHolding(ctx, h); err != nil {
			return err
		}
	}

	orders := make([]Order, len(snap.Orders))
	copy(orders, snap.Orders)
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].Timestamp.Equal(orders[j].Timestamp) {
			return orders[i].Timestamp.Before(orders[j].Timestamp)
		}
		return orders[i].ID < orders[j].ID
	})
	for _, o := range orders {
		if _, err := tx.AppendOrder(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
