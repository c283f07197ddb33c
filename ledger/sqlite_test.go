package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('holdings','orders','cash_balance')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["holdings"])
	assert.True(t, found["orders"])
	assert.True(t, found["cash_balance"])
}

func TestOpenSeedsDefaultCash(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	cash, err := s.Cash(context.Background())
	require.NoError(t, err)
	assert.True(t, cash.Equal(DefaultCash), "cash = %s", cash)

	hs, err := s.Holdings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hs)

	orders, err := s.Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestReopenKeepsCash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(ctx, path, WithInitialCash(dec("1000")))
	require.NoError(t, err)
	require.NoError(t, s.SetCash(ctx, dec("123.45")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, WithInitialCash(dec("1000")))
	require.NoError(t, err)
	defer s.Close()

	cash, err := s.Cash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123.45", cash.String())
}

func TestHoldingsInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.UpsertHolding(ctx, Holding{Symbol: "TCS", Quantity: 1, AvgPrice: dec("3500")}))
	require.NoError(t, s.UpsertHolding(ctx, Holding{Symbol: "infy", Quantity: 2, AvgPrice: dec("1500")}))
	require.NoError(t, s.UpsertHolding(ctx, Holding{Symbol: "TCS", Quantity: 5, AvgPrice: dec("3600.125")}))

	hs, err := s.Holdings(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "TCS", hs[0].Symbol)
	assert.Equal(t, int64(5), hs[0].Quantity)
	assert.Equal(t, "3600.125", hs[0].AvgPrice.String())
	assert.Equal(t, "INFY", hs[1].Symbol)

	h, ok, err := s.Holding(ctx, " infy ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), h.Quantity)

	require.NoError(t, s.RemoveHolding(ctx, "INFY"))
	_, ok, err = s.Holding(ctx, "INFY")
	require.NoError(t, err)
	assert.False(t, ok)

	q, err := s.HoldingQuantity(ctx, "INFY")
	require.NoError(t, err)
	assert.Zero(t, q)
}

func TestZeroQuantityHoldingRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	err := s.UpsertHolding(context.Background(), Holding{Symbol: "SBIN", Quantity: 0, AvgPrice: dec("1")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	t0 := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	in := []Order{
		{Symbol: "A", Type: Buy, Quantity: 1, Price: dec("10"), Timestamp: t0.Add(time.Minute)},
		{Symbol: "B", Type: Buy, Quantity: 1, Price: dec("10"), Timestamp: t0},
		{Symbol: "C", Type: Sell, Quantity: 1, Price: dec("10"), Timestamp: t0.Add(time.Minute), Strategy: "swing"},
	}
	for i, o := range in {
		id, err := s.AppendOrder(ctx, o)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	got, err := s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, "A", got[1].Symbol)
	assert.Equal(t, "B", got[2].Symbol)
	assert.Equal(t, Executed, got[0].Status)
	assert.Equal(t, "swing", got[0].Strategy)
	assert.True(t, got[2].Timestamp.Equal(t0))

	n, err := s.OrderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.SetCash(ctx, dec("1")); err != nil {
			return err
		}
		if err := tx.UpsertHolding(ctx, Holding{Symbol: "X", Quantity: 1, AvgPrice: dec("1")}); err != nil {
			return err
		}
		if _, err := tx.AppendOrder(ctx, Order{Symbol: "X", Type: Buy, Quantity: 1, Price: dec("1"), Timestamp: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	cash, err := s.Cash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(DefaultCash))

	empty, err := s.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestUpdateRollsBackOnPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	assert.Panics(t, func() {
		_ = s.Update(ctx, func(tx *Tx) error {
			_ = tx.SetCash(ctx, dec("7"))
			panic("mid-transaction crash")
		})
	})

	cash, err := s.Cash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(DefaultCash))
}

func TestSnapshotAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clock := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	src, _ := newTestStore(t, WithClock(func() time.Time { return clock }))

	require.NoError(t, src.SetCash(ctx, dec("42000.5")))
	require.NoError(t, src.UpsertHolding(ctx, Holding{Symbol: "RELIANCE", Quantity: 15, AvgPrice: dec("2533.3333333333333333")}))
	for i := 0; i < 3; i++ {
		_, err := src.AppendOrder(ctx, Order{
			Symbol:    "RELIANCE",
			Type:      Buy,
			Quantity:  5,
			Price:     dec(fmt.Sprintf("25%02d", i)),
			Timestamp: clock.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Time.Equal(clock))
	require.Len(t, snap.Orders, 3)

	dst, _ := newTestStore(t)
	require.NoError(t, dst.UpsertHolding(ctx, Holding{Symbol: "OLD", Quantity: 1, AvgPrice: dec("1")}))
	require.NoError(t, dst.Restore(ctx, snap, true))

	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.Holdings, 1)
	assert.Equal(t, "RELIANCE", got.Holdings[0].Symbol)
	assert.Equal(t, int64(15), got.Holdings[0].Quantity)
	assert.Equal(t, snap.Holdings[0].AvgPrice.String(), got.Holdings[0].AvgPrice.String())
	assert.True(t, snap.Cash.Equal(got.Cash))
	require.Len(t, got.Orders, 3)
	for i := range got.Orders {
		assert.Equal(t, snap.Orders[i].Price.String(), got.Orders[i].Price.String())
		assert.True(t, snap.Orders[i].Timestamp.Equal(got.Orders[i].Timestamp))
	}
	// newest order gets the highest id after re-insertion
	assert.Equal(t, int64(3), got.Orders[0].ID)
}

func TestClearAllResetsOrderIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AppendOrder(ctx, Order{Symbol: "A", Type: Buy, Quantity: 1, Price: dec("1"), Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.SetCash(ctx, dec("99")))
	require.NoError(t, s.ClearAll(ctx))

	cash, err := s.Cash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "99", cash.String())

	id, err := s.AppendOrder(ctx, Order{Symbol: "A", Type: Buy, Quantity: 1, Price: dec("1"), Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestOpenMemory(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), ":memory:", WithInitialCash(dec("10")))
	require.NoError(t, err)
	defer s.Close()

	cash, err := s.Cash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", cash.String())
}

func TestOpenEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, KindPersistence, KindOf(err))
}
