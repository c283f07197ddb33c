package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the SQLite backed ledger. Writes are serialised: the ledger has a
// single logical writer and every mutation runs inside Update.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	log         logrus.FieldLogger
	initialCash decimal.Decimal
	now         func() time.Time
}

type Option func(*Store)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithInitialCash sets the balance seeded into a new ledger.
func WithInitialCash(d decimal.Decimal) Option {
	return func(s *Store) { s.initialCash = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the ledger at path, ensures the schema and seeds the
// cash balance on first use. Use ":memory:" for a throwaway ledger.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		log:         logrus.StandardLogger(),
		initialCash: DefaultCash,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn, err := dsnFor(path)
	if err != nil {
		return nil, persistence("open ledger", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, persistence("open ledger", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, persistence("ensure schema", err)
	}
	if err := s.seedCash(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.log.WithField("path", path).Debug("ledger opened")
	return s, nil
}

func dsnFor(path string) (string, error) {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return "", errors.New("ledger path cannot be empty")
	case ":memory:":
		return "file::memory:?_txlock=immediate&_busy_timeout=5000", nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_txlock=immediate&_busy_timeout=5000", path), nil
}

func (s *Store) seedCash(ctx context.Context) error {
	return s.Update(ctx, func(tx *Tx) error {
		var n int
		if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cash_balance`).Scan(&n); err != nil {
			return persistence("seed cash", err)
		}
		if n > 0 {
			return nil
		}
		return tx.SetCash(ctx, s.initialCash)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a write transaction. If fn returns an error (or panics)
// every change made through tx is rolled back.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, fn)
}

// View runs fn in a transaction that is always rolled back, giving fn a
// consistent read of all three tables.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin", err)
	}
	defer sqlTx.Rollback()
	return fn(&Tx{q: sqlTx})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.WithError(rbErr).Warn("ledger rollback failed")
		}
	}()

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return persistence("commit", err)
	}
	committed = true
	return nil
}

func view[T any](ctx context.Context, s *Store, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func (s *Store) Cash(ctx context.Context) (decimal.Decimal, error) {
	return view(ctx, s, func(tx *Tx) (decimal.Decimal, error) { return tx.Cash(ctx) })
}

// SetCash overwrites the balance. Callers must check it is not negative.
func (s *Store) SetCash(ctx context.Context, amount decimal.Decimal) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.SetCash(ctx, amount) })
}

func (s *Store) Holdings(ctx context.Context) ([]Holding, error) {
	return view(ctx, s, func(tx *Tx) ([]Holding, error) { return tx.Holdings(ctx) })
}

func (s *Store) Holding(ctx context.Context, symbol string) (Holding, bool, error) {
	var (
		h     Holding
		found bool
	)
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		h, found, err = tx.Holding(ctx, symbol)
		return err
	})
	return h, found, err
}

// HoldingQuantity returns the held quantity of symbol, 0 when not held.
func (s *Store) HoldingQuantity(ctx context.Context, symbol string) (int64, error) {
	h, _, err := s.Holding(ctx, symbol)
	return h.Quantity, err
}

func (s *Store) UpsertHolding(ctx context.Context, h Holding) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.UpsertHolding(ctx, h) })
}

func (s *Store) RemoveHolding(ctx context.Context, symbol string) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.RemoveHolding(ctx, symbol) })
}

func (s *Store) AppendOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.AppendOrder(ctx, o)
		return err
	})
	return id, err
}

// Orders returns the order log, newest first.
func (s *Store) Orders(ctx context.Context) ([]Order, error) {
	return view(ctx, s, func(tx *Tx) ([]Order, error) { return tx.Orders(ctx) })
}

func (s *Store) OrderCount(ctx context.Context) (int, error) {
	return view(ctx, s, func(tx *Tx) (int, error) { return tx.OrderCount(ctx) })
}

// Empty reports whether the ledger has neither orders nor holdings.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	return view(ctx, s, func(tx *Tx) (bool, error) {
		n, err := tx.OrderCount(ctx)
		if err != nil || n > 0 {
			return false, err
		}
		hs, err := tx.Holdings(ctx)
		return len(hs) == 0, err
	})
}

// ClearAll deletes holdings and orders. The cash balance is left for the
// caller to overwrite.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.Update(ctx, func(tx *Tx) error { return tx.ClearAll(ctx) })
}

// Snapshot reads the whole ledger in a single transaction.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := view(ctx, s, func(tx *Tx) (Snapshot, error) { return tx.Snapshot(ctx) })
	if err != nil {
		return Snapshot{}, err
	}
	snap.Time = s.now().UTC()
	return snap, nil
}

// Restore writes snap into the ledger as one transaction. With clear set the
// existing holdings and orders are removed first.
func (s *Store) Restore(ctx context.Context, snap Snapshot, clear bool) error {
	err := s.Update(ctx, func(tx *Tx) error { return tx.Restore(ctx, snap, clear) })
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"holdings": len(snap.Holdings),
		"orders":   len(snap.Orders),
		"clear":    clear,
	}).Info("ledger restored from snapshot")
	return nil
}
