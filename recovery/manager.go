package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/snapshot"
	"github.com/sirupsen/logrus"
)

// State is the outcome of startup recovery.
type State string

const (
	// Active means the ledger already had data and was left alone.
	Active State = "ACTIVE"
	// Restored means an empty ledger was filled from the cache.
	Restored State = "RESTORED"
	// Fresh means the ledger starts from its initial state.
	Fresh State = "FRESH"
)

// Store is the ledger as seen by the manager.
type Store interface {
	snapshot.Source
	snapshot.Target
	Empty(ctx context.Context) (bool, error)
}

var _ Store = (*ledger.Store)(nil)

type Manager struct {
	store Store
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time

	once  sync.Once
	state State
	err   error
}

type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a manager backed by cache. A nil cache disables
// backups.
func NewManager(store Store, cache Cache, opts ...Option) *Manager {
	if cache == nil {
		cache = NopCache{}
	}
	m := &Manager{
		store: store,
		cache: cache,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore decides the startup state of the ledger. It does its work only on
// the first call; later calls return the same result. A failure is reported
// alongside Fresh and the ledger remains usable.
func (m *Manager) Restore(ctx context.Context) (State, error) {
	m.once.Do(func() {
		m.state, m.err = m.restore(ctx)
		if m.err != nil {
			m.log.WithError(m.err).Warn("ledger recovery failed, starting fresh")
			m.state = Fresh
			return
		}
		m.log.WithField("state", m.state).Info("ledger recovery complete")
	})
	return m.state, m.err
}

// State returns the result of Restore, or "" before it has run.
func (m *Manager) State() State {
	return m.state
}

func (m *Manager) restore(ctx context.Context) (State, error) {
	empty, err := m.store.Empty(ctx)
	if err != nil {
		return Fresh, err
	}
	if !empty {
		return Active, nil
	}

	data, err := m.cache.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return Fresh, nil
	}
	if err != nil {
		return Fresh, err
	}

	env, err := unseal(data)
	if err != nil {
		return Fresh, err
	}
	snap, err := snapshot.DecodeStructured(env.Snapshot)
	if err != nil {
		return Fresh, fmt.Errorf("cached snapshot %s: %w", env.ID, err)
	}
	if err := m.store.Restore(ctx, snap, false); err != nil {
		return Fresh, fmt.Errorf("cached snapshot %s: %w", env.ID, err)
	}

	m.log.WithFields(logrus.Fields{
		"id":       env.ID,
		"saved_at": env.SavedAt,
	}).Info("ledger restored from cache")
	return Restored, nil
}

// Refresh saves the current ledger to the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	payload, err := snapshot.ExportStructured(ctx, m.store)
	if err != nil {
		return err
	}
	data, err := seal(payload, m.now())
	if err != nil {
		return err
	}
	return m.cache.Save(ctx, data)
}

// AfterCommit refreshes the cache once an order is committed. Failures are
// logged and never reach the order engine.
func (m *Manager) AfterCommit(ctx context.Context, o ledger.Order) error {
	if err := m.Refresh(ctx); err != nil {
		m.log.WithError(err).WithField("order", o.ID).Warn("snapshot refresh failed")
	}
	return nil
}
