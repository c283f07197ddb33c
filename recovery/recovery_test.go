package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/pkg/id"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  time.Duration
	err  error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	if f.data == nil {
		f.data = map[string]string{}
	}
	f.data[key] = string(value.([]byte))
	f.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

func openStore(t *testing.T, dir string) *ledger.Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := ledger.Open(context.Background(), filepath.Join(dir, "ledger.db"), ledger.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestFileCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewFileCache(filepath.Join(t.TempDir(), "backup", "snapshot.json"))

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, c.Save(ctx, []byte(`{"a":1}`)))
	require.NoError(t, c.Save(ctx, []byte(`{"a":2}`)))

	data, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(c.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestRedisCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := &fakeRedis{}
	c := newRedisCache(fake, "", time.Hour)

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, c.Save(ctx, []byte("payload")))
	assert.Equal(t, time.Hour, fake.ttl)
	assert.Contains(t, fake.data, DefaultRedisKey)

	data, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	fake.err = errors.New("connection refused")
	_, err = c.Load(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestEnvelope(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	data, err := seal([]byte(`{"holdings":[],"orders":[],"cash_balance":1}`), now)
	require.NoError(t, err)

	env, err := unseal(data)
	require.NoError(t, err)
	assert.True(t, env.SavedAt.Equal(now))
	ts, err := id.Time(env.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(now))

	_, err = unseal([]byte(`{"id":"x"}`))
	assert.Error(t, err)

	_, err = unseal([]byte(`{"id":"not-a-ulid","snapshot":{"holdings":[],"orders":[],"cash_balance":1}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad id")
}

func TestRestoreFresh(t *testing.T) {
	t.Parallel()
	s := openStore(t, t.TempDir())
	m := NewManager(s, nil, WithLogger(quietLogger()))

	state, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Fresh, state)
	assert.Equal(t, Fresh, m.State())
}

func TestRestoreFromCacheAfterLosingDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "snapshot.json"))

	// first process: trade, refreshing the cache after each order
	s1 := openStore(t, t.TempDir())
	m1 := NewManager(s1, cache, WithLogger(quietLogger()))
	e := broker.NewEngine(s1, broker.WithLogger(quietLogger()))
	e.OnCommit(m1.AfterCommit)

	_, err := e.Buy(ctx, broker.OrderRequest{Symbol: "RELIANCE", Quantity: 10, Price: decimal.NewFromInt(2500)})
	require.NoError(t, err)
	_, err = e.Buy(ctx, broker.OrderRequest{Symbol: "INFY", Quantity: 4, Price: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	want, err := s1.Snapshot(ctx)
	require.NoError(t, err)

	// second process: the database is gone, the cache is not
	s2 := openStore(t, t.TempDir())
	m2 := NewManager(s2, cache, WithLogger(quietLogger()))
	state, err := m2.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, Restored, state)

	got, err := s2.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, want.Cash.Equal(got.Cash))
	require.Len(t, got.Holdings, 2)
	assert.Equal(t, "RELIANCE", got.Holdings[0].Symbol)
	require.Len(t, got.Orders, 2)
	assert.Equal(t, "INFY", got.Orders[0].Symbol)
}

func TestRestoreLeavesActiveLedgerAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := &fakeRedis{}
	cache := newRedisCache(fake, "k", 0)
	other := openStore(t, t.TempDir())
	require.NoError(t, other.SetCash(ctx, decimal.NewFromInt(1)))
	require.NoError(t, NewManager(other, cache, WithLogger(quietLogger())).Refresh(ctx))

	s := openStore(t, t.TempDir())
	_, err := s.AppendOrder(ctx, ledger.Order{Symbol: "SBIN", Type: ledger.Buy, Quantity: 1, Price: decimal.NewFromInt(600), Timestamp: time.Now()})
	require.NoError(t, err)

	m := NewManager(s, cache, WithLogger(quietLogger()))
	state, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, Active, state)

	cash, err := s.Cash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.DefaultCash))
}

func TestRestoreRunsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache := &countingCache{}
	m := NewManager(openStore(t, t.TempDir()), cache, WithLogger(quietLogger()))

	for i := 0; i < 3; i++ {
		state, err := m.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, Fresh, state)
	}
	assert.Equal(t, 1, cache.loads)
}

func TestRestoreDegradesToFresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		cache Cache
	}{
		{"cache unreachable", newRedisCache(&fakeRedis{err: errors.New("dial tcp: refused")}, "", 0)},
		{"garbage envelope", &countingCache{data: []byte("not json")}},
		{"invalid snapshot", &countingCache{data: []byte(`{"id":"01ARZ3NDEKTSV4RRFFQ69G5FAV","saved_at":"2024-01-01T00:00:00Z","snapshot":{"holdings":[]}}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, hook := test.NewNullLogger()
			s := openStore(t, t.TempDir())
			m := NewManager(s, tt.cache, WithLogger(logger))

			state, err := m.Restore(ctx)
			assert.Error(t, err)
			assert.Equal(t, Fresh, state)
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

			cash, err := s.Cash(ctx)
			require.NoError(t, err)
			assert.True(t, cash.Equal(ledger.DefaultCash))
		})
	}
}

func TestAfterCommitSwallowsCacheErrors(t *testing.T) {
	t.Parallel()
	logger, hook := test.NewNullLogger()
	s := openStore(t, t.TempDir())
	m := NewManager(s, newRedisCache(&fakeRedis{err: errors.New("timeout")}, "", 0), WithLogger(logger))

	err := m.AfterCommit(context.Background(), ledger.Order{ID: 1})
	assert.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "snapshot refresh failed", hook.LastEntry().Message)
}

type countingCache struct {
	data  []byte
	loads int
}

func (c *countingCache) Save(_ context.Context, data []byte) error {
	c.data = data
	return nil
}

func (c *countingCache) Load(context.Context) ([]byte, error) {
	c.loads++
	if c.data == nil {
		return nil, ErrNoSnapshot
	}
	return c.data, nil
}
