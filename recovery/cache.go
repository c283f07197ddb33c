// Package recovery keeps a copy of the ledger outside the SQLite file and
// replays it into an empty ledger at startup.
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/pkg/id"
)

// ErrNoSnapshot is returned by Cache.Load when nothing has been saved.
var ErrNoSnapshot = errors.New("no cached snapshot")

// Cache stores the most recent ledger snapshot. Implementations are best
// effort; the copy may be stale.
type Cache interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// NopCache is used when backups are disabled.
type NopCache struct{}

func (NopCache) Save(context.Context, []byte) error { return nil }

func (NopCache) Load(context.Context) ([]byte, error) { return nil, ErrNoSnapshot }

// Envelope wraps a structured snapshot payload with an identifier and the
// time it was saved.
type Envelope struct {
	ID       string          `json:"id"`
	SavedAt  time.Time       `json:"saved_at"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func seal(payload []byte, now time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:       id.NewAt(now),
		SavedAt:  now.UTC(),
		Snapshot: payload,
	})
}

func unseal(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Snapshot) == 0 {
		return Envelope{}, errors.New("decode envelope: empty snapshot")
	}
	if _, err := id.Time(env.ID); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: bad id %q: %w", env.ID, err)
	}
	return env, nil
}
