package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/stonetick/internal/engine"
	"github.com/talgya/stonetick/internal/sched"
)

// Error taxonomy. None of these is fatal to the game.
var (
	ErrNoSnapshot         = errors.New("no snapshot stored")
	ErrCorruptSnapshot    = errors.New("corrupt snapshot")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Storage is durable key-value storage. Set must be atomic per key.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Snapshot is a loaded save.
type Snapshot struct {
	State         *engine.GameState
	LastSave      time.Time
	SchemaVersion string
}

// record is the stored JSON form. Required fields are pointers so a missing
// field can be told apart from a zero value.
type record struct {
	GameID        string            `json:"gameId,omitempty"`
	TickCount     *uint64           `json:"tickCount"`
	LastTick      *int64            `json:"lastTickTimestamp,omitempty"`
	RecentEvents  []string          `json:"recentEvents"`
	Resources     map[string]uint64 `json:"resourceBalances"`
	Flags         map[string]bool   `json:"effectFlags"`
	LastSave      *int64            `json:"lastSaveTimestamp"`
	SchemaVersion *string           `json:"schemaVersion"`
}

// Gateway reads and writes the game snapshot under one storage key.
type Gateway struct {
	store   Storage
	clock   sched.Clock
	key     string
	version string
}

// NewGateway creates a gateway.
func NewGateway(store Storage, clock sched.Clock, key, version string) *Gateway {
	return &Gateway{store: store, clock: clock, key: key, version: version}
}

// Version returns the schema version written by Save.
func (g *Gateway) Version() string { return g.version }

// Save stamps the current time and schema version and writes the whole
// snapshot in one Set.
func (g *Gateway) Save(ctx context.Context, st *engine.GameState) error {
	return g.SaveAt(ctx, st, g.clock.Now())
}

// SaveAt is Save with an explicit save timestamp.
func (g *Gateway) SaveAt(ctx context.Context, st *engine.GameState, at time.Time) error {
	tick := st.TickCount
	saved := at.UnixMilli()
	version := g.version
	rec := record{
		GameID:        st.GameID,
		TickCount:     &tick,
		RecentEvents:  st.RecentEvents,
		Resources:     st.Resources,
		Flags:         st.Flags,
		LastSave:      &saved,
		SchemaVersion: &version,
	}
	if !st.LastTick.IsZero() {
		lt := st.LastTick.UnixMilli()
		rec.LastTick = &lt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := g.store.Set(ctx, g.key, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	slog.Debug("game saved", "tick", tick, "game", st.GameID)
	return nil
}

// Load returns the stored snapshot, or false when there is none usable.
// Storage and decode failures are logged and reported as "no snapshot".
func (g *Gateway) Load(ctx context.Context) (*Snapshot, bool) {
	snap, err := g.Read(ctx)
	switch {
	case err == nil:
		slog.Info("save data loaded", "tick", snap.State.TickCount, "game", snap.State.GameID)
		return snap, true
	case errors.Is(err, ErrNoSnapshot):
		slog.Info("no save data found")
	default:
		slog.Warn("ignoring unusable save data", "error", err)
	}
	return nil, false
}

// LoadState implements engine.Loader on top of Load and Elapsed.
func (g *Gateway) LoadState(ctx context.Context) (*engine.GameState, time.Duration, bool) {
	snap, ok := g.Load(ctx)
	if !ok {
		return nil, 0, false
	}
	return snap.State, g.Elapsed(snap), true
}

// Read is Load with the failure cause.
func (g *Gateway) Read(ctx context.Context) (*Snapshot, error) {
	raw, ok, err := g.store.Get(ctx, g.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !ok {
		return nil, ErrNoSnapshot
	}

	rec, err := g.decode([]byte(raw))
	if err != nil {
		return nil, err
	}

	st := &engine.GameState{
		GameID:       rec.GameID,
		TickCount:    *rec.TickCount,
		RecentEvents: rec.RecentEvents,
		Resources:    rec.Resources,
		Flags:        rec.Flags,
	}
	if rec.LastTick != nil {
		st.LastTick = time.UnixMilli(*rec.LastTick)
	}
	return &Snapshot{
		State:         st,
		LastSave:      time.UnixMilli(*rec.LastSave),
		SchemaVersion: *rec.SchemaVersion,
	}, nil
}

// Validate decodes raw snapshot JSON and checks it is loadable.
func (g *Gateway) Validate(raw []byte) error {
	_, err := g.decode(raw)
	return err
}

func (g *Gateway) decode(raw []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := g.validate(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// validate checks required fields. A schema version other than the
// current one is accepted with a warning so old saves keep loading.
func (g *Gateway) validate(rec *record) error {
	switch {
	case rec.TickCount == nil:
		return fmt.Errorf("%w: missing tickCount", ErrCorruptSnapshot)
	case rec.LastSave == nil:
		return fmt.Errorf("%w: missing lastSaveTimestamp", ErrCorruptSnapshot)
	case rec.SchemaVersion == nil:
		return fmt.Errorf("%w: missing schemaVersion", ErrCorruptSnapshot)
	}
	if *rec.SchemaVersion != g.version {
		slog.Warn("save data version mismatch", "saved", *rec.SchemaVersion, "current", g.version)
	}
	return nil
}

// Elapsed is the time since the snapshot was saved, clamped to zero when
// the save is in the future.
func (g *Gateway) Elapsed(snap *Snapshot) time.Duration {
	return max(0, g.clock.Now().Sub(snap.LastSave))
}

// HasSave reports whether a snapshot is stored, usable or not.
func (g *Gateway) HasSave(ctx context.Context) bool {
	_, ok, err := g.store.Get(ctx, g.key)
	return err == nil && ok
}

// Reset destroys the stored snapshot.
func (g *Gateway) Reset(ctx context.Context) error {
	if err := g.store.Remove(ctx, g.key); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	slog.Info("save data deleted", "key", g.key)
	return nil
}
