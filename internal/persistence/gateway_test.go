package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/stonetick/internal/effects"
	"github.com/talgya/stonetick/internal/engine"
	"github.com/talgya/stonetick/internal/sched"
)

const testKey = "stonetickSave"

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestGateway(store Storage) (*Gateway, *sched.Manual) {
	clock := sched.NewManual(epoch)
	return NewGateway(store, clock, testKey, "1.0.0"), clock
}

func sampleState() *engine.GameState {
	return &engine.GameState{
		GameID:       "g-1",
		TickCount:    42,
		LastTick:     epoch.Add(-time.Second),
		RecentEvents: []string{"T40: 10th tick milestone!", "T40: Every 5th tick special!"},
		Resources:    map[string]uint64{effects.Stone: 88, effects.Iron: 9},
		Flags:        map[string]bool{effects.MiningName: true},
	}
}

func TestGateway_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(NewMemoryStorage())

	st := sampleState()
	require.NoError(t, gw.Save(ctx, st))

	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", snap.SchemaVersion)
	assert.True(t, snap.LastSave.Equal(epoch))
	assert.Equal(t, st.TickCount, snap.State.TickCount)
	assert.Equal(t, st.RecentEvents, snap.State.RecentEvents)
	assert.Equal(t, st.Resources, snap.State.Resources)
	assert.Equal(t, st.Flags, snap.State.Flags)
	assert.Equal(t, st.GameID, snap.State.GameID)
	assert.True(t, snap.State.LastTick.Equal(st.LastTick))
}

func TestGateway_LoadAbsent(t *testing.T) {
	gw, _ := newTestGateway(NewMemoryStorage())
	snap, ok := gw.Load(context.Background())
	assert.False(t, ok)
	assert.Nil(t, snap)

	_, err := gw.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.False(t, gw.HasSave(context.Background()))
}

func TestGateway_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":         "{{{",
		"foreign":          `{"hello":"world"}`,
		"missing tick":     `{"lastSaveTimestamp":1,"schemaVersion":"1.0.0"}`,
		"missing saved at": `{"tickCount":3,"schemaVersion":"1.0.0"}`,
		"missing version":  `{"tickCount":3,"lastSaveTimestamp":1}`,
		"negative balance": `{"tickCount":3,"lastSaveTimestamp":1,"schemaVersion":"1.0.0","resourceBalances":{"stone":-1}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			store := NewMemoryStorage()
			require.NoError(t, store.Set(ctx, testKey, raw))
			gw, _ := newTestGateway(store)

			_, ok := gw.Load(ctx)
			assert.False(t, ok)

			_, err := gw.Read(ctx)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
			assert.True(t, gw.HasSave(ctx))
		})
	}
}

func TestGateway_VersionMismatchStillLoads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	old := NewGateway(store, sched.NewManual(epoch), testKey, "0.9.0")
	require.NoError(t, old.Save(ctx, sampleState()))

	gw, _ := newTestGateway(store)
	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "0.9.0", snap.SchemaVersion)
	assert.Equal(t, uint64(42), snap.State.TickCount)

	assert.NoError(t, gw.Validate([]byte(`{"tickCount":1,"lastSaveTimestamp":1,"schemaVersion":"2.0.0"}`)))
}

func TestGateway_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	gw, _ := newTestGateway(store)

	store.FailWrites = true
	err := gw.Save(ctx, sampleState())
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	store.FailWrites = false
	require.NoError(t, gw.Save(ctx, sampleState()))

	store.FailReads = true
	_, ok := gw.Load(ctx)
	assert.False(t, ok)
	_, err = gw.Read(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestGateway_FailedSaveKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	gw, _ := newTestGateway(store)

	require.NoError(t, gw.Save(ctx, sampleState()))
	store.FailWrites = true
	next := sampleState()
	next.TickCount = 99
	assert.Error(t, gw.Save(ctx, next))
	store.FailWrites = false

	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(42), snap.State.TickCount)
}

func TestGateway_Elapsed(t *testing.T) {
	gw, clock := newTestGateway(NewMemoryStorage())

	snap := &Snapshot{LastSave: epoch.Add(-90 * time.Second)}
	assert.Equal(t, 90*time.Second, gw.Elapsed(snap))

	future := &Snapshot{LastSave: epoch.Add(time.Hour)}
	assert.Equal(t, time.Duration(0), gw.Elapsed(future))

	clock.Set(epoch.Add(2 * time.Hour))
	assert.Equal(t, time.Hour, gw.Elapsed(future))
}

func TestGateway_SaveAt(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(NewMemoryStorage())

	at := epoch.Add(-10 * time.Minute)
	require.NoError(t, gw.SaveAt(ctx, sampleState(), at))
	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.True(t, snap.LastSave.Equal(at))
	assert.Equal(t, 10*time.Minute, gw.Elapsed(snap))
}

func TestGateway_Reset(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(NewMemoryStorage())
	require.NoError(t, gw.Save(ctx, sampleState()))
	require.True(t, gw.HasSave(ctx))

	require.NoError(t, gw.Reset(ctx))
	assert.False(t, gw.HasSave(ctx))
	_, ok := gw.Load(ctx)
	assert.False(t, ok)
}
