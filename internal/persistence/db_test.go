package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stonetick.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.Get(ctx, "slot")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Set(ctx, "slot", `{"a":1}`))
	require.NoError(t, db.Set(ctx, "slot", `{"a":2}`))

	v, ok, err := db.Get(ctx, "slot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":2}`, v)

	slots, err := db.Slots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot", slots[0].Key)
	assert.Equal(t, 7, slots[0].Size)

	require.NoError(t, db.Remove(ctx, "slot"))
	_, ok, err = db.Get(ctx, "slot")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDB_GatewayRoundTripAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stonetick.db")

	db, err := Open(path)
	require.NoError(t, err)
	gw, _ := newTestGateway(db)
	require.NoError(t, gw.Save(ctx, sampleState()))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	gw, _ = newTestGateway(db)

	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(42), snap.State.TickCount)
	assert.Equal(t, uint64(88), snap.State.Resources["stone"])
}

func TestFileStorage_AtomicReplace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	_, ok, err := fs.Get(ctx, "save")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Set(ctx, "save", "one"))
	require.NoError(t, fs.Set(ctx, "save", "two"))

	v, ok, err := fs.Get(ctx, "save")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "save.json", entries[0].Name())

	require.NoError(t, fs.Remove(ctx, "save"))
	require.NoError(t, fs.Remove(ctx, "save"))
	_, ok, err = fs.Get(ctx, "save")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, fs.Set(context.Background(), "../escape", "x"))
	assert.Error(t, fs.Set(context.Background(), "", "x"))
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	store, closeFn, err := OpenBackend("sqlite", filepath.Join(dir, "nested", "save.db"))
	require.NoError(t, err)
	_, isDB := store.(*DB)
	assert.True(t, isDB)
	require.NoError(t, closeFn())

	store, closeFn, err = OpenBackend("file", filepath.Join(dir, "saves"))
	require.NoError(t, err)
	_, isFile := store.(*FileStorage)
	assert.True(t, isFile)
	require.NoError(t, closeFn())

	_, _, err = OpenBackend("redis", dir)
	assert.Error(t, err)
}

func TestOpenBackend_FailureKeepsCloseUsable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store, closeFn, err := OpenBackend("sqlite", filepath.Join(blocker, "save.db"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Nil(t, store)
	require.NotNil(t, closeFn)
	assert.NoError(t, closeFn())
}

func TestOpenOrMemory_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store, closeFn := OpenOrMemory("sqlite", filepath.Join(blocker, "save.db"))
	_, isMem := store.(*MemoryStorage)
	require.True(t, isMem)
	defer closeFn()

	gw, _ := newTestGateway(store)
	require.NoError(t, gw.Save(ctx, sampleState()))
	snap, ok := gw.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(42), snap.State.TickCount)

	store, closeFn = OpenOrMemory("file", filepath.Join(t.TempDir(), "saves"))
	_, isFile := store.(*FileStorage)
	assert.True(t, isFile)
	assert.NoError(t, closeFn())
}
