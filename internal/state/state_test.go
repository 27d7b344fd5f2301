package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadMissing(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), ".stockpile", "state.json"))

	rec, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, rec, "missing record file should load as nil")
}

func TestManager_SaveLoad(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), ".stockpile", "state.json")
	mgr := NewManager(statePath)

	rec := ir.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	rec.SetHandle(ir.Key{Kind: ir.KindStorage, Name: "uploads"}, &ir.Handle{
		Kind:   ir.KindStorage,
		Name:   "inventory-uploads-" + rec.RunSuffix,
		ID:     "arn:aws:s3:::inventory-uploads-" + rec.RunSuffix,
		Status: ir.StatusCreated,
	})
	rec.Outputs["api_url"] = "https://abc123.execute-api.us-east-1.amazonaws.com"

	require.NoError(t, mgr.Save(rec))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rec.RunSuffix, loaded.RunSuffix)
	assert.Equal(t, rec.Outputs["api_url"], loaded.Outputs["api_url"])

	h := loaded.Handle(ir.Key{Kind: ir.KindStorage, Name: "uploads"})
	require.NotNil(t, h)
	assert.Equal(t, ir.StatusCreated, h.Status)
	assert.Equal(t, "inventory-uploads-"+rec.RunSuffix, h.Name)
}

func TestManager_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(filepath.Join(dir, "state.json"))

	require.NoError(t, mgr.Save(ir.NewRecord(time.Now())))
	require.NoError(t, mgr.Save(ir.NewRecord(time.Now())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestManager_LoadCorrupt(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0644))

	_, err := NewManager(statePath).Load()
	assert.Error(t, err)
}

func TestManager_Clear(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	mgr := NewManager(statePath)

	// Clearing a record that never existed succeeds.
	require.NoError(t, mgr.Clear())

	require.NoError(t, mgr.Save(ir.NewRecord(time.Now())))
	require.NoError(t, mgr.Clear())

	_, err := os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestManager_Lock(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	mgr := NewManager(statePath)

	require.NoError(t, mgr.Lock())

	// A second lock attempt must fail while the first is held.
	err := mgr.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")

	require.NoError(t, mgr.Unlock())
	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestManager_LockReclaimsStale(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	mgr := NewManager(statePath)

	lockPath := statePath + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("pid=1 time=old"), 0644))
	old := time.Now().Add(-staleLockAge - time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	require.NoError(t, mgr.Lock(), "stale lock should be reclaimed")
	require.NoError(t, mgr.Unlock())
}
