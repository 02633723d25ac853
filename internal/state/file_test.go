package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

func TestFileStore_LoadEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir())

	ds, err := store.Load(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", ds.ID)
	assert.Equal(t, 0, ds.Serial)
	assert.Empty(t, ds.Resources)
}

func TestFileStore_CommitAndReload(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	_, err := store.Load(ctx, "prod")
	require.NoError(t, err)

	rs := &ir.ResourceState{
		Name:       "vpc",
		Kind:       ir.KindNetwork,
		ProviderID: "vpc-123",
		Status:     ir.StatusReady,
		SpecHash:   "abc",
		Attrs:      map[string]any{"id": "vpc-123"},
	}
	require.NoError(t, store.Commit(ctx, "vpc", rs))

	// The commit landed on disk, not just in memory.
	_, err = os.Stat(filepath.Join(dir, "prod", "state.json"))
	require.NoError(t, err)

	// A fresh store sees the committed transition.
	reloaded, err := NewFileStore(dir).Load(ctx, "prod")
	require.NoError(t, err)
	require.Contains(t, reloaded.Resources, "vpc")
	assert.Equal(t, "vpc-123", reloaded.Resources["vpc"].ProviderID)
	assert.Equal(t, ir.StatusReady, reloaded.Resources["vpc"].Status)
	assert.Equal(t, 1, reloaded.Serial)
}

func TestFileStore_SerialAdvancesPerCommit(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Load(ctx, "prod")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rs := &ir.ResourceState{Name: "vpc", Kind: ir.KindNetwork, Status: ir.StatusCreating}
		require.NoError(t, store.Commit(ctx, "vpc", rs))
	}

	assert.Equal(t, 3, store.Snapshot().Serial)
}

func TestFileStore_LastCommitWins(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Load(ctx, "prod")
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx, "vpc", &ir.ResourceState{
		Name: "vpc", Kind: ir.KindNetwork, Status: ir.StatusCreating,
	}))
	require.NoError(t, store.Commit(ctx, "vpc", &ir.ResourceState{
		Name: "vpc", Kind: ir.KindNetwork, Status: ir.StatusReady, ProviderID: "vpc-123",
	}))

	snap := store.Snapshot()
	assert.Equal(t, ir.StatusReady, snap.Resources["vpc"].Status)
	assert.Equal(t, "vpc-123", snap.Resources["vpc"].ProviderID)
}

func TestFileStore_SnapshotIsACopy(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Load(ctx, "prod")
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "vpc", &ir.ResourceState{
		Name: "vpc", Kind: ir.KindNetwork, Status: ir.StatusReady,
	}))

	snap := store.Snapshot()
	snap.Resources["vpc"].Status = ir.StatusFailed
	snap.Resources["intruder"] = &ir.ResourceState{Name: "intruder"}

	fresh := store.Snapshot()
	assert.Equal(t, ir.StatusReady, fresh.Resources["vpc"].Status)
	assert.NotContains(t, fresh.Resources, "intruder")
}

func TestFileStore_CorruptStateFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prod", "state.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(dir).Load(context.Background(), "prod")
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load", se.Op)
}

func TestFileStore_Lock(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Lock("prod"))

	// A second store cannot take the lock while it is held.
	other := NewFileStore(dir)
	require.Error(t, other.Lock("prod"))

	require.NoError(t, store.Unlock("prod"))
	require.NoError(t, other.Lock("prod"))
	require.NoError(t, other.Unlock("prod"))
}

func TestFileStore_LockIsPerDeployment(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Lock("prod"))
	defer store.Unlock("prod")

	// Another deployment in the same state directory locks independently.
	other := NewFileStore(dir)
	require.NoError(t, other.Lock("staging"))
	require.NoError(t, other.Unlock("staging"))

	// The lock file lives under the deployment's own directory.
	_, err := os.Stat(filepath.Join(dir, "prod", "state.lock"))
	require.NoError(t, err)
}

func TestFileStore_EncryptedRoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "state-key-for-round-trip-test!!!")

	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	_, err := store.Load(ctx, "prod")
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "vpc", &ir.ResourceState{
		Name: "vpc", Kind: ir.KindNetwork, Status: ir.StatusReady, ProviderID: "vpc-123",
	}))

	raw, err := os.ReadFile(filepath.Join(dir, "prod", "state.json"))
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "vpc-123")

	reloaded, err := NewFileStore(dir).Load(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "vpc-123", reloaded.Resources["vpc"].ProviderID)
}
