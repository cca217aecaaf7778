package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "runs/r1/edges.json", []byte(`[]`)))

	data, err := store.Get(ctx, "runs/r1/edges.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)

	_, err = store.Get(ctx, "runs/r1/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("v1")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("v2")))

	data, err := store.Get(ctx, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestLocalStore_NoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a/b.json", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.json", entries[0].Name())
}

func TestLocalStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "runs/r1/a.json", []byte("1")))
	require.NoError(t, store.Put(ctx, "runs/r1/b.json", []byte("2")))
	require.NoError(t, store.Put(ctx, "runs/r2/a.json", []byte("3")))

	names, err := store.List(ctx, "runs/r1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/r1/a.json", "runs/r1/b.json"}, names)

	require.NoError(t, store.Delete(ctx, "runs/r1/a.json"))
	require.NoError(t, store.Delete(ctx, "runs/r1/a.json")) // idempotent

	names, err = store.List(ctx, "runs/r1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/r1/b.json"}, names)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "x", []byte("1")))
	data, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), data)

	// Mutating the returned slice must not corrupt the store.
	data[0] = 'z'
	again, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), again)

	_, err = store.Get(ctx, "y")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "x"))
	assert.Equal(t, 0, store.Len())
}
