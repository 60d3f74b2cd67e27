package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "blob", []byte("hello")))

	rc, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("hello"), data)

	// Put replaces.
	require.NoError(t, store.Put(ctx, "blob", []byte("world")))
	rc, err = store.Get(ctx, "blob")
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("world"), data)

	require.NoError(t, store.Delete(ctx, "blob"))
	_, err = store.Get(ctx, "blob")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing blob is not an error.
	assert.NoError(t, store.Delete(ctx, "blob"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "blob", []byte("stable")))

	rc, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "blob", []byte("mutated")))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("stable"), data)
}
