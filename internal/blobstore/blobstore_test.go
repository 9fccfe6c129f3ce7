package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	n, err := store.Write(ctx, "a/b.txt", bytes.NewReader([]byte("hello world")), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	r, err := store.Read(ctx, "a/b.txt")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestWriteOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	_, err := store.Write(ctx, "k", bytes.NewReader([]byte("first")), "")
	require.NoError(t, err)
	_, err = store.Write(ctx, "k", bytes.NewReader([]byte("second")), "")
	require.NoError(t, err)

	data, err := store.ReadAll(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestReadMissingKey(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	_, err := store.ReadAll(ctx, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	_, err := store.Write(ctx, "x", bytes.NewReader([]byte("data")), "")
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "x")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "x"))

	exists, err = store.Exists(ctx, "x")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Delete(ctx, "x")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	_, err := store.Write(ctx, "meta.bin", bytes.NewReader(make([]byte, 1024)), "application/octet-stream")
	require.NoError(t, err)

	meta, err := store.Metadata(ctx, "meta.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), meta.Size)
	assert.Equal(t, "application/octet-stream", meta.ContentType)
	assert.False(t, meta.ModTime.IsZero())
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)

	for _, key := range []string{"tmp/uploads/u1/0", "tmp/uploads/u1/1", "tmp/uploads/u2/0", "files/f1"} {
		_, err := store.Write(ctx, key, bytes.NewReader([]byte("c")), "")
		require.NoError(t, err)
	}

	keys, err := store.List(ctx, "tmp/uploads/u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp/uploads/u1/0", "tmp/uploads/u1/1"}, keys)

	keys, err = store.List(ctx, "tmp/uploads/")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	keys, err = store.List(ctx, "missing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
