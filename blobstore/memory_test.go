package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w, err := store.Create(ctx, "b")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	_, err = store.Open(ctx, "b")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "a", []byte("xyz")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	blob, err := store.Open(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(5), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(buf, 3)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, store.Delete(ctx, "b"))
	_, err = store.Open(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Abort(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a", []byte("old")))

	w, err := store.Create(ctx, "a")
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	assert.ErrorIs(t, w.Close(), ErrAborted)

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)
	data, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestReadAt(t *testing.T) {
	data := []byte("0123456789")
	n, err := readAt(data, make([]byte, 10), 0)
	assert.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = readAt(data, make([]byte, 1), 10)
	assert.ErrorIs(t, err, io.EOF)

	_, err = readAt(data, make([]byte, 1), -1)
	assert.Error(t, err)
}
