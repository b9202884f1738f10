package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("webp bytes")
	require.NoError(t, store.Save(ctx, "avatars/42/avatar.webp", data))

	exists, err := store.Exists(ctx, "avatars/42/avatar.webp")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Read(ctx, "avatars/42/avatar.webp")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	abs, ok := store.AbsolutePath("avatars/42/avatar.webp")
	assert.True(t, ok)
	assert.NotEmpty(t, abs)

	require.NoError(t, store.DeletePrefix(ctx, "avatars/42"))
	exists, err = store.Exists(ctx, "avatars/42/avatar.webp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "../outside.txt", []byte("nope")))
	assert.Error(t, store.Save(ctx, "/etc/passwd", []byte("nope")))

	_, ok := store.AbsolutePath("../outside.txt")
	assert.False(t, ok)
}

func TestLocalStorage_DeleteMissingIsNoError(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "never/existed.webp"))
}
