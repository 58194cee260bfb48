package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return store
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "store")

		store, err := NewLocalStorage(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "vid2gif"), store.Dir())
	})
}

func TestLocalStorage_PutGetDelete(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "gifHistory")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "gifHistory", []byte(`[{"url":"a"}]`)))

	got, err := store.Get(ctx, "gifHistory")
	require.NoError(t, err)
	assert.Equal(t, `[{"url":"a"}]`, string(got))

	require.NoError(t, store.Put(ctx, "gifHistory", []byte(`[]`)))
	got, err = store.Get(ctx, "gifHistory")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "gifHistory"))
	_, err = store.Get(ctx, "gifHistory")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "gifHistory"))
}

func TestLocalStorage_PutLeavesNoTempFiles(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, "gifHistory", bytes.Repeat([]byte("x"), i*100)))
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "gifHistory.json", entries[0].Name())

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLocalStorage_InvalidKey(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, "../escape", []byte("x")), ErrInvalidKey)
	_, err := store.Get(ctx, "a/b")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidKey)
}

func TestLocalStorage_RespectsContextCancellation(t *testing.T) {
	store := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Put(ctx, "k", []byte("x")))
	_, err := store.Get(ctx, "k")
	assert.Error(t, err)
	_, err = store.SaveTemp(ctx, "frame", bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestLocalStorage_SaveTempAndCleanup(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	path, err := store.SaveTemp(ctx, "frame", bytes.NewReader([]byte("png data")))
	require.NoError(t, err)
	assert.True(t, strings.Contains(filepath.Base(path), "frame_"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png data", string(content))

	missing := filepath.Join(store.Dir(), "does-not-exist")
	require.NoError(t, store.CleanupTemp(ctx, []string{path, missing}))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
