package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Save(ctx, testUpload("report.PDF", "application/pdf", 7))
	require.NoError(t, err)
	assert.Equal(t, "report.PDF", ref.OriginalName)
	assert.Equal(t, int64(7), ref.SizeBytes)
	assert.NotEqual(t, "report.PDF", ref.StorageKey, "blob keys never reuse client names")
	assert.Equal(t, ".pdf", filepath.Ext(ref.StorageKey))

	data, err := os.ReadFile(filepath.Join(dir, "uploads", ref.StorageKey))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	second, err := store.Save(ctx, testUpload("report.PDF", "application/pdf", 7))
	require.NoError(t, err)
	assert.NotEqual(t, ref.StorageKey, second.StorageKey)

	require.NoError(t, store.Delete(ctx, ref.StorageKey))
	_, err = os.Stat(filepath.Join(dir, "uploads", ref.StorageKey))
	assert.True(t, os.IsNotExist(err))

	t.Run("delete tolerates missing blob", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-existed.pdf"))
	})

	t.Run("delete ignores path traversal in keys", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "../outside.pdf"))
	})
}
