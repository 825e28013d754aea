package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	fc, err := NewFileCache(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, fc.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileCacheClearKeepsUnrelatedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, fc.Set(ctx, "/v1/alerts/active.json", []byte(`{}`), time.Minute))
	require.NoError(t, fc.Set(ctx, "/v1/iot/active_air_raid_alerts.json", []byte(`"AN"`), 0))

	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep me"), 0o600))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o700))
	leftover := filepath.Join(dir, "abc"+FileExt+".tmp-1234")
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0o600))

	require.NoError(t, fc.Clear(ctx))

	assert.Empty(t, fc.Keys(ctx))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
	_, err = os.Stat(sub)
	assert.NoError(t, err)
	_, err = os.Stat(leftover)
	assert.True(t, os.IsNotExist(err))
}

func TestFileCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	fc, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fc.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, os.WriteFile(fc.path("k"), []byte("{not json"), 0o600))

	_, ok := fc.Get(ctx, "k")
	assert.False(t, ok)
	_, ok = fc.GetStale(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, fc.Keys(ctx))

	fc.CleanupExpired(ctx)
	_, err = os.Stat(fc.path("k"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileCacheUnreadableDirDegrades(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)
	require.NoError(t, fc.Set(ctx, "k", []byte("v"), time.Minute))

	require.NoError(t, os.RemoveAll(dir))

	_, ok := fc.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, fc.Keys(ctx))
	fc.CleanupExpired(ctx)
	assert.NoError(t, fc.Delete(ctx, "k"))
}

func TestFileCacheHashedFileNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)

	key := "/v1/regions/31/alerts/month_ago.json"
	require.NoError(t, fc.Set(ctx, key, []byte("[]"), time.Minute, "alerts_history"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()
	assert.True(t, strings.HasSuffix(name, FileExt))
	assert.NotContains(t, name, "/")
	assert.Len(t, strings.TrimSuffix(name, FileExt), 64)
	assert.Equal(t, []string{key}, fc.Keys(ctx))
}
