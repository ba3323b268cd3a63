package hub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeCacheEntry lays out a hub cache entry for a model id and returns
// the snapshot directory.
func makeCacheEntry(t *testing.T, cacheDir, modelID, commit string, withRef bool) string {
	t.Helper()

	modelDir := filepath.Join(cacheDir, modelIDToCacheDir(modelID))
	snapshot := filepath.Join(modelDir, snapshotDir, commit)
	require.NoError(t, os.MkdirAll(snapshot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "config.json"), []byte("{}"), 0o644))

	if withRef {
		refPath := filepath.Join(modelDir, refDir)
		require.NoError(t, os.MkdirAll(refPath, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(refPath, "main"), []byte(commit+"\n"), 0o644))
	}
	return snapshot
}

func TestResolveLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	resolved, err := Resolve(dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)
}

func TestResolveThroughRefFile(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("HF_HUB_CACHE", cache)

	snapshot := makeCacheEntry(t, cache, "prithivida/grammar_error_correcter_v1", "abc123", true)

	resolved, err := Resolve("prithivida/grammar_error_correcter_v1", "")
	require.NoError(t, err)
	assert.Equal(t, snapshot, resolved)
}

func TestResolveSingleSnapshotWithoutRefs(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("HF_HUB_CACHE", cache)

	snapshot := makeCacheEntry(t, cache, "owner/model", "deadbeef", false)

	resolved, err := Resolve("owner/model", "")
	require.NoError(t, err)
	assert.Equal(t, snapshot, resolved)
}

func TestResolveCommitHashRevision(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("HF_HUB_CACHE", cache)

	snapshot := makeCacheEntry(t, cache, "owner/model", "cafe42", false)

	resolved, err := Resolve("owner/model", "cafe42")
	require.NoError(t, err)
	assert.Equal(t, snapshot, resolved)
}

func TestResolveMissingModel(t *testing.T) {
	t.Setenv("HF_HUB_CACHE", t.TempDir())

	_, err := Resolve("owner/not-downloaded", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in hub cache")
}

func TestFindFile(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("HF_HUB_CACHE", cache)

	makeCacheEntry(t, cache, "owner/model", "abc", true)

	path, err := FindFile("owner/model", "", "config.json")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = FindFile("owner/model", "", "model.safetensors")
	assert.Error(t, err)
}

func TestCacheDirPrecedence(t *testing.T) {
	t.Setenv("HF_HUB_CACHE", "/tmp/explicit-cache")
	t.Setenv("HF_HOME", "/tmp/hf-home")
	assert.Equal(t, "/tmp/explicit-cache", CacheDir())

	t.Setenv("HF_HUB_CACHE", "")
	assert.Equal(t, filepath.Join("/tmp/hf-home", "hub"), CacheDir())

	t.Setenv("HF_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", defaultCacheSubdir), CacheDir())
}
