// Package hub resolves model references to local directories.
//
// A reference is either a filesystem path to a model directory or a
// HuggingFace model id ("owner/name"), which is looked up in the local
// hub cache using the same layout as the Python huggingface_hub client:
//
//	<cache>/models--owner--name/refs/<revision>      -> commit hash
//	<cache>/models--owner--name/snapshots/<commit>/  -> model files
//
// gramconv never downloads; the model must already be on disk.
package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cache layout constants, matching huggingface_hub.
const (
	defaultCacheSubdir = "huggingface/hub"
	refDir             = "refs"
	snapshotDir        = "snapshots"
	modelPrefix        = "models--"

	// DefaultRevision is used when a model id carries no revision.
	DefaultRevision = "main"
)

// CacheDir returns the hub cache directory, honoring HF_HUB_CACHE,
// HF_HOME and XDG_CACHE_HOME in that order.
func CacheDir() string {
	if cacheDir := os.Getenv("HF_HUB_CACHE"); cacheDir != "" {
		return cacheDir
	}
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, defaultCacheSubdir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultCacheSubdir)
	}
	return filepath.Join(home, ".cache", defaultCacheSubdir)
}

// Resolve maps a model reference to a local directory containing the
// model files. A reference that exists as a directory is returned as
// is; anything else is treated as a model id and resolved through the
// hub cache at the given revision ("" means main).
func Resolve(ref, revision string) (string, error) {
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return ref, nil
	}

	if revision == "" {
		revision = DefaultRevision
	}

	modelDir := filepath.Join(CacheDir(), modelIDToCacheDir(ref))
	if _, err := os.Stat(modelDir); err != nil {
		return "", fmt.Errorf("model %q not found locally and not in hub cache %s", ref, CacheDir())
	}

	// A ref file maps the symbolic revision to a commit hash.
	if data, err := os.ReadFile(filepath.Join(modelDir, refDir, revision)); err == nil {
		commit := strings.TrimSpace(string(data))
		snapshot := filepath.Join(modelDir, snapshotDir, commit)
		if dirNonEmpty(snapshot) {
			return snapshot, nil
		}
	}

	// The revision may already be a commit hash.
	snapshot := filepath.Join(modelDir, snapshotDir, revision)
	if dirNonEmpty(snapshot) {
		return snapshot, nil
	}

	// Partially materialized caches sometimes lack refs. If exactly one
	// snapshot exists, use it.
	entries, err := os.ReadDir(filepath.Join(modelDir, snapshotDir))
	if err == nil {
		var dirs []string
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, e.Name())
			}
		}
		if len(dirs) == 1 {
			return filepath.Join(modelDir, snapshotDir, dirs[0]), nil
		}
	}

	return "", fmt.Errorf("model %q: revision %q not found in cache entry %s", ref, revision, modelDir)
}

// FindFile resolves the model reference and returns the path of a named
// file inside it.
func FindFile(ref, revision, filename string) (string, error) {
	dir, err := Resolve(ref, revision)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model %q has no %s: %w", ref, filename, err)
	}
	return path, nil
}

func modelIDToCacheDir(modelID string) string {
	return modelPrefix + strings.ReplaceAll(modelID, "/", "--")
}

func dirNonEmpty(path string) bool {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return false
	}
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
