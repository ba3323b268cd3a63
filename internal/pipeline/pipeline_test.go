package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/export"
	"github.com/born-ml/gramconv/internal/logger"
	"github.com/born-ml/gramconv/internal/pipeline"
	"github.com/born-ml/gramconv/internal/t5/t5test"
)

// writeTinySnapshot builds a complete fake model snapshot on disk.
func writeTinySnapshot(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snapshot")
	cfg := t5test.TinyConfig()
	require.NoError(t, t5test.WriteSnapshot(dir, cfg, t5test.NewCheckpoint(cfg)))
	return dir
}

func tinyRunConfig(modelDir, outDir string) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Model = modelDir
	cfg.OutputDir = outDir
	cfg.Export = export.ExportConfig{EncoderLength: 6, DecoderLength: 3, Seed: 42}
	return cfg
}

func TestRunProducesArtifacts(t *testing.T) {
	modelDir := writeTinySnapshot(t)
	outDir := filepath.Join(t.TempDir(), "out")

	err := pipeline.Run(tinyRunConfig(modelDir, outDir), logger.Discard())
	require.NoError(t, err)

	for _, name := range []string{
		export.EncoderFile,
		export.DecoderFile,
		"spiece.model",
		"tokenizer.json",
	} {
		info, statErr := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, statErr, "expected artifact %s", name)
		assert.Positive(t, info.Size())
	}
}

func TestRunDegradedTokenizerStillExports(t *testing.T) {
	modelDir := writeTinySnapshot(t)
	require.NoError(t, os.Remove(filepath.Join(modelDir, "tokenizer.json")))
	outDir := filepath.Join(t.TempDir(), "out")

	err := pipeline.Run(tinyRunConfig(modelDir, outDir), logger.Discard())
	require.NoError(t, err, "missing fast tokenizer must not fail the run")

	for _, name := range []string{export.EncoderFile, export.DecoderFile, "spiece.model"} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, "expected artifact %s", name)
	}
	_, statErr := os.Stat(filepath.Join(outDir, "tokenizer.json"))
	assert.Error(t, statErr, "fast tokenizer should be absent")
}

func TestRunFatalOnMissingConfig(t *testing.T) {
	modelDir := writeTinySnapshot(t)
	require.NoError(t, os.Remove(filepath.Join(modelDir, "config.json")))

	err := pipeline.Run(tinyRunConfig(modelDir, filepath.Join(t.TempDir(), "out")), logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestRunFatalOnMissingWeights(t *testing.T) {
	modelDir := writeTinySnapshot(t)
	require.NoError(t, os.Remove(filepath.Join(modelDir, "model.safetensors")))

	err := pipeline.Run(tinyRunConfig(modelDir, filepath.Join(t.TempDir(), "out")), logger.Discard())
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(pipeline.EnvModel, "someone/some-model")
	t.Setenv(pipeline.EnvOutputDir, "/tmp/gramconv-out")
	t.Setenv(pipeline.EnvRevision, "deadbeef")

	cfg := pipeline.ConfigFromEnv()
	assert.Equal(t, "someone/some-model", cfg.Model)
	assert.Equal(t, "/tmp/gramconv-out", cfg.OutputDir)
	assert.Equal(t, "deadbeef", cfg.Revision)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv(pipeline.EnvModel, "")
	t.Setenv(pipeline.EnvOutputDir, "")
	t.Setenv(pipeline.EnvRevision, "")

	cfg := pipeline.ConfigFromEnv()
	assert.Equal(t, pipeline.DefaultModel, cfg.Model)
	assert.Equal(t, "models", cfg.OutputDir)
	assert.Equal(t, "main", cfg.Revision)
}
