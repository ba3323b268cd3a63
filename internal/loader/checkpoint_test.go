package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPrefersSafeTensors(t *testing.T) {
	dir := t.TempDir()
	writeSafeTensors(t, filepath.Join(dir, SafeTensorsFile), map[string]stEntry{
		"w": {dtype: SafeTensorsF32, shape: []int{1}, data: f32Bytes(1)},
	}, nil)
	// A stale torch file next to it must lose.
	require.NoError(t, os.WriteFile(filepath.Join(dir, TorchFile), []byte("not a real checkpoint"), 0o644))

	ckpt, err := Open(dir)
	require.NoError(t, err)
	defer ckpt.Close()

	assert.Equal(t, FormatSafeTensors, ckpt.Format())
	assert.Equal(t, []string{"w"}, ckpt.TensorNames())
}

func TestOpenMissingWeights(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no weights found")
}

func TestOpenFileUnsupportedExtension(t *testing.T) {
	_, err := OpenFile("weights.gguf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported weight file")
}

func TestOpenFileTorchRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pytorch_model.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "SafeTensors", FormatSafeTensors.String())
	assert.Equal(t, "PyTorch", FormatTorch.String())
	assert.Equal(t, "Unknown", FormatUnknown.String())
}
