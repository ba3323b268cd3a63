package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/gramconv/internal/tensor"
)

// Format represents the checkpoint weight format.
type Format int

// Supported checkpoint formats.
const (
	FormatUnknown Format = iota
	FormatSafeTensors
	FormatTorch
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatTorch:
		return "PyTorch"
	default:
		return "Unknown"
	}
}

// Weight file names inside a model snapshot, in preference order.
const (
	SafeTensorsFile = "model.safetensors"
	TorchFile       = "pytorch_model.bin"
)

// Checkpoint provides a unified interface over model weight files.
type Checkpoint interface {
	// Format returns the checkpoint format.
	Format() Format

	// TensorNames returns all tensor names in the checkpoint.
	TensorNames() []string

	// LoadTensor loads a tensor by name. Half-precision weights come
	// back widened to float32.
	LoadTensor(name string) (*tensor.RawTensor, error)

	// Close closes the underlying file.
	Close() error
}

// Open opens the weights inside a model directory, preferring
// SafeTensors over the legacy PyTorch pickle.
func Open(dir string) (Checkpoint, error) {
	if path := filepath.Join(dir, SafeTensorsFile); fileExists(path) {
		return OpenFile(path)
	}
	if path := filepath.Join(dir, TorchFile); fileExists(path) {
		return OpenFile(path)
	}
	return nil, fmt.Errorf("no weights found in %s (expected %s or %s)", dir, SafeTensorsFile, TorchFile)
}

// OpenFile opens a single weight file, detecting the format from its
// extension.
func OpenFile(path string) (Checkpoint, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors":
		return openSafeTensors(path)
	case ".bin", ".pt", ".pth":
		return openTorch(path)
	default:
		return nil, fmt.Errorf("unsupported weight file: %s", path)
	}
}

// safeTensorsCheckpoint adapts SafeTensorsReader to Checkpoint.
type safeTensorsCheckpoint struct {
	reader *SafeTensorsReader
}

func openSafeTensors(path string) (Checkpoint, error) {
	reader, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, err
	}
	return &safeTensorsCheckpoint{reader: reader}, nil
}

func (c *safeTensorsCheckpoint) Format() Format { return FormatSafeTensors }

func (c *safeTensorsCheckpoint) TensorNames() []string { return c.reader.TensorNames() }

func (c *safeTensorsCheckpoint) LoadTensor(name string) (*tensor.RawTensor, error) {
	return c.reader.LoadTensor(name)
}

func (c *safeTensorsCheckpoint) Close() error { return c.reader.Close() }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
