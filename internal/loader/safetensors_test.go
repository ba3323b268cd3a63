package loader

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/gramconv/internal/tensor"
)

type stEntry struct {
	dtype SafeTensorsDType
	shape []int
	data  []byte
}

// writeSafeTensors builds a .safetensors file from name -> entry pairs.
func writeSafeTensors(t *testing.T, path string, entries map[string]stEntry, metadata map[string]string) {
	t.Helper()

	header := make(map[string]interface{})
	if metadata != nil {
		header["__metadata__"] = metadata
	}

	var blob []byte
	for name, e := range entries {
		start := len(blob)
		blob = append(blob, e.data...)
		header[name] = SafeTensorInfo{
			DType:       e.dtype,
			Shape:       e.shape,
			DataOffsets: [2]int64{int64(start), int64(len(blob))},
		}
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	out := make([]byte, 8, 8+len(headerJSON)+len(blob))
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	out = append(out, blob...)

	require.NoError(t, os.WriteFile(path, out, 0o644))
}

func f32Bytes(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func f16Bytes(values ...float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out
}

func bf16Bytes(values ...float32) []byte {
	// bfloat16 is the upper half of the float32 bit pattern.
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(math.Float32bits(v)>>16))
	}
	return out
}

func TestSafeTensorsReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafeTensors(t, path, map[string]stEntry{
		"shared.weight": {dtype: SafeTensorsF32, shape: []int{2, 3}, data: f32Bytes(1, 2, 3, 4, 5, 6)},
	}, map[string]string{"format": "pt"})

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, map[string]string{"format": "pt"}, r.Metadata())
	assert.Equal(t, []string{"shared.weight"}, r.TensorNames())

	info, err := r.TensorInfo("shared.weight")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF32, info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)

	raw, err := r.LoadTensor("shared.weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, raw.Shape())
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, raw.AsFloat32())

	_, err = r.LoadTensor("missing")
	assert.Error(t, err)
}

func TestSafeTensorsHalfPrecisionWidening(t *testing.T) {
	values := []float32{0, 1, -2, 0.5}

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafeTensors(t, path, map[string]stEntry{
		"f16": {dtype: SafeTensorsF16, shape: []int{4}, data: f16Bytes(values...)},
		"bf16": {dtype: SafeTensorsBF16, shape: []int{4}, data: bf16Bytes(values...)},
	}, nil)

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	for _, name := range []string{"f16", "bf16"} {
		raw, err := r.LoadTensor(name)
		require.NoError(t, err, name)
		assert.Equal(t, tensor.Float32, raw.DType(), name)
		got := raw.AsFloat32()
		require.Len(t, got, len(values), name)
		for i, want := range values {
			// These values are exactly representable in both formats.
			assert.Equal(t, want, got[i], "%s[%d]", name, i)
		}
	}
}

func TestSafeTensorsInt64Tensor(t *testing.T) {
	data := make([]byte, 3*8)
	for i, v := range []int64{7, -1, 42} {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafeTensors(t, path, map[string]stEntry{
		"ids": {dtype: SafeTensorsI64, shape: []int{3}, data: data},
	}, nil)

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.LoadTensor("ids")
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, raw.DType())
	assert.Equal(t, []int64{7, -1, 42}, raw.AsInt64())
}

func TestSafeTensorsRejectsOversizedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, 200*1024*1024)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := NewSafeTensorsReader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header size")
}

func TestSafeTensorsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafeTensors(t, path, map[string]stEntry{
		"w": {dtype: SafeTensorsF32, shape: []int{10}, data: f32Bytes(1, 2)},
	}, nil)

	r, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.LoadTensor("w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match shape")
}
