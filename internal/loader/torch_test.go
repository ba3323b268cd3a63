package loader

import (
	"testing"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/tensor"
)

func pickledTensor(data []float32, size, stride []int, offset int) *pytorch.Tensor {
	return &pytorch.Tensor{
		Source:        &pytorch.FloatStorage{Data: data},
		StorageOffset: offset,
		Size:          size,
		Stride:        stride,
	}
}

func TestStateDictOrderedDictRoot(t *testing.T) {
	dict := types.NewOrderedDict()
	dict.Set("shared.weight", pickledTensor([]float32{1, 2, 3, 4, 5, 6}, []int{2, 3}, []int{3, 1}, 0))
	dict.Set("_metadata", "not a tensor")
	dict.Set("encoder.final_layer_norm.weight", pickledTensor([]float32{1, 1}, []int{2}, []int{1}, 0))

	ckpt, err := stateDictTensors(dict)
	require.NoError(t, err)
	defer ckpt.Close()

	// Insertion order survives, non-tensor entries are dropped.
	assert.Equal(t, []string{"shared.weight", "encoder.final_layer_norm.weight"}, ckpt.TensorNames())
	assert.Equal(t, FormatTorch, ckpt.Format())

	raw, err := ckpt.LoadTensor("shared.weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, raw.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, raw.AsFloat32())
}

func TestStateDictPlainDictRoot(t *testing.T) {
	dict := &types.Dict{}
	dict.Set("w", pickledTensor([]float32{7, 8}, []int{2}, []int{1}, 0))

	ckpt, err := stateDictTensors(dict)
	require.NoError(t, err)

	raw, err := ckpt.LoadTensor("w")
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 8}, raw.AsFloat32())
}

func TestStateDictStridedStorage(t *testing.T) {
	// A transposed view: storage holds a row-major (2,3) matrix, the
	// tensor reads it as (3,2) through swapped strides.
	dict := types.NewOrderedDict()
	dict.Set("t", pickledTensor([]float32{1, 2, 3, 4, 5, 6}, []int{3, 2}, []int{1, 3}, 0))

	ckpt, err := stateDictTensors(dict)
	require.NoError(t, err)

	raw, err := ckpt.LoadTensor("t")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, raw.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, raw.AsFloat32())
}

func TestStateDictRejectsNonDictRoot(t *testing.T) {
	_, err := stateDictTensors("not a dict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint root")
}

func TestStateDictEmpty(t *testing.T) {
	_, err := stateDictTensors(types.NewOrderedDict())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tensors")
}
