package onnx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/backend/cpu"
	"github.com/born-ml/gramconv/internal/tensor"
)

// traceLinearRelu traces y = relu(x @ w + bias) with a dynamic batch axis.
func traceLinearRelu(t *testing.T, backend tensor.Backend) *ModelProto {
	t.Helper()

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // G404: Deterministic test data.
	x := tensor.Randn(tensor.Shape{2, 4}, rng)
	w := tensor.Randn(tensor.Shape{4, 3}, rng)
	bias := tensor.Randn(tensor.Shape{3}, rng)

	b := NewGraphBuilder("linear_relu", backend)
	xv := b.Input("x", x, map[int]string{0: "batch_size"})
	wv := b.Initializer("w", w)
	bv := b.Initializer("bias", bias)
	y := b.Relu(b.Add(b.MatMul(xv, wv), bv))
	b.Output("y", y, map[int]string{0: "batch_size"})

	model, err := b.Finish()
	require.NoError(t, err)
	return model
}

func TestGraphBuilderTracesAndExecutes(t *testing.T) {
	backend := cpu.New()
	model := traceLinearRelu(t, backend)

	require.NotNil(t, model.Graph)
	assert.Equal(t, "linear_relu", model.Graph.Name)
	require.Len(t, model.OpsetImport, 1)
	assert.Equal(t, int64(OpsetVersion), model.OpsetImport[0].Version)

	// MatMul, Add, Relu
	require.Len(t, model.Graph.Nodes, 3)
	assert.Equal(t, "MatMul", model.Graph.Nodes[0].OpType)
	assert.Equal(t, "Add", model.Graph.Nodes[1].OpType)
	assert.Equal(t, "Relu", model.Graph.Nodes[2].OpType)

	// The final node's output carries the public name.
	assert.Equal(t, []string{"y"}, model.Graph.Nodes[2].Outputs)

	require.Len(t, model.Graph.Inputs, 1)
	dims := model.Graph.Inputs[0].Type.TensorType.Shape.Dims
	require.Len(t, dims, 2)
	assert.Equal(t, "batch_size", dims[0].DimParam)
	assert.Equal(t, int64(4), dims[1].DimValue)
}

func TestTracedGraphRunsAtDifferentBatchSize(t *testing.T) {
	backend := cpu.New()
	model := traceLinearRelu(t, backend)

	data, err := Serialize(model)
	require.NoError(t, err)

	loaded, err := LoadFromBytes(data, backend, LoadOptions{StrictMode: true})
	require.NoError(t, err)

	// Run with batch size 5, not the traced batch size 2.
	rng := rand.New(rand.NewSource(11)) //nolint:gosec // G404: Deterministic test data.
	x := tensor.Randn(tensor.Shape{5, 4}, rng)

	outputs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{"x": x})
	require.NoError(t, err)

	y, ok := outputs["y"]
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{5, 3}, y.Shape())
	for _, v := range y.AsFloat32() {
		assert.GreaterOrEqual(t, v, float32(0), "relu output must be non-negative")
	}
}

func TestDynamicReshapeTracksRuntimeShape(t *testing.T) {
	backend := cpu.New()

	rng := rand.New(rand.NewSource(3)) //nolint:gosec // G404: Deterministic test data.
	x := tensor.Randn(tensor.Shape{2, 5, 6}, rng)

	// Flatten (B, L, D) to (B*L, D) with in-graph shape arithmetic.
	b := NewGraphBuilder("flatten", backend)
	xv := b.Input("x", x, map[int]string{0: "batch_size", 1: "sequence_length"})
	bl := b.Mul(b.DimValue(xv, 0), b.DimValue(xv, 1))
	flat := b.DynamicReshape(xv, bl, b.ScalarInt64(6))
	b.Output("flat", flat, map[int]string{0: "flattened"})

	model, err := b.Finish()
	require.NoError(t, err)

	// The eager result matches the traced shapes.
	assert.Equal(t, tensor.Shape{10, 6}, flat.Tensor().Shape())

	data, err := Serialize(model)
	require.NoError(t, err)
	loaded, err := LoadFromBytes(data, backend, LoadOptions{StrictMode: true})
	require.NoError(t, err)

	// Different batch and sequence sizes at run time.
	x2 := tensor.Randn(tensor.Shape{3, 7, 6}, rng)
	outputs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{"x": x2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{21, 6}, outputs["flat"].Shape())
}

func TestOutputFromInputGetsIdentityBridge(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones(tensor.Shape{2, 2})

	b := NewGraphBuilder("passthrough", backend)
	xv := b.Input("x", x, nil)
	b.Output("y", xv, nil)

	model, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, model.Graph.Nodes, 1)
	assert.Equal(t, "Identity", model.Graph.Nodes[0].OpType)
	assert.Equal(t, []string{"x"}, model.Graph.Nodes[0].Inputs)
	assert.Equal(t, []string{"y"}, model.Graph.Nodes[0].Outputs)
}

func TestBuilderErrorIsSticky(t *testing.T) {
	backend := cpu.New()

	b := NewGraphBuilder("bad", backend)
	a := b.Input("a", tensor.Ones(tensor.Shape{2, 3}), nil)
	c := b.Input("c", tensor.Ones(tensor.Shape{4, 5}), nil)

	// Shape mismatch fails the trace; everything after is a no-op.
	bad := b.MatMul(a, c)
	after := b.Relu(bad)
	b.Output("y", after, nil)

	_, err := b.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MatMul")
}

func TestBuilderRejectsDuplicateNames(t *testing.T) {
	backend := cpu.New()

	b := NewGraphBuilder("dup", backend)
	b.Input("x", tensor.Ones(tensor.Shape{1}), nil)
	b.Input("x", tensor.Ones(tensor.Shape{1}), nil)

	_, err := b.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
