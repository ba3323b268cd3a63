package operators

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// registerShapeOps adds shape manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.Register("Reshape", handleReshape)
	r.Register("Transpose", handleTranspose)
	r.Register("Squeeze", handleSqueeze)
	r.Register("Unsqueeze", handleUnsqueeze)
	r.Register("Concat", handleConcat)
	r.Register("Gather", handleGather)
}

// handleReshape implements Reshape with the ONNX conventions: a 0 in the
// target shape copies the input dimension, a single -1 is inferred from
// the remaining element count.
func handleReshape(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("reshape requires 2 inputs (data, shape), got %d", len(inputs))
	}

	data := inputs[0]
	shapeData := inputs[1].AsInt64()

	newShape := make(tensor.Shape, len(shapeData))
	inferIdx := -1
	known := 1
	for i, v := range shapeData {
		switch {
		case v == 0:
			if i >= len(data.Shape()) {
				return nil, fmt.Errorf("reshape: dimension 0 at index %d exceeds input rank %d", i, len(data.Shape()))
			}
			newShape[i] = data.Shape()[i]
			known *= newShape[i]
		case v == -1:
			if inferIdx >= 0 {
				return nil, fmt.Errorf("reshape: multiple -1 dimensions")
			}
			inferIdx = i
		default:
			newShape[i] = int(v)
			known *= newShape[i]
		}
	}
	if inferIdx >= 0 {
		if known == 0 || data.NumElements()%known != 0 {
			return nil, fmt.Errorf("reshape: cannot infer dimension for %v from %v", shapeData, data.Shape())
		}
		newShape[inferIdx] = data.NumElements() / known
	}

	result, err := tensor.Reshape(data, newShape)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleTranspose(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("transpose requires 1 input, got %d", len(inputs))
	}

	perm := GetAttrInts(node, "perm")
	axes := make([]int, len(perm))
	for i, v := range perm {
		axes[i] = int(v)
	}

	result, err := tensor.TransposeAxes(inputs[0], axes...)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

// axesFromInputOrAttr reads axes from the optional second input (opset
// 13+) falling back to the legacy attribute form.
func axesFromInputOrAttr(node *Node, inputs []*tensor.RawTensor) []int {
	if len(inputs) >= 2 && inputs[1] != nil {
		axesData := inputs[1].AsInt64()
		axes := make([]int, len(axesData))
		for i, v := range axesData {
			axes[i] = int(v)
		}
		return axes
	}
	axesAttr := GetAttrInts(node, "axes")
	axes := make([]int, len(axesAttr))
	for i, v := range axesAttr {
		axes[i] = int(v)
	}
	return axes
}

func handleSqueeze(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("squeeze requires at least 1 input, got %d", len(inputs))
	}

	result, err := tensor.Squeeze(inputs[0], axesFromInputOrAttr(node, inputs)...)
	if err != nil {
		return nil, fmt.Errorf("squeeze: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleUnsqueeze(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("unsqueeze requires at least 1 input, got %d", len(inputs))
	}

	axes := axesFromInputOrAttr(node, inputs)
	if len(axes) == 0 {
		return nil, fmt.Errorf("unsqueeze: no axes given")
	}
	result, err := tensor.Unsqueeze(inputs[0], axes...)
	if err != nil {
		return nil, fmt.Errorf("unsqueeze: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleConcat(_ *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("concat requires at least 1 input, got %d", len(inputs))
	}

	axis := int(GetAttrInt(node, "axis", 0))
	result, err := tensor.Concat(inputs, axis)
	if err != nil {
		return nil, fmt.Errorf("concat: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleGather(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("gather requires 2 inputs (data, indices), got %d", len(inputs))
	}

	axis := int(GetAttrInt(node, "axis", 0))
	result := ctx.Backend.Gather(inputs[0], inputs[1], axis)
	return []*tensor.RawTensor{result}, nil
}
