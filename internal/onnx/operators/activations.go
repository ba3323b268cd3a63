package operators

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// registerActivations adds activation operators to the registry.
func (r *Registry) registerActivations() {
	r.Register("Relu", handleRelu)
	r.Register("Softmax", handleSoftmax)
}

func handleRelu(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("relu requires 1 input, got %d", len(inputs))
	}
	result := ctx.Backend.Relu(inputs[0])
	return []*tensor.RawTensor{result}, nil
}

// handleSoftmax implements Softmax with the opset 13+ semantics: the
// softmax is computed over a single axis (default -1), not a flattened
// trailing block.
func handleSoftmax(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("softmax requires 1 input, got %d", len(inputs))
	}
	axis := int(GetAttrInt(node, "axis", -1))
	result := ctx.Backend.Softmax(inputs[0], axis)
	return []*tensor.RawTensor{result}, nil
}
