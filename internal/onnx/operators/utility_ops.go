package operators

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// registerUtilityOps adds tensor utility operators to the registry.
func (r *Registry) registerUtilityOps() {
	r.Register("Identity", handleIdentity)
	r.Register("Shape", handleShape)
	r.Register("Cast", handleCast)
	r.Register("Range", handleRange)
	r.Register("Where", handleWhere)
	r.Register("Less", handleLess)
	r.Register("Greater", handleGreater)
}

func handleIdentity(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("identity requires 1 input, got %d", len(inputs))
	}
	return []*tensor.RawTensor{inputs[0].Clone()}, nil
}

// handleShape returns the input's shape as a 1-D int64 tensor. This is the
// anchor of every shape-polymorphic subgraph: downstream Gather/Concat
// nodes carve batch and sequence dimensions out of it at execution time.
func handleShape(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("shape requires 1 input, got %d", len(inputs))
	}

	shape := inputs[0].Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	result, err := tensor.FromInt64(tensor.Shape{len(dims)}, dims)
	if err != nil {
		return nil, fmt.Errorf("shape: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleCast(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("cast requires 1 input, got %d", len(inputs))
	}

	to := GetAttrInt(node, "to", TensorProtoUndefined)
	dtype, err := protoTypeToDataType(int32(to)) //nolint:gosec // G115: Attribute value fits in int32.
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	result := ctx.Backend.Cast(inputs[0], dtype)
	return []*tensor.RawTensor{result}, nil
}

// handleRange implements Range(start, limit, delta) over int64 scalars.
func handleRange(_ *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 3 {
		return nil, fmt.Errorf("range requires 3 inputs (start, limit, delta), got %d", len(inputs))
	}
	for i, in := range inputs {
		if in.NumElements() != 1 {
			return nil, fmt.Errorf("range: input %d must be a scalar, got shape %v", i, in.Shape())
		}
		if in.DType() != tensor.Int64 && in.DType() != tensor.Int32 {
			return nil, fmt.Errorf("range: input %d must be integer, got %s", i, in.DType())
		}
	}

	scalar := func(t *tensor.RawTensor) int64 {
		if t.DType() == tensor.Int32 {
			return int64(t.AsInt32()[0])
		}
		return t.AsInt64()[0]
	}

	result, err := tensor.RangeInt64(scalar(inputs[0]), scalar(inputs[1]), scalar(inputs[2]))
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	return []*tensor.RawTensor{result}, nil
}

func handleWhere(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 3 {
		return nil, fmt.Errorf("where requires 3 inputs (condition, x, y), got %d", len(inputs))
	}
	result := ctx.Backend.Where(inputs[0], inputs[1], inputs[2])
	return []*tensor.RawTensor{result}, nil
}

func handleLess(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("less requires 2 inputs, got %d", len(inputs))
	}
	result := ctx.Backend.Less(inputs[0], inputs[1])
	return []*tensor.RawTensor{result}, nil
}

func handleGreater(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("greater requires 2 inputs, got %d", len(inputs))
	}
	result := ctx.Backend.Greater(inputs[0], inputs[1])
	return []*tensor.RawTensor{result}, nil
}

// protoTypeToDataType converts an ONNX data type enum to tensor.DataType.
func protoTypeToDataType(onnxType int32) (tensor.DataType, error) {
	switch onnxType {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported data type %d", onnxType)
	}
}
