package operators

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// registerMathOps adds math operators to the registry.
func (r *Registry) registerMathOps() {
	r.Register("Add", binaryOp("Add", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Add(a, b)
	}))
	r.Register("Sub", binaryOp("Sub", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Sub(a, b)
	}))
	r.Register("Mul", binaryOp("Mul", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Mul(a, b)
	}))
	r.Register("Div", binaryOp("Div", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Div(a, b)
	}))
	r.Register("Min", binaryOp("Min", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Min(a, b)
	}))
	r.Register("MatMul", binaryOp("MatMul", func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.MatMul(a, b)
	}))

	r.Register("Sqrt", unaryOp("Sqrt", func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Sqrt(a)
	}))
	r.Register("Exp", unaryOp("Exp", func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Exp(a)
	}))
	r.Register("Log", unaryOp("Log", func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Log(a)
	}))
	r.Register("Abs", unaryOp("Abs", func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Abs(a)
	}))
	r.Register("Neg", unaryOp("Neg", func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Neg(a)
	}))

	r.Register("ReduceMean", handleReduceMean)
}

// binaryOp wraps a two-input backend call as an OpHandler.
func binaryOp(name string, fn func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor) OpHandler {
	return func(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) != 2 {
			return nil, fmt.Errorf("%s requires 2 inputs, got %d", name, len(inputs))
		}
		return []*tensor.RawTensor{fn(ctx, inputs[0], inputs[1])}, nil
	}
}

// unaryOp wraps a one-input backend call as an OpHandler.
func unaryOp(name string, fn func(ctx *Context, a *tensor.RawTensor) *tensor.RawTensor) OpHandler {
	return func(ctx *Context, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) != 1 {
			return nil, fmt.Errorf("%s requires 1 input, got %d", name, len(inputs))
		}
		return []*tensor.RawTensor{fn(ctx, inputs[0])}, nil
	}
}

// handleReduceMean implements ReduceMean with axes and keepdims attributes
// (opset 13/14 form: axes is an attribute, not an input).
func handleReduceMean(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("reducemean requires 1 input, got %d", len(inputs))
	}

	axesAttr := GetAttrInts(node, "axes")
	axes := make([]int, len(axesAttr))
	for i, a := range axesAttr {
		axes[i] = int(a)
	}
	keepDims := GetAttrInt(node, "keepdims", 1) != 0

	result := ctx.Backend.ReduceMean(inputs[0], axes, keepDims)
	return []*tensor.RawTensor{result}, nil
}
