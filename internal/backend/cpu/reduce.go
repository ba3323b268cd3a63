package cpu

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// ReduceMean averages over the given axes. An empty axes list reduces over
// every dimension. With keepDims the reduced axes stay as size 1.
func (b *Backend) ReduceMean(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)

	reduce := make([]bool, rank)
	if len(axes) == 0 {
		for i := range reduce {
			reduce[i] = true
		}
	}
	for _, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank {
			panic(fmt.Sprintf("reducemean: axis %d out of range for rank %d", a, rank))
		}
		reduce[a] = true
	}

	keptShape := make(tensor.Shape, 0, rank)
	fullShape := make(tensor.Shape, rank)
	count := 1
	for i, dim := range shape {
		if reduce[i] {
			fullShape[i] = 1
			count *= dim
			continue
		}
		fullShape[i] = dim
		keptShape = append(keptShape, dim)
	}

	out := mustRaw(fullShape, tensor.Float32)
	sums := make([]float64, fullShape.NumElements())

	// Accumulate: map each source index to the output slot where reduced
	// axes collapse to 0.
	outStrides := fullShape.ComputeStrides()
	src := x.AsFloat32()
	idx := make([]int, rank)
	for flat := range src {
		outFlat := 0
		for i := 0; i < rank; i++ {
			if !reduce[i] {
				outFlat += idx[i] * outStrides[i]
			}
		}
		sums[outFlat] += float64(src[flat])

		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}

	dst := out.AsFloat32()
	for i := range dst {
		dst[i] = float32(sums[i] / float64(count))
	}

	if keepDims {
		return out
	}
	if len(keptShape) == 0 {
		keptShape = tensor.Shape{}
	}
	view, err := out.WithShape(keptShape)
	if err != nil {
		panic(err)
	}
	return view
}
