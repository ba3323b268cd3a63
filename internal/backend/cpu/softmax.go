package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/gramconv/internal/tensor"
)

// Softmax computes a numerically stable softmax along the given axis.
func (b *Backend) Softmax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Sprintf("softmax: axis %d out of range for rank %d", axis, rank))
	}

	out := mustRaw(shape, tensor.Float32)
	src := x.AsFloat32()
	dst := out.AsFloat32()

	axisDim := shape[axis]
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= shape[i]
	}
	outer := shape.NumElements() / (axisDim * inner)

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*axisDim*inner + in

			maxVal := float32(math.Inf(-1))
			for a := 0; a < axisDim; a++ {
				if v := src[base+a*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for a := 0; a < axisDim; a++ {
				e := math.Exp(float64(src[base+a*inner] - maxVal))
				dst[base+a*inner] = float32(e)
				sum += e
			}

			for a := 0; a < axisDim; a++ {
				dst[base+a*inner] = float32(float64(dst[base+a*inner]) / sum)
			}
		}
	}

	return out
}
