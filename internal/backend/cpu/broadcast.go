package cpu

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// broadcastStrides returns strides for indexing src as if it had the
// broadcast output shape: broadcast dimensions get stride 0, missing
// leading dimensions too.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		if i < offset {
			strides[i] = 0
			continue
		}
		if src[i-offset] == 1 && out[i] != 1 {
			strides[i] = 0
			continue
		}
		strides[i] = srcStrides[i-offset]
	}
	return strides
}

// broadcastOut computes the broadcast shape of two inputs or panics.
func broadcastOut(a, b tensor.Shape) tensor.Shape {
	out, _, err := tensor.BroadcastShapes(a, b)
	if err != nil {
		panic(err)
	}
	return out
}

// indexIter walks a multi-dimensional index space in row-major order and
// tracks flat offsets for several strided views at once.
type indexIter struct {
	shape   tensor.Shape
	idx     []int
	strides [][]int
	offsets []int
	done    bool
}

func newIndexIter(shape tensor.Shape, strides ...[]int) *indexIter {
	return &indexIter{
		shape:   shape,
		idx:     make([]int, len(shape)),
		strides: strides,
		offsets: make([]int, len(strides)),
		done:    shape.NumElements() == 0,
	}
}

// next advances to the following index, returning false when exhausted.
func (it *indexIter) next() bool {
	for i := len(it.shape) - 1; i >= 0; i-- {
		it.idx[i]++
		for s := range it.strides {
			it.offsets[s] += it.strides[s][i]
		}
		if it.idx[i] < it.shape[i] {
			return true
		}
		it.idx[i] = 0
		for s := range it.strides {
			it.offsets[s] -= it.strides[s][i] * it.shape[i]
		}
	}
	it.done = true
	return false
}

// elemInt64 reads element i of an integer-typed tensor as int64.
func elemInt64(t *tensor.RawTensor, i int) int64 {
	switch t.DType() {
	case tensor.Int64:
		return t.AsInt64()[i]
	case tensor.Int32:
		return int64(t.AsInt32()[i])
	case tensor.Uint8:
		return int64(t.AsUint8()[i])
	case tensor.Bool:
		if t.AsBool()[i] {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("elemInt64: unsupported dtype %s", t.DType()))
	}
}

// isIntType reports whether the dtype is an integer family type.
func isIntType(dt tensor.DataType) bool {
	return dt == tensor.Int32 || dt == tensor.Int64 || dt == tensor.Uint8
}
