package cpu

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// Gather indexes data along the given axis with ONNX semantics: the output
// shape is data.shape[:axis] + indices.shape + data.shape[axis+1:].
// Negative indices address from the end of the axis.
func (b *Backend) Gather(data, indices *tensor.RawTensor, axis int) *tensor.RawTensor {
	shape := data.Shape()
	rank := len(shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Sprintf("gather: axis %d out of range for rank %d", axis, rank))
	}

	axisDim := shape[axis]

	outShape := make(tensor.Shape, 0, rank-1+len(indices.Shape()))
	outShape = append(outShape, shape[:axis]...)
	outShape = append(outShape, indices.Shape()...)
	outShape = append(outShape, shape[axis+1:]...)
	if len(outShape) == 0 {
		outShape = tensor.Shape{}
	}

	out := mustRaw(outShape, data.DType())

	elemSize := data.DType().Size()
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= shape[i]
	}

	numIdx := indices.NumElements()
	src := data.Data()
	dst := out.Data()
	sliceBytes := inner * elemSize

	for o := 0; o < outer; o++ {
		for ii := 0; ii < numIdx; ii++ {
			idx := elemInt64(indices, ii)
			if idx < 0 {
				idx += int64(axisDim)
			}
			if idx < 0 || idx >= int64(axisDim) {
				panic(fmt.Sprintf("gather: index %d out of range for axis size %d", idx, axisDim))
			}
			srcOff := (o*axisDim + int(idx)) * sliceBytes
			dstOff := (o*numIdx + ii) * sliceBytes
			copy(dst[dstOff:dstOff+sliceBytes], src[srcOff:srcOff+sliceBytes])
		}
	}

	return out
}
