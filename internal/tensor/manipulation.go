package tensor

import (
	"fmt"
)

// Reshape returns a view of the tensor with a new shape. The element count
// must match; the buffer is shared.
func Reshape(t *RawTensor, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	return t.WithShape(shape)
}

// TransposeAxes permutes the tensor's axes. With no axes given the order is
// reversed (matrix transpose generalized to N dimensions).
func TransposeAxes(t *RawTensor, axes ...int) (*RawTensor, error) {
	rank := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		return nil, fmt.Errorf("transpose: got %d axes for rank-%d tensor", len(axes), rank)
	}

	seen := make([]bool, rank)
	for _, a := range axes {
		if a < 0 || a >= rank {
			return nil, fmt.Errorf("transpose: axis %d out of range for rank %d", a, rank)
		}
		if seen[a] {
			return nil, fmt.Errorf("transpose: duplicate axis %d", a)
		}
		seen[a] = true
	}

	srcShape := t.Shape()
	dstShape := make(Shape, rank)
	for i, a := range axes {
		dstShape[i] = srcShape[a]
	}

	out, err := NewRaw(dstShape, t.DType())
	if err != nil {
		return nil, err
	}

	elemSize := t.DType().Size()
	srcStrides := srcShape.ComputeStrides()
	srcData := t.Data()
	dstData := out.Data()

	// Walk destination indices in order, gather from the permuted source.
	idx := make([]int, rank)
	n := t.NumElements()
	for flat := 0; flat < n; flat++ {
		srcFlat := 0
		for i := 0; i < rank; i++ {
			srcFlat += idx[i] * srcStrides[axes[i]]
		}
		copy(dstData[flat*elemSize:(flat+1)*elemSize], srcData[srcFlat*elemSize:(srcFlat+1)*elemSize])

		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < dstShape[i] {
				break
			}
			idx[i] = 0
		}
	}

	return out, nil
}

// Unsqueeze inserts size-1 dimensions at the given axes (interpreted
// against the output rank, per the ONNX convention).
func Unsqueeze(t *RawTensor, axes ...int) (*RawTensor, error) {
	rank := len(t.Shape())
	outRank := rank + len(axes)

	insert := make(map[int]bool, len(axes))
	for _, a := range axes {
		if a < 0 {
			a += outRank
		}
		if a < 0 || a >= outRank {
			return nil, fmt.Errorf("unsqueeze: axis %d out of range for output rank %d", a, outRank)
		}
		if insert[a] {
			return nil, fmt.Errorf("unsqueeze: duplicate axis %d", a)
		}
		insert[a] = true
	}

	newShape := make(Shape, 0, outRank)
	src := 0
	for i := 0; i < outRank; i++ {
		if insert[i] {
			newShape = append(newShape, 1)
			continue
		}
		newShape = append(newShape, t.Shape()[src])
		src++
	}
	return t.WithShape(newShape)
}

// Squeeze removes size-1 dimensions. With axes given only those axes are
// removed (and must be size 1); otherwise all size-1 dimensions go.
func Squeeze(t *RawTensor, axes ...int) (*RawTensor, error) {
	rank := len(t.Shape())
	remove := make(map[int]bool, len(axes))
	for _, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank {
			return nil, fmt.Errorf("squeeze: axis %d out of range for rank %d", a, rank)
		}
		if t.Shape()[a] != 1 {
			return nil, fmt.Errorf("squeeze: axis %d has size %d, expected 1", a, t.Shape()[a])
		}
		remove[a] = true
	}

	newShape := make(Shape, 0, rank)
	for i, dim := range t.Shape() {
		if len(axes) == 0 {
			if dim == 1 {
				continue
			}
		} else if remove[i] {
			continue
		}
		newShape = append(newShape, dim)
	}
	return t.WithShape(newShape)
}

// Concat joins tensors along the given axis. All inputs must share dtype
// and all dimensions except the concat axis.
func Concat(tensors []*RawTensor, axis int) (*RawTensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("concat: no inputs")
	}

	first := tensors[0]
	rank := len(first.Shape())
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, fmt.Errorf("concat: axis %d out of range for rank %d", axis, rank)
	}

	outShape := first.Shape().Clone()
	for _, t := range tensors[1:] {
		if t.DType() != first.DType() {
			return nil, fmt.Errorf("concat: dtype mismatch (%s vs %s)", t.DType(), first.DType())
		}
		if len(t.Shape()) != rank {
			return nil, fmt.Errorf("concat: rank mismatch (%d vs %d)", len(t.Shape()), rank)
		}
		for i, dim := range t.Shape() {
			if i == axis {
				continue
			}
			if dim != first.Shape()[i] {
				return nil, fmt.Errorf("concat: shape mismatch at dim %d: %v vs %v", i, t.Shape(), first.Shape())
			}
		}
		outShape[axis] += t.Shape()[axis]
	}

	out, err := NewRaw(outShape, first.DType())
	if err != nil {
		return nil, err
	}

	elemSize := first.DType().Size()
	// outer = product of dims before axis, inner bytes per slice after it.
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= outShape[i]
	}
	innerElems := 1
	for i := axis + 1; i < rank; i++ {
		innerElems *= outShape[i]
	}

	dst := out.Data()
	dstRowBytes := outShape[axis] * innerElems * elemSize
	offset := 0
	for _, t := range tensors {
		rowBytes := t.Shape()[axis] * innerElems * elemSize
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*dstRowBytes+offset:], src[o*rowBytes:(o+1)*rowBytes])
		}
		offset += rowBytes
	}

	return out, nil
}

// RangeInt64 creates a 1-D int64 tensor [start, limit) stepping by delta.
func RangeInt64(start, limit, delta int64) (*RawTensor, error) {
	if delta == 0 {
		return nil, fmt.Errorf("range: delta must be nonzero")
	}
	n := 0
	if delta > 0 && limit > start {
		n = int((limit - start + delta - 1) / delta)
	} else if delta < 0 && limit < start {
		n = int((start - limit - delta - 1) / -delta)
	}
	if n == 0 {
		return nil, fmt.Errorf("range: empty range [%d, %d) step %d", start, limit, delta)
	}

	t, err := NewRaw(Shape{n}, Int64)
	if err != nil {
		return nil, err
	}
	data := t.AsInt64()
	v := start
	for i := range data {
		data[i] = v
		v += delta
	}
	return t, nil
}
