package cpu

import (
	"github.com/born-ml/gramconv/internal/tensor"
)

// compare applies an elementwise comparison with broadcasting, producing a
// Bool tensor. Integer inputs are compared exactly, mixed inputs as
// float32.
func (b *Backend) compare(x, y *tensor.RawTensor,
	f32 func(a, b float32) bool,
	i64 func(a, b int64) bool,
) *tensor.RawTensor {
	outShape := broadcastOut(x.Shape(), y.Shape())
	xs := broadcastStrides(x.Shape(), outShape)
	ys := broadcastStrides(y.Shape(), outShape)

	out := mustRaw(outShape, tensor.Bool)
	data := out.AsBool()

	intPath := isIntType(x.DType()) && isIntType(y.DType())
	it := newIndexIter(outShape, xs, ys)
	for i := 0; !it.done; i++ {
		if intPath {
			data[i] = i64(elemInt64(x, it.offsets[0]), elemInt64(y, it.offsets[1]))
		} else {
			data[i] = f32(x.Float32At(it.offsets[0]), y.Float32At(it.offsets[1]))
		}
		it.next()
	}
	return out
}

// Less returns x < y elementwise as a Bool tensor.
func (b *Backend) Less(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.compare(x, y,
		func(a, c float32) bool { return a < c },
		func(a, c int64) bool { return a < c })
}

// Greater returns x > y elementwise as a Bool tensor.
func (b *Backend) Greater(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.compare(x, y,
		func(a, c float32) bool { return a > c },
		func(a, c int64) bool { return a > c })
}

// Where selects elements from x where cond is true, else from y, with
// broadcasting across all three inputs. x and y must share a dtype.
func (b *Backend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != y.DType() {
		panic("where: branch dtypes differ: " + x.DType().String() + " vs " + y.DType().String())
	}

	outShape := broadcastOut(broadcastOut(cond.Shape(), x.Shape()), y.Shape())
	cs := broadcastStrides(cond.Shape(), outShape)
	xs := broadcastStrides(x.Shape(), outShape)
	ys := broadcastStrides(y.Shape(), outShape)

	out := mustRaw(outShape, x.DType())
	elemSize := x.DType().Size()
	dst := out.Data()
	xData := x.Data()
	yData := y.Data()
	condData := cond.AsBool()

	it := newIndexIter(outShape, cs, xs, ys)
	for i := 0; !it.done; i++ {
		var src []byte
		var off int
		if condData[it.offsets[0]] {
			src, off = xData, it.offsets[1]
		} else {
			src, off = yData, it.offsets[2]
		}
		copy(dst[i*elemSize:(i+1)*elemSize], src[off*elemSize:(off+1)*elemSize])
		it.next()
	}
	return out
}
