package cpu

import (
	"math"

	"github.com/born-ml/gramconv/internal/tensor"
)

// binary applies an elementwise binary operation with broadcasting.
// When both inputs are integer-typed and an integer kernel is supplied the
// result stays Int64; otherwise inputs are promoted to Float32.
func (b *Backend) binary(x, y *tensor.RawTensor,
	f32 func(a, b float32) float32,
	i64 func(a, b int64) int64,
) *tensor.RawTensor {
	outShape := broadcastOut(x.Shape(), y.Shape())
	xs := broadcastStrides(x.Shape(), outShape)
	ys := broadcastStrides(y.Shape(), outShape)

	if i64 != nil && isIntType(x.DType()) && isIntType(y.DType()) {
		out := mustRaw(outShape, tensor.Int64)
		data := out.AsInt64()
		it := newIndexIter(outShape, xs, ys)
		for i := 0; !it.done; i++ {
			data[i] = i64(elemInt64(x, it.offsets[0]), elemInt64(y, it.offsets[1]))
			it.next()
		}
		return out
	}

	out := mustRaw(outShape, tensor.Float32)
	data := out.AsFloat32()
	it := newIndexIter(outShape, xs, ys)
	for i := 0; !it.done; i++ {
		data[i] = f32(x.Float32At(it.offsets[0]), y.Float32At(it.offsets[1]))
		it.next()
	}
	return out
}

// Add returns x + y with broadcasting.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y,
		func(a, c float32) float32 { return a + c },
		func(a, c int64) int64 { return a + c })
}

// Sub returns x - y with broadcasting.
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y,
		func(a, c float32) float32 { return a - c },
		func(a, c int64) int64 { return a - c })
}

// Mul returns x * y with broadcasting.
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y,
		func(a, c float32) float32 { return a * c },
		func(a, c int64) int64 { return a * c })
}

// Div returns x / y with broadcasting. Integer division truncates.
func (b *Backend) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y,
		func(a, c float32) float32 { return a / c },
		func(a, c int64) int64 { return a / c })
}

// Min returns the elementwise minimum with broadcasting.
func (b *Backend) Min(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.binary(x, y,
		func(a, c float32) float32 {
			if a < c {
				return a
			}
			return c
		},
		func(a, c int64) int64 {
			if a < c {
				return a
			}
			return c
		})
}

// unary applies an elementwise unary operation. Integer inputs keep their
// Int64 representation when an integer kernel is supplied.
func (b *Backend) unary(x *tensor.RawTensor,
	f32 func(a float32) float32,
	i64 func(a int64) int64,
) *tensor.RawTensor {
	if i64 != nil && isIntType(x.DType()) {
		out := mustRaw(x.Shape(), tensor.Int64)
		data := out.AsInt64()
		for i := range data {
			data[i] = i64(elemInt64(x, i))
		}
		return out
	}

	out := mustRaw(x.Shape(), tensor.Float32)
	data := out.AsFloat32()
	for i := range data {
		data[i] = f32(x.Float32At(i))
	}
	return out
}

// Sqrt returns the elementwise square root.
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 { return float32(math.Sqrt(float64(a))) }, nil)
}

// Exp returns the elementwise exponential.
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 { return float32(math.Exp(float64(a))) }, nil)
}

// Log returns the elementwise natural logarithm.
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 { return float32(math.Log(float64(a))) }, nil)
}

// Abs returns the elementwise absolute value.
func (b *Backend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(a float32) float32 {
			if a < 0 {
				return -a
			}
			return a
		},
		func(a int64) int64 {
			if a < 0 {
				return -a
			}
			return a
		})
}

// Neg returns the elementwise negation.
func (b *Backend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x,
		func(a float32) float32 { return -a },
		func(a int64) int64 { return -a })
}

// Relu returns max(x, 0) elementwise.
func (b *Backend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 {
		if a > 0 {
			return a
		}
		return 0
	}, nil)
}

// MulScalar returns x * s elementwise.
func (b *Backend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 { return a * s }, nil)
}

// AddScalar returns x + s elementwise.
func (b *Backend) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return b.unary(x, func(a float32) float32 { return a + s }, nil)
}
