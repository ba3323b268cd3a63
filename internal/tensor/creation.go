package tensor

import (
	"math/rand"
)

// Zeros creates a float32 tensor filled with zeros.
func Zeros(shape Shape) *RawTensor {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		panic(err)
	}
	return t
}

// Ones creates a float32 tensor filled with ones.
func Ones(shape Shape) *RawTensor {
	return Full(shape, 1)
}

// Full creates a float32 tensor filled with the given value.
func Full(shape Shape, value float32) *RawTensor {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		panic(err)
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return t
}

// FromFloat32 creates a tensor from a float32 slice. The slice length must
// match the shape's element count.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), values)
	return t, nil
}

// FromInt64 creates an int64 tensor from a slice.
func FromInt64(shape Shape, values []int64) (*RawTensor, error) {
	t, err := NewRaw(shape, Int64)
	if err != nil {
		return nil, err
	}
	copy(t.AsInt64(), values)
	return t, nil
}

// Scalar creates a 0-dimensional float32 tensor.
func Scalar(value float32) *RawTensor {
	t, err := NewRaw(Shape{}, Float32)
	if err != nil {
		panic(err)
	}
	t.AsFloat32()[0] = value
	return t
}

// ScalarInt64 creates a 0-dimensional int64 tensor.
func ScalarInt64(value int64) *RawTensor {
	t, err := NewRaw(Shape{}, Int64)
	if err != nil {
		panic(err)
	}
	t.AsInt64()[0] = value
	return t
}

// Randn creates a float32 tensor with values drawn from the standard
// normal distribution using the supplied source. Callers that need
// reproducible traces pass a seeded *rand.Rand.
func Randn(shape Shape, rng *rand.Rand) *RawTensor {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		panic(err)
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return t
}

// RandInt creates an int64 tensor with values drawn uniformly from
// [0, upper).
func RandInt(shape Shape, upper int64, rng *rand.Rand) *RawTensor {
	t, err := NewRaw(shape, Int64)
	if err != nil {
		panic(err)
	}
	data := t.AsInt64()
	for i := range data {
		data[i] = rng.Int63n(upper)
	}
	return t
}

// OnesInt64 creates an int64 tensor filled with ones (attention masks).
func OnesInt64(shape Shape) *RawTensor {
	t, err := NewRaw(shape, Int64)
	if err != nil {
		panic(err)
	}
	data := t.AsInt64()
	for i := range data {
		data[i] = 1
	}
	return t
}
