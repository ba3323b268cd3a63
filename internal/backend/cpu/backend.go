// Package cpu implements tensor.Backend with plain Go loops.
//
// This is the only backend gramconv carries: a conversion run executes
// each exported graph a handful of times for validation, so throughput
// does not justify a GPU device or SIMD kernels.
package cpu

import (
	"github.com/born-ml/gramconv/internal/tensor"
)

// Backend is the CPU implementation of tensor.Backend.
type Backend struct{}

// New creates a CPU backend.
func New() *Backend {
	return &Backend{}
}

// mustRaw allocates a tensor or panics. The backend panics on invariant
// violations; operator handlers validate inputs before dispatching.
func mustRaw(shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	t, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		panic(err)
	}
	return t
}
