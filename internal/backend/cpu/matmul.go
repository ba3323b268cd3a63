package cpu

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// MatMul performs batched matrix multiplication with broadcast leading
// dimensions: (..., m, k) @ (..., k, n) -> (..., m, n). Float32 only.
func (b *Backend) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	xShape := x.Shape()
	yShape := y.Shape()
	if len(xShape) < 2 || len(yShape) < 2 {
		panic(fmt.Sprintf("matmul: inputs must be at least rank 2, got %v and %v", xShape, yShape))
	}

	m := xShape[len(xShape)-2]
	k := xShape[len(xShape)-1]
	k2 := yShape[len(yShape)-2]
	n := yShape[len(yShape)-1]
	if k != k2 {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", xShape, yShape))
	}

	xBatch := xShape[:len(xShape)-2]
	yBatch := yShape[:len(yShape)-2]
	batch := broadcastOut(xBatch, yBatch)

	outShape := append(batch.Clone(), m, n)
	out := mustRaw(outShape, tensor.Float32)

	xStrides := broadcastStrides(xBatch, batch)
	yStrides := broadcastStrides(yBatch, batch)

	xData := x.AsFloat32()
	yData := y.AsFloat32()
	outData := out.AsFloat32()

	xMat := m * k
	yMat := k * n
	outMat := m * n

	// Batch strides from broadcastStrides count batch entries; one entry
	// covers one full matrix of elements.
	numBatches := batch.NumElements()
	it := newIndexIter(batch, xStrides, yStrides)
	for bi := 0; bi < numBatches; bi++ {
		xOff := it.offsets[0] * xMat
		yOff := it.offsets[1] * yMat
		matmul2D(outData[bi*outMat:(bi+1)*outMat],
			xData[xOff:xOff+xMat],
			yData[yOff:yOff+yMat],
			m, k, n)
		it.next()
	}

	return out
}

// matmul2D computes dst = a @ b for row-major matrices.
func matmul2D(dst, a, b []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			dst[i*n+j] = 0
		}
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			row := b[p*n:]
			for j := 0; j < n; j++ {
				dst[i*n+j] += av * row[j]
			}
		}
	}
}
