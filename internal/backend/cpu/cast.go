package cpu

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/tensor"
)

// Cast converts the tensor to another data type. Float to integer
// truncates toward zero, matching the ONNX Cast operator.
func (b *Backend) Cast(x *tensor.RawTensor, to tensor.DataType) *tensor.RawTensor {
	if x.DType() == to {
		return x.Clone()
	}

	out := mustRaw(x.Shape(), to)
	n := x.NumElements()

	switch to {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = x.Float32At(i)
		}
	case tensor.Float64:
		dst := out.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = float64(x.Float32At(i))
		}
	case tensor.Int64:
		dst := out.AsInt64()
		if isIntType(x.DType()) || x.DType() == tensor.Bool {
			for i := 0; i < n; i++ {
				dst[i] = elemInt64(x, i)
			}
		} else {
			for i := 0; i < n; i++ {
				dst[i] = int64(x.Float32At(i))
			}
		}
	case tensor.Int32:
		dst := out.AsInt32()
		if isIntType(x.DType()) || x.DType() == tensor.Bool {
			for i := 0; i < n; i++ {
				dst[i] = int32(elemInt64(x, i))
			}
		} else {
			for i := 0; i < n; i++ {
				dst[i] = int32(x.Float32At(i))
			}
		}
	case tensor.Bool:
		dst := out.AsBool()
		for i := 0; i < n; i++ {
			dst[i] = x.Float32At(i) != 0
		}
	case tensor.Uint8:
		dst := out.AsUint8()
		for i := 0; i < n; i++ {
			dst[i] = uint8(x.Float32At(i))
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", to))
	}

	return out
}
