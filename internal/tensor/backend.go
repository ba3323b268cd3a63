package tensor

// Backend defines the compute operations the ONNX operator set needs.
// All methods operate on RawTensor and panic on shape or dtype violations;
// the graph runtime validates operator arity before dispatching here.
//
// Binary arithmetic follows NumPy broadcasting. Integer inputs to float
// operations are promoted element-wise.
type Backend interface {
	// Elementwise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor
	Min(a, b *RawTensor) *RawTensor

	// Elementwise unary operations.
	Sqrt(t *RawTensor) *RawTensor
	Exp(t *RawTensor) *RawTensor
	Log(t *RawTensor) *RawTensor
	Abs(t *RawTensor) *RawTensor
	Neg(t *RawTensor) *RawTensor
	Relu(t *RawTensor) *RawTensor

	// Scalar operations.
	MulScalar(t *RawTensor, s float32) *RawTensor
	AddScalar(t *RawTensor, s float32) *RawTensor

	// MatMul performs batched matrix multiplication with broadcast
	// leading dimensions: (..., m, k) @ (..., k, n) -> (..., m, n).
	MatMul(a, b *RawTensor) *RawTensor

	// Softmax computes a numerically stable softmax along the given axis.
	Softmax(t *RawTensor, axis int) *RawTensor

	// ReduceMean averages over the given axes.
	ReduceMean(t *RawTensor, axes []int, keepDims bool) *RawTensor

	// Comparisons produce Bool tensors with broadcasting.
	Less(a, b *RawTensor) *RawTensor
	Greater(a, b *RawTensor) *RawTensor

	// Where selects elements from x or y based on cond (Bool), with
	// broadcasting across all three inputs.
	Where(cond, x, y *RawTensor) *RawTensor

	// Cast converts the tensor to another data type. Float to integer
	// truncates toward zero.
	Cast(t *RawTensor, to DataType) *RawTensor

	// Gather indexes data along the given axis (ONNX Gather semantics):
	// output shape is data.shape[:axis] + indices.shape + data.shape[axis+1:].
	Gather(data, indices *RawTensor, axis int) *RawTensor
}
