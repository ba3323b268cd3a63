// Package operators implements the ONNX operator set gramconv's graph
// runtime executes.
//
// The registry maps operator types to handler functions that validate
// inputs and attributes and delegate to the tensor backend. The set covers
// exactly what a traced T5 encoder/decoder graph contains: elementwise
// math, batched MatMul, Softmax, shape manipulation, Gather, and the
// Shape/Range/Where/Cast family used for shape-polymorphic masks and
// relative position buckets.
package operators
