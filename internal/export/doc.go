// Package export turns a loaded T5 model into the two ONNX artifacts of
// the conversion: encoder_model.onnx and the fused decoder_model.onnx
// (decoder plus LM head, no key/value cache).
//
// Both graphs are traced against exemplar dummy inputs but declare
// symbolic batch and sequence axes, so the written files accept any
// batch size and sequence length. The decoder is re-invoked with the
// whole growing prefix at each generation step; nothing in the graph
// carries state between calls.
package export
