// Package onnx provides ONNX model import, export, and graph tracing.
//
// ONNX (Open Neural Network Exchange) is an open format for representing deep learning models.
// This package implements a hand-written protobuf codec for .onnx files without external dependencies.
//
// Key components:
//   - ModelProto: Top-level ONNX model structure with metadata and graph
//   - GraphProto: Computation graph with nodes, inputs, outputs, and initializers
//   - NodeProto: Single operation in the graph (e.g., MatMul, Softmax, Relu)
//   - TensorProto: Weight/initializer tensor with data and shape
//   - GraphBuilder: Records a graph while executing it eagerly on concrete tensors
//
// The builder is how models get exported: forward passes are written
// against the builder API, which both computes real outputs through the
// operator registry and accumulates the equivalent NodeProto sequence.
// Serialize then writes the assembled ModelProto back to the wire format.
//
// Example usage:
//
//	// Parse ONNX file
//	model, err := onnx.ParseFile("encoder_model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Inspect model
//	fmt.Printf("Model: %s (opset via OpsetImport)\n", model.ProducerName)
//	fmt.Printf("Graph: %s with %d nodes\n", model.Graph.Name, len(model.Graph.Nodes))
package onnx
