package onnx

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/onnx/operators"
	"github.com/born-ml/gramconv/internal/tensor"
)

// FoldConstants evaluates every node whose inputs are all known at
// export time (initializers, or outputs of already-folded nodes) and
// replaces it with an initializer holding the result. Initializers left
// unreferenced afterwards are pruned. Graph outputs are never folded
// away, and unsupported operators are simply left in place.
//
// Traced graphs accumulate constant subtrees such as attention masks
// built from embedded shapes or weight reshapes; folding collapses these
// before serialization the way the PyTorch exporter's
// do_constant_folding pass does.
func FoldConstants(m *ModelProto, backend tensor.Backend) error {
	graph := m.Graph
	if graph == nil {
		return fmt.Errorf("fold: model has no graph")
	}

	registry := operators.NewRegistry()
	ctx := &operators.Context{Backend: backend}

	known := make(map[string]*tensor.RawTensor, len(graph.Initializers))
	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		t, err := TensorFromProto(init)
		if err != nil {
			return fmt.Errorf("fold: initializer %s: %w", init.Name, err)
		}
		known[init.Name] = t
	}

	graphOutputs := make(map[string]bool, len(graph.Outputs))
	for i := range graph.Outputs {
		graphOutputs[graph.Outputs[i].Name] = true
	}

	kept := make([]NodeProto, 0, len(graph.Nodes))
	var folded []TensorProto
	foldedCount := 0

	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if !foldable(node, known, graphOutputs, registry) {
			kept = append(kept, *node)
			continue
		}

		inputs := make([]*tensor.RawTensor, len(node.Inputs))
		for j, name := range node.Inputs {
			if name != "" {
				inputs[j] = known[name]
			}
		}
		outs, err := registry.Execute(ctx, nodeProtoToOperatorNode(node), inputs)
		if err != nil {
			// Evaluation failures are not fatal, the runtime will
			// execute the node instead.
			kept = append(kept, *node)
			continue
		}

		for j, name := range node.Outputs {
			if j < len(outs) {
				known[name] = outs[j]
				folded = append(folded, TensorToProto(name, outs[j]))
			}
		}
		foldedCount++
	}

	if foldedCount == 0 {
		return nil
	}

	graph.Nodes = kept
	graph.Initializers = append(graph.Initializers, folded...)
	pruneInitializers(graph)
	return nil
}

// foldable reports whether a node can be evaluated at export time.
func foldable(node *NodeProto, known map[string]*tensor.RawTensor, graphOutputs map[string]bool, registry *operators.Registry) bool {
	if len(node.Inputs) == 0 {
		return false
	}
	if _, ok := registry.Get(node.OpType); !ok {
		return false
	}
	for _, out := range node.Outputs {
		if graphOutputs[out] {
			return false
		}
	}
	for _, in := range node.Inputs {
		if in == "" {
			continue
		}
		if _, ok := known[in]; !ok {
			return false
		}
	}
	return true
}

// pruneInitializers drops initializers no node or graph output references.
func pruneInitializers(graph *GraphProto) {
	used := make(map[string]bool)
	for i := range graph.Nodes {
		for _, in := range graph.Nodes[i].Inputs {
			used[in] = true
		}
	}
	for i := range graph.Outputs {
		used[graph.Outputs[i].Name] = true
	}

	kept := graph.Initializers[:0]
	for i := range graph.Initializers {
		if used[graph.Initializers[i].Name] {
			kept = append(kept, graph.Initializers[i])
		}
	}
	graph.Initializers = kept

	// Graph inputs that were only consumed by folded nodes are gone
	// from the node list now, but declared inputs are part of the
	// public contract and stay untouched.
}
