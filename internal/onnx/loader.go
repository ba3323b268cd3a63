package onnx

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/onnx/operators"
	"github.com/born-ml/gramconv/internal/tensor"
)

// LoadOptions configures model loading.
type LoadOptions struct {
	// StrictMode fails on unsupported operators instead of skipping
	// them. The validator loads leniently so a runtime gap stays an
	// advisory; the builder round-trip tests load strictly.
	StrictMode bool
}

// DefaultLoadOptions returns the lenient defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{StrictMode: false}
}

// Load reads an ONNX file and prepares it for execution on the given
// backend.
func Load(path string, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX file: %w", err)
	}
	return LoadFromProto(proto, backend, firstOpt(opts))
}

// LoadFromBytes loads an ONNX model from a serialized byte slice.
func LoadFromBytes(data []byte, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	proto, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX data: %w", err)
	}
	return LoadFromProto(proto, backend, firstOpt(opts))
}

// LoadFromProto loads a model from an already parsed ModelProto.
func LoadFromProto(proto *ModelProto, backend tensor.Backend, opt LoadOptions) (*Model, error) {
	registry := operators.NewRegistry()

	if opt.StrictMode {
		if err := validateOperators(proto.Graph, registry); err != nil {
			return nil, err
		}
	}

	model := &Model{
		proto:    proto,
		registry: registry,
		backend:  backend,
	}
	if err := model.compile(); err != nil {
		return nil, fmt.Errorf("failed to compile model: %w", err)
	}
	return model, nil
}

func firstOpt(opts []LoadOptions) LoadOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return DefaultLoadOptions()
}

// validateOperators checks that every node's operator has a handler.
func validateOperators(graph *GraphProto, registry *operators.Registry) error {
	if graph == nil {
		return fmt.Errorf("model has no graph")
	}

	unsupported := make([]string, 0)
	for i := range graph.Nodes {
		if _, ok := registry.Get(graph.Nodes[i].OpType); !ok {
			unsupported = append(unsupported, graph.Nodes[i].OpType)
		}
	}
	if len(unsupported) > 0 {
		return fmt.Errorf("unsupported operators: %v", unsupported)
	}
	return nil
}

// ModelInfo summarizes an ONNX file without compiling it, the shape of
// what an inspection log line needs.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}
	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	if proto.Graph != nil {
		// Initializers also appear in Inputs in some exporters; report
		// only the true runtime inputs.
		initNames := make(map[string]bool)
		for i := range proto.Graph.Initializers {
			initNames[proto.Graph.Initializers[i].Name] = true
		}
		for i := range proto.Graph.Inputs {
			if !initNames[proto.Graph.Inputs[i].Name] {
				info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
			}
		}
		for _, output := range proto.Graph.Outputs {
			info.OutputNames = append(info.OutputNames, output.Name)
		}
		info.NodeCount = len(proto.Graph.Nodes)
		info.WeightCount = len(proto.Graph.Initializers)
	}

	return info, nil
}
