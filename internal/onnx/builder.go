package onnx

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/onnx/operators"
	"github.com/born-ml/gramconv/internal/tensor"
)

// Value is a named tensor inside a graph under construction. Every
// builder operation consumes and produces Values, so a traced forward
// pass reads like an eager one while the node list grows behind it.
type Value struct {
	name   string
	tensor *tensor.RawTensor
}

// Name returns the graph-internal tensor name.
func (v *Value) Name() string { return v.name }

// Tensor returns the concrete tensor computed during tracing.
func (v *Value) Tensor() *tensor.RawTensor { return v.tensor }

// GraphBuilder records an ONNX graph while executing it. Each operation
// applied through the builder appends a NodeProto and simultaneously runs
// the same operation eagerly through the operator registry, so concrete
// shapes and values are available at every step of the trace.
//
// Errors are sticky: after the first failure all further operations are
// no-ops and Finish reports the original error. This keeps trace code
// free of per-op error handling, the same contract nn.Module forwards use.
type GraphBuilder struct {
	graphName string
	backend   tensor.Backend
	registry  *operators.Registry

	nodes        []NodeProto
	inputs       []ValueInfoProto
	outputs      []ValueInfoProto
	initializers []TensorProto

	names   map[string]bool
	counter int
	err     error
}

// NewGraphBuilder creates a builder for a graph with the given name.
func NewGraphBuilder(graphName string, backend tensor.Backend) *GraphBuilder {
	return &GraphBuilder{
		graphName: graphName,
		backend:   backend,
		registry:  operators.NewRegistry(),
		names:     make(map[string]bool),
	}
}

// Err returns the first error encountered during tracing, if any.
func (b *GraphBuilder) Err() error { return b.err }

func (b *GraphBuilder) fail(err error) *Value {
	if b.err == nil {
		b.err = err
	}
	return &Value{}
}

// freshName generates a unique tensor name for an op output, in the
// "<OpType>_<n>_output_0" style PyTorch exports use.
func (b *GraphBuilder) freshName(opType string) string {
	for {
		name := fmt.Sprintf("%s_%d", opType, b.counter)
		b.counter++
		if !b.names[name] {
			b.names[name] = true
			return name
		}
	}
}

func (b *GraphBuilder) reserveName(name string) error {
	if b.names[name] {
		return fmt.Errorf("duplicate tensor name %q", name)
	}
	b.names[name] = true
	return nil
}

// Input declares a graph input with the given example tensor. dynamicAxes
// maps axis index to a symbolic dimension name; axes not listed are
// exported with the example tensor's concrete size.
func (b *GraphBuilder) Input(name string, t *tensor.RawTensor, dynamicAxes map[int]string) *Value {
	if b.err != nil {
		return &Value{}
	}
	if err := b.reserveName(name); err != nil {
		return b.fail(err)
	}

	b.inputs = append(b.inputs, valueInfo(name, t, dynamicAxes))
	return &Value{name: name, tensor: t}
}

// Initializer declares a named weight tensor baked into the graph.
func (b *GraphBuilder) Initializer(name string, t *tensor.RawTensor) *Value {
	if b.err != nil {
		return &Value{}
	}
	if err := b.reserveName(name); err != nil {
		return b.fail(err)
	}

	b.initializers = append(b.initializers, TensorToProto(name, t))
	return &Value{name: name, tensor: t}
}

// Constant embeds an anonymous constant tensor as an initializer.
func (b *GraphBuilder) Constant(t *tensor.RawTensor) *Value {
	if b.err != nil {
		return &Value{}
	}
	name := b.freshName("Constant")
	b.initializers = append(b.initializers, TensorToProto(name, t))
	return &Value{name: name, tensor: t}
}

// ScalarInt64 embeds a rank-0 int64 constant.
func (b *GraphBuilder) ScalarInt64(v int64) *Value {
	return b.Constant(tensor.ScalarInt64(v))
}

// VectorInt64 embeds a 1-D int64 constant.
func (b *GraphBuilder) VectorInt64(vs ...int64) *Value {
	if b.err != nil {
		return &Value{}
	}
	t, err := tensor.FromInt64(tensor.Shape{len(vs)}, vs)
	if err != nil {
		return b.fail(err)
	}
	return b.Constant(t)
}

// Scalar embeds a rank-0 float32 constant.
func (b *GraphBuilder) Scalar(v float32) *Value {
	return b.Constant(tensor.Scalar(v))
}

// Apply records a node with the given op type and attributes, executes it
// eagerly, and returns the resulting value. Use the typed convenience
// methods below for the common operators.
func (b *GraphBuilder) Apply(opType string, attrs []AttributeProto, inputs ...*Value) *Value {
	if b.err != nil {
		return &Value{}
	}

	inputNames := make([]string, len(inputs))
	inputTensors := make([]*tensor.RawTensor, len(inputs))
	for i, in := range inputs {
		if in == nil || in.tensor == nil {
			return b.fail(fmt.Errorf("%s: input %d is not a traced value", opType, i))
		}
		inputNames[i] = in.name
		inputTensors[i] = in.tensor
	}

	outputName := b.freshName(opType) + "_output_0"
	b.names[outputName] = true

	node := NodeProto{
		Name:       fmt.Sprintf("%s_%d", opType, len(b.nodes)),
		OpType:     opType,
		Inputs:     inputNames,
		Outputs:    []string{outputName},
		Attributes: attrs,
	}

	ctx := &operators.Context{Backend: b.backend}
	outs, err := b.registry.Execute(ctx, nodeProtoToOperatorNode(&node), inputTensors)
	if err != nil {
		return b.fail(fmt.Errorf("trace %s: %w", opType, err))
	}
	if len(outs) != 1 {
		return b.fail(fmt.Errorf("trace %s: expected 1 output, got %d", opType, len(outs)))
	}

	b.nodes = append(b.nodes, node)
	return &Value{name: outputName, tensor: outs[0]}
}

// Output marks a value as a graph output under the given public name,
// with the same dynamic-axis convention as Input. The internal tensor
// name is rewritten so the serialized graph exposes the public name.
func (b *GraphBuilder) Output(name string, v *Value, dynamicAxes map[int]string) {
	if b.err != nil {
		return
	}
	if v == nil || v.tensor == nil {
		b.fail(fmt.Errorf("output %s: not a traced value", name))
		return
	}
	if err := b.reserveName(name); err != nil {
		b.fail(err)
		return
	}

	// Rename the producing node's output in place. A value that comes
	// straight from an input or initializer has no producing node and
	// gets an Identity bridge instead.
	renamed := false
	for i := range b.nodes {
		for j, out := range b.nodes[i].Outputs {
			if out == v.name {
				b.nodes[i].Outputs[j] = name
				renamed = true
			}
		}
	}
	if renamed {
		for i := range b.nodes {
			for j, in := range b.nodes[i].Inputs {
				if in == v.name {
					b.nodes[i].Inputs[j] = name
				}
			}
		}
	} else {
		b.nodes = append(b.nodes, NodeProto{
			Name:    fmt.Sprintf("Identity_%d", len(b.nodes)),
			OpType:  "Identity",
			Inputs:  []string{v.name},
			Outputs: []string{name},
		})
	}

	b.outputs = append(b.outputs, valueInfo(name, v.tensor, dynamicAxes))
}

// Finish assembles the recorded graph into a ModelProto.
func (b *GraphBuilder) Finish() (*ModelProto, error) {
	if b.err != nil {
		return nil, fmt.Errorf("trace %s: %w", b.graphName, b.err)
	}
	if len(b.outputs) == 0 {
		return nil, fmt.Errorf("trace %s: no outputs declared", b.graphName)
	}

	return &ModelProto{
		IRVersion:       IRVersion,
		OpsetImport:     []OperatorSetID{{Domain: "", Version: OpsetVersion}},
		ProducerName:    ProducerName,
		ProducerVersion: ProducerVersion,
		Graph: &GraphProto{
			Name:         b.graphName,
			Nodes:        b.nodes,
			Inputs:       b.inputs,
			Outputs:      b.outputs,
			Initializers: b.initializers,
		},
	}, nil
}

// Export constants. Opset 14 is the contract for exported models; IR
// version 7 is the matching minimum every mainstream runtime accepts.
const (
	OpsetVersion    = 14
	IRVersion       = 7
	ProducerName    = "gramconv"
	ProducerVersion = "1.0"
)

// valueInfo builds the ValueInfoProto for a tensor, substituting symbolic
// names for the listed dynamic axes.
func valueInfo(name string, t *tensor.RawTensor, dynamicAxes map[int]string) ValueInfoProto {
	dims := make([]DimensionProto, len(t.Shape()))
	for i, d := range t.Shape() {
		if param, ok := dynamicAxes[i]; ok {
			dims[i] = DimensionProto{DimParam: param}
		} else {
			dims[i] = DimensionProto{DimValue: int64(d)}
		}
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{
			TensorType: &TensorTypeProto{
				ElemType: dataTypeToProtoType(t.DType()),
				Shape:    &TensorShapeProto{Dims: dims},
			},
		},
	}
}

// Attribute constructors.

// AttrInt builds an INT attribute.
func AttrInt(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

// AttrInts builds an INTS attribute.
func AttrInts(name string, vs ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: vs}
}

// AttrFloat builds a FLOAT attribute.
func AttrFloat(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}

// Convenience wrappers over Apply for the traced operator set.

func (b *GraphBuilder) Add(x, y *Value) *Value    { return b.Apply("Add", nil, x, y) }
func (b *GraphBuilder) Sub(x, y *Value) *Value    { return b.Apply("Sub", nil, x, y) }
func (b *GraphBuilder) Mul(x, y *Value) *Value    { return b.Apply("Mul", nil, x, y) }
func (b *GraphBuilder) Div(x, y *Value) *Value    { return b.Apply("Div", nil, x, y) }
func (b *GraphBuilder) Min(x, y *Value) *Value    { return b.Apply("Min", nil, x, y) }
func (b *GraphBuilder) MatMul(x, y *Value) *Value { return b.Apply("MatMul", nil, x, y) }
func (b *GraphBuilder) Sqrt(x *Value) *Value      { return b.Apply("Sqrt", nil, x) }
func (b *GraphBuilder) Exp(x *Value) *Value       { return b.Apply("Exp", nil, x) }
func (b *GraphBuilder) Log(x *Value) *Value       { return b.Apply("Log", nil, x) }
func (b *GraphBuilder) Abs(x *Value) *Value       { return b.Apply("Abs", nil, x) }
func (b *GraphBuilder) Neg(x *Value) *Value       { return b.Apply("Neg", nil, x) }
func (b *GraphBuilder) Relu(x *Value) *Value      { return b.Apply("Relu", nil, x) }
func (b *GraphBuilder) Identity(x *Value) *Value  { return b.Apply("Identity", nil, x) }
func (b *GraphBuilder) Shape(x *Value) *Value     { return b.Apply("Shape", nil, x) }

func (b *GraphBuilder) Less(x, y *Value) *Value    { return b.Apply("Less", nil, x, y) }
func (b *GraphBuilder) Greater(x, y *Value) *Value { return b.Apply("Greater", nil, x, y) }

func (b *GraphBuilder) Where(cond, x, y *Value) *Value {
	return b.Apply("Where", nil, cond, x, y)
}

func (b *GraphBuilder) Softmax(x *Value, axis int) *Value {
	return b.Apply("Softmax", []AttributeProto{AttrInt("axis", int64(axis))}, x)
}

func (b *GraphBuilder) ReduceMean(x *Value, axes []int64, keepDims bool) *Value {
	kd := int64(0)
	if keepDims {
		kd = 1
	}
	return b.Apply("ReduceMean", []AttributeProto{
		AttrInts("axes", axes...),
		AttrInt("keepdims", kd),
	}, x)
}

func (b *GraphBuilder) Cast(x *Value, to tensor.DataType) *Value {
	return b.Apply("Cast", []AttributeProto{AttrInt("to", int64(dataTypeToProtoType(to)))}, x)
}

func (b *GraphBuilder) Gather(data, indices *Value, axis int) *Value {
	return b.Apply("Gather", []AttributeProto{AttrInt("axis", int64(axis))}, data, indices)
}

func (b *GraphBuilder) Transpose(x *Value, perm ...int64) *Value {
	return b.Apply("Transpose", []AttributeProto{AttrInts("perm", perm...)}, x)
}

// Unsqueeze inserts size-1 axes. Opset 13+ takes axes as a second input.
func (b *GraphBuilder) Unsqueeze(x *Value, axes ...int64) *Value {
	return b.Apply("Unsqueeze", nil, x, b.VectorInt64(axes...))
}

func (b *GraphBuilder) Concat(axis int, xs ...*Value) *Value {
	return b.Apply("Concat", []AttributeProto{AttrInt("axis", int64(axis))}, xs...)
}

// Reshape reshapes to a target given as an in-graph int64 vector value.
func (b *GraphBuilder) Reshape(data, shape *Value) *Value {
	return b.Apply("Reshape", nil, data, shape)
}

// ReshapeStatic reshapes to a fixed target embedded as a constant. Only
// safe for targets with no batch or sequence dependence.
func (b *GraphBuilder) ReshapeStatic(data *Value, shape ...int64) *Value {
	return b.Reshape(data, b.VectorInt64(shape...))
}

// Range emits Range(start, limit, delta) over int64 scalar values.
func (b *GraphBuilder) Range(start, limit, delta *Value) *Value {
	return b.Apply("Range", nil, start, limit, delta)
}

// DimValue extracts dimension `axis` of x's runtime shape as an int64
// scalar value, via in-graph Shape+Gather. This is how traced code reads
// a dynamic dimension without freezing the example size into the graph.
func (b *GraphBuilder) DimValue(x *Value, axis int64) *Value {
	return b.Gather(b.Shape(x), b.ScalarInt64(axis), 0)
}

// DynamicReshape reshapes data to a target assembled at execution time
// from scalar dimension values (e.g. products of DimValue results and
// constants). Each dim is unsqueezed to a 1-vector and concatenated, so
// the reshape target tracks the runtime batch and sequence sizes instead
// of the trace-time example sizes.
func (b *GraphBuilder) DynamicReshape(data *Value, dims ...*Value) *Value {
	parts := make([]*Value, len(dims))
	for i, d := range dims {
		parts[i] = b.Unsqueeze(d, 0)
	}
	return b.Reshape(data, b.Concat(0, parts...))
}
