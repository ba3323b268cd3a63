package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// SerializeFile serializes an ONNX model and writes it to path.
func SerializeFile(m *ModelProto, path string) error {
	data, err := Serialize(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Serialize serializes an ONNX model to protobuf wire format. The output
// round-trips through Parse and is readable by any ONNX runtime.
func Serialize(m *ModelProto) ([]byte, error) {
	if m.Graph == nil {
		return nil, fmt.Errorf("model has no graph")
	}
	e := &encoder{}
	e.writeModelProto(m)
	return e.buf, nil
}

// encoder implements the minimal protobuf wire format encoder, the mirror
// image of parser.
type encoder struct {
	buf []byte
}

func (e *encoder) writeModelProto(m *ModelProto) {
	e.varintField(1, m.IRVersion)
	e.stringField(2, m.ProducerName)
	e.stringField(3, m.ProducerVersion)
	e.stringField(4, m.Domain)
	e.varintField(5, m.ModelVersion)
	e.stringField(6, m.DocString)
	e.embedded(7, func(sub *encoder) { sub.writeGraphProto(m.Graph) })
	for i := range m.OpsetImport {
		opset := &m.OpsetImport[i]
		e.embedded(8, func(sub *encoder) { sub.writeOperatorSetID(opset) })
	}
	for i := range m.MetadataProps {
		entry := &m.MetadataProps[i]
		e.embedded(14, func(sub *encoder) { sub.writeStringStringEntry(entry) })
	}
}

func (e *encoder) writeGraphProto(g *GraphProto) {
	for i := range g.Nodes {
		node := &g.Nodes[i]
		e.embedded(1, func(sub *encoder) { sub.writeNodeProto(node) })
	}
	e.stringField(2, g.Name)
	for i := range g.Initializers {
		init := &g.Initializers[i]
		e.embedded(5, func(sub *encoder) { sub.writeTensorProto(init) })
	}
	for i := range g.Inputs {
		vi := &g.Inputs[i]
		e.embedded(11, func(sub *encoder) { sub.writeValueInfoProto(vi) })
	}
	for i := range g.Outputs {
		vi := &g.Outputs[i]
		e.embedded(12, func(sub *encoder) { sub.writeValueInfoProto(vi) })
	}
}

func (e *encoder) writeNodeProto(n *NodeProto) {
	// Inputs and outputs are positional: empty strings mark omitted
	// optional inputs and must be preserved on the wire.
	for _, in := range n.Inputs {
		e.bytesField(1, []byte(in))
	}
	for _, out := range n.Outputs {
		e.bytesField(2, []byte(out))
	}
	e.stringField(3, n.Name)
	e.stringField(4, n.OpType)
	for i := range n.Attributes {
		attr := &n.Attributes[i]
		e.embedded(5, func(sub *encoder) { sub.writeAttributeProto(attr) })
	}
	e.stringField(7, n.Domain)
}

func (e *encoder) writeTensorProto(t *TensorProto) {
	if len(t.Dims) > 0 {
		e.tag(1, wireBytes)
		sub := &encoder{}
		for _, d := range t.Dims {
			sub.varint(uint64(d)) //nolint:gosec // G115: Tensor dims are non-negative.
		}
		e.lengthDelimited(sub.buf)
	}
	e.varintField(2, int64(t.DataType))
	if len(t.FloatData) > 0 {
		e.tag(4, wireBytes)
		packed := make([]byte, 4*len(t.FloatData))
		for i, v := range t.FloatData {
			binary.LittleEndian.PutUint32(packed[i*4:], math.Float32bits(v))
		}
		e.lengthDelimited(packed)
	}
	if len(t.Int32Data) > 0 {
		e.tag(5, wireBytes)
		sub := &encoder{}
		for _, v := range t.Int32Data {
			sub.varint(uint64(int64(v))) //nolint:gosec // G115: Two's-complement varint encoding.
		}
		e.lengthDelimited(sub.buf)
	}
	if len(t.Int64Data) > 0 {
		e.tag(7, wireBytes)
		sub := &encoder{}
		for _, v := range t.Int64Data {
			sub.varint(uint64(v)) //nolint:gosec // G115: Two's-complement varint encoding.
		}
		e.lengthDelimited(sub.buf)
	}
	e.stringField(8, t.Name)
	if len(t.RawData) > 0 {
		e.bytesField(9, t.RawData)
	}
}

func (e *encoder) writeValueInfoProto(vi *ValueInfoProto) {
	e.stringField(1, vi.Name)
	if vi.Type != nil {
		e.embedded(2, func(sub *encoder) { sub.writeTypeProto(vi.Type) })
	}
}

func (e *encoder) writeTypeProto(t *TypeProto) {
	if t.TensorType != nil {
		e.embedded(1, func(sub *encoder) { sub.writeTensorTypeProto(t.TensorType) })
	}
}

func (e *encoder) writeTensorTypeProto(t *TensorTypeProto) {
	e.varintField(1, int64(t.ElemType))
	if t.Shape != nil {
		e.embedded(2, func(sub *encoder) { sub.writeTensorShapeProto(t.Shape) })
	}
}

func (e *encoder) writeTensorShapeProto(s *TensorShapeProto) {
	for i := range s.Dims {
		dim := &s.Dims[i]
		e.embedded(1, func(sub *encoder) { sub.writeDimensionProto(dim) })
	}
}

func (e *encoder) writeDimensionProto(d *DimensionProto) {
	if d.DimParam != "" {
		e.stringField(2, d.DimParam)
		return
	}
	e.varintField(1, d.DimValue)
}

func (e *encoder) writeAttributeProto(a *AttributeProto) {
	e.stringField(1, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		e.tag(2, wire32Bit)
		e.fixed32(math.Float32bits(a.F))
	case AttributeProtoInt:
		e.varintField(3, a.I)
	case AttributeProtoString:
		e.bytesField(4, a.S)
	case AttributeProtoTensor:
		if a.T != nil {
			e.embedded(5, func(sub *encoder) { sub.writeTensorProto(a.T) })
		}
	case AttributeProtoFloats:
		e.tag(7, wireBytes)
		packed := make([]byte, 4*len(a.Floats))
		for i, v := range a.Floats {
			binary.LittleEndian.PutUint32(packed[i*4:], math.Float32bits(v))
		}
		e.lengthDelimited(packed)
	case AttributeProtoInts:
		e.tag(8, wireBytes)
		sub := &encoder{}
		for _, v := range a.Ints {
			sub.varint(uint64(v)) //nolint:gosec // G115: Two's-complement varint encoding.
		}
		e.lengthDelimited(sub.buf)
	case AttributeProtoStrings:
		for _, s := range a.Strings {
			e.bytesField(9, s)
		}
	}
	e.varintField(20, int64(a.Type))
}

func (e *encoder) writeOperatorSetID(o *OperatorSetID) {
	e.stringField(1, o.Domain)
	e.varintField(2, o.Version)
}

func (e *encoder) writeStringStringEntry(s *StringStringEntry) {
	e.stringField(1, s.Key)
	e.stringField(2, s.Value)
}

// tag appends a field tag.
func (e *encoder) tag(fieldNum, wireType int) {
	e.varint(uint64(fieldNum)<<3 | uint64(wireType)) //nolint:gosec // G115: Field numbers are small positives.
}

// varint appends a varint-encoded value.
func (e *encoder) varint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// fixed32 appends a little-endian 32-bit value.
func (e *encoder) fixed32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// lengthDelimited appends a length prefix followed by the payload.
func (e *encoder) lengthDelimited(data []byte) {
	e.varint(uint64(len(data)))
	e.buf = append(e.buf, data...)
}

// varintField appends a varint field, skipping the proto default (zero).
func (e *encoder) varintField(fieldNum int, v int64) {
	if v == 0 {
		return
	}
	e.tag(fieldNum, wireVarint)
	e.varint(uint64(v)) //nolint:gosec // G115: Two's-complement varint encoding.
}

// stringField appends a string field, skipping the proto default (empty).
func (e *encoder) stringField(fieldNum int, s string) {
	if s == "" {
		return
	}
	e.bytesField(fieldNum, []byte(s))
}

// bytesField appends a length-delimited field.
func (e *encoder) bytesField(fieldNum int, data []byte) {
	e.tag(fieldNum, wireBytes)
	e.lengthDelimited(data)
}

// embedded appends an embedded message field encoded by fn.
func (e *encoder) embedded(fieldNum int, fn func(*encoder)) {
	sub := &encoder{}
	fn(sub)
	e.bytesField(fieldNum, sub.buf)
}
