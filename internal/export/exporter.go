package export

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/onnx"
	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/tensor"
)

// Exporter traces a loaded model into the two graph artifacts.
type Exporter struct {
	model   *t5.Model
	backend tensor.Backend
}

// NewExporter creates an Exporter over a loaded model. The backend
// executes the trace eagerly and the constant-folding pass.
func NewExporter(model *t5.Model, backend tensor.Backend) *Exporter {
	return &Exporter{model: model, backend: backend}
}

// EncoderProto traces the encoder and returns the folded model proto.
//
// Contract: inputs input_ids (B, L) and attention_mask (B, L), output
// last_hidden_state (B, L, d_model), with B and L symbolic.
func (e *Exporter) EncoderProto(dummy *DummyInputs) (*onnx.ModelProto, error) {
	b := onnx.NewGraphBuilder("t5_encoder", e.backend)

	seqAxes := map[int]string{0: axisBatch, 1: axisSequence}
	inputIDs := b.Input("input_ids", dummy.InputIDs, seqAxes)
	attentionMask := b.Input("attention_mask", dummy.AttentionMask, seqAxes)

	hidden := e.model.TraceEncoder(b, inputIDs, attentionMask)
	b.Output("last_hidden_state", hidden, map[int]string{0: axisBatch, 1: axisSequence})

	proto, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("encoder trace: %w", err)
	}
	if err := onnx.FoldConstants(proto, e.backend); err != nil {
		return nil, fmt.Errorf("encoder constant folding: %w", err)
	}
	return proto, nil
}

// DecoderProto traces the fused decoder + LM head with caching disabled
// and returns the folded model proto.
//
// Contract: inputs input_ids (B, M), encoder_hidden_states (B, L,
// d_model) and encoder_attention_mask (B, L), output logits (B, M,
// vocab), with B, M and L symbolic.
func (e *Exporter) DecoderProto(dummy *DummyInputs) (*onnx.ModelProto, error) {
	b := onnx.NewGraphBuilder("t5_decoder", e.backend)

	inputIDs := b.Input("input_ids", dummy.DecoderInputIDs,
		map[int]string{0: axisBatch, 1: axisDecoderSeq})
	encoderHidden := b.Input("encoder_hidden_states", dummy.EncoderHiddenStates,
		map[int]string{0: axisBatch, 1: axisEncoderSeq})
	encoderMask := b.Input("encoder_attention_mask", dummy.AttentionMask,
		map[int]string{0: axisBatch, 1: axisEncoderSeq})

	logits, err := e.model.TraceDecoder(b, inputIDs, encoderHidden, encoderMask, t5.TraceOptions{})
	if err != nil {
		return nil, fmt.Errorf("decoder trace: %w", err)
	}
	b.Output("logits", logits, map[int]string{0: axisBatch, 1: axisDecoderSeq})

	proto, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("decoder trace: %w", err)
	}
	if err := onnx.FoldConstants(proto, e.backend); err != nil {
		return nil, fmt.Errorf("decoder constant folding: %w", err)
	}
	return proto, nil
}

// ExportEncoder traces, folds and writes encoder_model.onnx to path.
func (e *Exporter) ExportEncoder(dummy *DummyInputs, path string) error {
	proto, err := e.EncoderProto(dummy)
	if err != nil {
		return err
	}
	if err := onnx.SerializeFile(proto, path); err != nil {
		return fmt.Errorf("encoder serialize: %w", err)
	}
	return nil
}

// ExportDecoder traces, folds and writes decoder_model.onnx to path.
func (e *Exporter) ExportDecoder(dummy *DummyInputs, path string) error {
	proto, err := e.DecoderProto(dummy)
	if err != nil {
		return err
	}
	if err := onnx.SerializeFile(proto, path); err != nil {
		return fmt.Errorf("decoder serialize: %w", err)
	}
	return nil
}
