package export

import (
	"math/rand"

	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/tensor"
)

// Artifact file names, fixed by the export contract.
const (
	EncoderFile = "encoder_model.onnx"
	DecoderFile = "decoder_model.onnx"
)

// Axis names declared on the graph inputs and outputs. Runtimes key
// shape polymorphism off these strings, so they are part of the
// artifact contract.
const (
	axisBatch      = "batch_size"
	axisSequence   = "sequence_length"
	axisDecoderSeq = "decoder_sequence_length"
	axisEncoderSeq = "encoder_sequence_length"
)

// ExportConfig controls the exemplar dummy-input shapes used while
// tracing. The exported graphs are shape-polymorphic, so the lengths
// only need to be representative, not maximal.
type ExportConfig struct {
	// EncoderLength is the dummy source sequence length.
	EncoderLength int

	// DecoderLength is the dummy target prefix length.
	DecoderLength int

	// Seed feeds the dummy-input generator so exports are reproducible.
	Seed int64
}

// DefaultExportConfig returns the exemplar shapes used by the original
// conversion recipe: a 20-token source and a 10-token prefix.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		EncoderLength: 20,
		DecoderLength: 10,
		Seed:          42,
	}
}

// DummyInputs are the concrete tensors the traces run on.
type DummyInputs struct {
	// InputIDs is (1, EncoderLength) int64, uniform in [0, vocab).
	InputIDs *tensor.RawTensor

	// AttentionMask is (1, EncoderLength) int64 ones.
	AttentionMask *tensor.RawTensor

	// DecoderInputIDs is (1, DecoderLength) int64, uniform in [0, vocab).
	DecoderInputIDs *tensor.RawTensor

	// EncoderHiddenStates is (1, EncoderLength, d_model) standard normal.
	// Only the decoder trace uses it; validation replaces it with the
	// realized encoder output.
	EncoderHiddenStates *tensor.RawTensor
}

// NewDummyInputs builds the dummy tensors for a model configuration.
func NewDummyInputs(cfg ExportConfig, model t5.Config) *DummyInputs {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: Reproducible dummy data, not cryptography.

	vocab := int64(model.VocabSize)
	encShape := tensor.Shape{1, cfg.EncoderLength}

	return &DummyInputs{
		InputIDs:            tensor.RandInt(encShape, vocab, rng),
		AttentionMask:       tensor.OnesInt64(encShape),
		DecoderInputIDs:     tensor.RandInt(tensor.Shape{1, cfg.DecoderLength}, vocab, rng),
		EncoderHiddenStates: tensor.Randn(tensor.Shape{1, cfg.EncoderLength, model.DModel}, rng),
	}
}
