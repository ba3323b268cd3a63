// Package validate replays the exported artifacts end-to-end: the
// encoder runs on the dummy inputs and its realized hidden states feed
// the decoder, exercising the same handoff a generation loop performs.
// Validation failure is advisory. The files are already on disk and a
// failure here usually means a runtime gap, not a broken artifact.
package validate

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/export"
	"github.com/born-ml/gramconv/internal/logger"
	"github.com/born-ml/gramconv/internal/onnx"
	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/tensor"
	"github.com/born-ml/gramconv/internal/tokenizer"
)

// SampleText is the grammar-correction example replayed through the
// encoder artifact when a tokenizer is available.
const SampleText = "He are moving here."

// Result is the outcome for one artifact.
type Result struct {
	// Artifact is the file path that was validated.
	Artifact string

	// Err is nil when the artifact loaded and executed with consistent
	// shapes.
	Err error
}

// OK reports whether the artifact validated cleanly.
func (r Result) OK() bool { return r.Err == nil }

// Report collects both artifact results.
type Report struct {
	Encoder Result
	Decoder Result
}

// OK reports whether both artifacts validated cleanly.
func (r *Report) OK() bool { return r.Encoder.OK() && r.Decoder.OK() }

// Run loads both graph files on the CPU backend and replays the dummy
// inputs through them. The decoder receives the realized encoder
// hidden states, not a fresh tensor, so the cross-attention path is
// validated against real activations.
func Run(encoderPath, decoderPath string, dummy *export.DummyInputs, model t5.Config, backend tensor.Backend, log logger.Logger) *Report {
	report := &Report{
		Encoder: Result{Artifact: encoderPath},
		Decoder: Result{Artifact: decoderPath},
	}

	hidden, err := runEncoder(encoderPath, dummy, model, backend)
	if err != nil {
		report.Encoder.Err = err
		log.Warn("encoder validation failed, the exported file should still be valid",
			"artifact", encoderPath, "error", err)
		// Without realized hidden states the decoder runs on the dummy
		// ones, still exercising its own graph.
		hidden = dummy.EncoderHiddenStates
	} else {
		log.Info("encoder artifact validated", "artifact", encoderPath,
			"last_hidden_state", hidden.Shape())
	}

	logits, err := runDecoder(decoderPath, dummy, hidden, model, backend)
	if err != nil {
		report.Decoder.Err = err
		log.Warn("decoder validation failed, the exported file should still be valid",
			"artifact", decoderPath, "error", err)
	} else {
		log.Info("decoder artifact validated", "artifact", decoderPath,
			"logits", logits.Shape())
	}

	return report
}

// RunSentence encodes text, folds the ids into the model vocabulary
// and replays them through the encoder artifact. This exercises a
// natural sentence length on top of the dummy exemplar; like Run, a
// failure is advisory.
func RunSentence(encoderPath, text string, tok tokenizer.Tokenizer, model t5.Config, backend tensor.Backend, log logger.Logger) Result {
	res := Result{Artifact: encoderPath, Err: runSentence(encoderPath, text, tok, model, backend)}
	if res.Err != nil {
		log.Warn("sentence replay failed, the exported file should still be valid",
			"artifact", encoderPath, "error", res.Err)
	} else {
		log.Info("sentence replay validated", "artifact", encoderPath, "text", text)
	}
	return res
}

func runSentence(path, text string, tok tokenizer.Tokenizer, model t5.Config, backend tensor.Backend) error {
	ids, err := tok.Encode(text)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if eos := tok.EosToken(); eos >= 0 {
		ids = append(ids, eos)
	}
	if len(ids) == 0 {
		return fmt.Errorf("tokenizer produced no ids for %q", text)
	}

	// The tokenizer vocabulary need not match the model's; fold the ids
	// into range, the shape contract is what is under test.
	folded := make([]int64, len(ids))
	for i, id := range ids {
		folded[i] = int64(id) % int64(model.VocabSize)
	}
	in, err := tensor.FromInt64(tensor.Shape{1, len(folded)}, folded)
	if err != nil {
		return err
	}

	loaded, err := onnx.Load(path, backend, onnx.DefaultLoadOptions())
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
		"input_ids":      in,
		"attention_mask": tensor.OnesInt64(tensor.Shape{1, len(folded)}),
	})
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	hidden, ok := outs["last_hidden_state"]
	if !ok {
		return fmt.Errorf("output last_hidden_state missing")
	}
	want := tensor.Shape{1, len(folded), model.DModel}
	if !hidden.Shape().Equal(want) {
		return fmt.Errorf("last_hidden_state shape %v, want %v", hidden.Shape(), want)
	}
	return nil
}

func runEncoder(path string, dummy *export.DummyInputs, model t5.Config, backend tensor.Backend) (*tensor.RawTensor, error) {
	loaded, err := onnx.Load(path, backend, onnx.DefaultLoadOptions())
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
		"input_ids":      dummy.InputIDs,
		"attention_mask": dummy.AttentionMask,
	})
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	hidden, ok := outs["last_hidden_state"]
	if !ok {
		return nil, fmt.Errorf("output last_hidden_state missing")
	}
	want := tensor.Shape{dummy.InputIDs.Shape()[0], dummy.InputIDs.Shape()[1], model.DModel}
	if !hidden.Shape().Equal(want) {
		return nil, fmt.Errorf("last_hidden_state shape %v, want %v", hidden.Shape(), want)
	}
	return hidden, nil
}

func runDecoder(path string, dummy *export.DummyInputs, encoderHidden *tensor.RawTensor, model t5.Config, backend tensor.Backend) (*tensor.RawTensor, error) {
	loaded, err := onnx.Load(path, backend, onnx.DefaultLoadOptions())
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
		"input_ids":              dummy.DecoderInputIDs,
		"encoder_hidden_states":  encoderHidden,
		"encoder_attention_mask": dummy.AttentionMask,
	})
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	logits, ok := outs["logits"]
	if !ok {
		return nil, fmt.Errorf("output logits missing")
	}
	want := tensor.Shape{dummy.DecoderInputIDs.Shape()[0], dummy.DecoderInputIDs.Shape()[1], model.VocabSize}
	if !logits.Shape().Equal(want) {
		return nil, fmt.Errorf("logits shape %v, want %v", logits.Shape(), want)
	}
	return logits, nil
}
