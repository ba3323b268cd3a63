package export_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/backend/cpu"
	"github.com/born-ml/gramconv/internal/export"
	"github.com/born-ml/gramconv/internal/onnx"
	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/t5/t5test"
	"github.com/born-ml/gramconv/internal/tensor"
)

func tinyExporter(t *testing.T) (*export.Exporter, *export.DummyInputs, t5.Config) {
	t.Helper()

	m, err := t5test.LoadTinyModel()
	require.NoError(t, err)

	cfg := export.ExportConfig{EncoderLength: 6, DecoderLength: 3, Seed: 42}
	return export.NewExporter(m, cpu.New()), export.NewDummyInputs(cfg, m.Config), m.Config
}

func TestDummyInputShapes(t *testing.T) {
	cfg := export.DefaultExportConfig()
	model := t5test.TinyConfig()

	d := export.NewDummyInputs(cfg, model)

	assert.Equal(t, tensor.Shape{1, 20}, d.InputIDs.Shape())
	assert.Equal(t, tensor.Shape{1, 20}, d.AttentionMask.Shape())
	assert.Equal(t, tensor.Shape{1, 10}, d.DecoderInputIDs.Shape())
	assert.Equal(t, tensor.Shape{1, 20, model.DModel}, d.EncoderHiddenStates.Shape())

	// Token ids stay inside the vocabulary.
	for _, id := range d.InputIDs.AsInt64() {
		assert.GreaterOrEqual(t, id, int64(0))
		assert.Less(t, id, int64(model.VocabSize))
	}
	for _, v := range d.AttentionMask.AsInt64() {
		assert.Equal(t, int64(1), v)
	}
}

func TestDummyInputsReproducible(t *testing.T) {
	cfg := export.DefaultExportConfig()
	model := t5test.TinyConfig()

	a := export.NewDummyInputs(cfg, model)
	b := export.NewDummyInputs(cfg, model)

	assert.Equal(t, a.InputIDs.AsInt64(), b.InputIDs.AsInt64())
	assert.Equal(t, a.EncoderHiddenStates.AsFloat32(), b.EncoderHiddenStates.AsFloat32())
}

func TestEncoderArtifactContract(t *testing.T) {
	exp, dummy, modelCfg := tinyExporter(t)

	proto, err := exp.EncoderProto(dummy)
	require.NoError(t, err)

	loaded, err := onnx.LoadFromProto(proto, cpu.New(), onnx.LoadOptions{StrictMode: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"input_ids", "attention_mask"}, loaded.InputNames())
	assert.Equal(t, []string{"last_hidden_state"}, loaded.OutputNames())

	// Exported graph accepts shapes other than the exemplar.
	rng := rand.New(rand.NewSource(7)) //nolint:gosec // G404: Deterministic test data.
	for _, dims := range [][2]int{{1, 6}, {2, 11}, {3, 1}} {
		outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
			"input_ids":      tensor.RandInt(tensor.Shape{dims[0], dims[1]}, int64(modelCfg.VocabSize), rng),
			"attention_mask": tensor.OnesInt64(tensor.Shape{dims[0], dims[1]}),
		})
		require.NoError(t, err, "B=%d L=%d", dims[0], dims[1])
		assert.Equal(t, tensor.Shape{dims[0], dims[1], modelCfg.DModel},
			outs["last_hidden_state"].Shape())
	}
}

func TestEncoderDynamicAxisNames(t *testing.T) {
	exp, dummy, _ := tinyExporter(t)

	proto, err := exp.EncoderProto(dummy)
	require.NoError(t, err)

	axes := map[string][]string{}
	collect := func(infos []onnx.ValueInfoProto) {
		for _, vi := range infos {
			var names []string
			for _, d := range vi.Type.TensorType.Shape.Dims {
				names = append(names, d.DimParam)
			}
			axes[vi.Name] = names
		}
	}
	collect(proto.Graph.Inputs)
	collect(proto.Graph.Outputs)

	assert.Equal(t, []string{"batch_size", "sequence_length"}, axes["input_ids"])
	assert.Equal(t, []string{"batch_size", "sequence_length"}, axes["attention_mask"])
	assert.Equal(t, []string{"batch_size", "sequence_length", ""}, axes["last_hidden_state"])
}

func TestDecoderArtifactContract(t *testing.T) {
	exp, dummy, modelCfg := tinyExporter(t)

	proto, err := exp.DecoderProto(dummy)
	require.NoError(t, err)

	loaded, err := onnx.LoadFromProto(proto, cpu.New(), onnx.LoadOptions{StrictMode: true})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"input_ids", "encoder_hidden_states", "encoder_attention_mask"},
		loaded.InputNames())
	assert.Equal(t, []string{"logits"}, loaded.OutputNames())

	rng := rand.New(rand.NewSource(8)) //nolint:gosec // G404: Deterministic test data.
	encLen := 5
	encHidden := tensor.Randn(tensor.Shape{1, encLen, modelCfg.DModel}, rng)
	encMask := tensor.OnesInt64(tensor.Shape{1, encLen})

	// The no-cache contract: each step re-feeds the whole longer prefix
	// against the same encoder context.
	for _, mLen := range []int{1, 2, 4} {
		outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
			"input_ids":              tensor.RandInt(tensor.Shape{1, mLen}, int64(modelCfg.VocabSize), rng),
			"encoder_hidden_states":  encHidden,
			"encoder_attention_mask": encMask,
		})
		require.NoError(t, err, "M=%d", mLen)
		assert.Equal(t, tensor.Shape{1, mLen, modelCfg.VocabSize}, outs["logits"].Shape())
	}

	// The batch axis is dynamic too: shapes other than the traced B=1.
	for _, dims := range [][3]int{{2, 4, 5}, {3, 1, 2}} {
		batch, mLen, eLen := dims[0], dims[1], dims[2]
		outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
			"input_ids":              tensor.RandInt(tensor.Shape{batch, mLen}, int64(modelCfg.VocabSize), rng),
			"encoder_hidden_states":  tensor.Randn(tensor.Shape{batch, eLen, modelCfg.DModel}, rng),
			"encoder_attention_mask": tensor.OnesInt64(tensor.Shape{batch, eLen}),
		})
		require.NoError(t, err, "B=%d M=%d L=%d", batch, mLen, eLen)
		assert.Equal(t, tensor.Shape{batch, mLen, modelCfg.VocabSize}, outs["logits"].Shape())
	}
}

func TestDecoderDynamicAxisNames(t *testing.T) {
	exp, dummy, _ := tinyExporter(t)

	proto, err := exp.DecoderProto(dummy)
	require.NoError(t, err)

	firstAxes := func(infos []onnx.ValueInfoProto, name string) []string {
		for _, vi := range infos {
			if vi.Name != name {
				continue
			}
			var names []string
			for _, d := range vi.Type.TensorType.Shape.Dims {
				names = append(names, d.DimParam)
			}
			return names
		}
		return nil
	}

	assert.Equal(t, []string{"batch_size", "decoder_sequence_length"},
		firstAxes(proto.Graph.Inputs, "input_ids"))
	assert.Equal(t, []string{"batch_size", "encoder_sequence_length", ""},
		firstAxes(proto.Graph.Inputs, "encoder_hidden_states"))
	assert.Equal(t, []string{"batch_size", "encoder_sequence_length"},
		firstAxes(proto.Graph.Inputs, "encoder_attention_mask"))
	assert.Equal(t, []string{"batch_size", "decoder_sequence_length", ""},
		firstAxes(proto.Graph.Outputs, "logits"))
}

func TestExportFilesRoundTrip(t *testing.T) {
	exp, dummy, modelCfg := tinyExporter(t)
	dir := t.TempDir()

	encPath := filepath.Join(dir, export.EncoderFile)
	decPath := filepath.Join(dir, export.DecoderFile)
	require.NoError(t, exp.ExportEncoder(dummy, encPath))
	require.NoError(t, exp.ExportDecoder(dummy, decPath))

	for _, path := range []string{encPath, decPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	// The written encoder file reloads and runs on the dummy inputs.
	loaded, err := onnx.Load(encPath, cpu.New(), onnx.DefaultLoadOptions())
	require.NoError(t, err)

	outs, err := loaded.ForwardNamed(map[string]*tensor.RawTensor{
		"input_ids":      dummy.InputIDs,
		"attention_mask": dummy.AttentionMask,
	})
	require.NoError(t, err)
	assert.Equal(t,
		tensor.Shape{1, dummy.InputIDs.Shape()[1], modelCfg.DModel},
		outs["last_hidden_state"].Shape())
}

func TestExportDeterminism(t *testing.T) {
	exp, dummy, _ := tinyExporter(t)
	dir := t.TempDir()

	p1 := filepath.Join(dir, "a.onnx")
	p2 := filepath.Join(dir, "b.onnx")
	require.NoError(t, exp.ExportDecoder(dummy, p1))
	require.NoError(t, exp.ExportDecoder(dummy, p2))

	d1, err := os.ReadFile(p1)
	require.NoError(t, err)
	d2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "same weights and dummy inputs must export byte-identical files")
}
