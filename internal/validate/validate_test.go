package validate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/backend/cpu"
	"github.com/born-ml/gramconv/internal/export"
	"github.com/born-ml/gramconv/internal/logger"
	"github.com/born-ml/gramconv/internal/t5/t5test"
	"github.com/born-ml/gramconv/internal/validate"
)

// exportTiny writes both artifacts for the tiny model into dir.
func exportTiny(t *testing.T, dir string) *export.DummyInputs {
	t.Helper()

	m, err := t5test.LoadTinyModel()
	require.NoError(t, err)

	cfg := export.ExportConfig{EncoderLength: 6, DecoderLength: 3, Seed: 42}
	dummy := export.NewDummyInputs(cfg, m.Config)
	exp := export.NewExporter(m, cpu.New())

	require.NoError(t, exp.ExportEncoder(dummy, filepath.Join(dir, export.EncoderFile)))
	require.NoError(t, exp.ExportDecoder(dummy, filepath.Join(dir, export.DecoderFile)))
	return dummy
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dummy := exportTiny(t, dir)

	report := validate.Run(
		filepath.Join(dir, export.EncoderFile),
		filepath.Join(dir, export.DecoderFile),
		dummy, t5test.TinyConfig(), cpu.New(), logger.Discard())

	assert.True(t, report.Encoder.OK(), "encoder: %v", report.Encoder.Err)
	assert.True(t, report.Decoder.OK(), "decoder: %v", report.Decoder.Err)
	assert.True(t, report.OK())
}

func TestRunMissingEncoderIsAdvisory(t *testing.T) {
	dir := t.TempDir()
	dummy := exportTiny(t, dir)

	report := validate.Run(
		filepath.Join(dir, "no_such_file.onnx"),
		filepath.Join(dir, export.DecoderFile),
		dummy, t5test.TinyConfig(), cpu.New(), logger.Discard())

	assert.False(t, report.Encoder.OK())
	// The decoder still validates on the dummy hidden states.
	assert.True(t, report.Decoder.OK(), "decoder: %v", report.Decoder.Err)
	assert.False(t, report.OK())
}

// fixedTokenizer returns canned ids, some above the tiny vocabulary to
// exercise the fold into range.
type fixedTokenizer struct{ ids []int32 }

func (f fixedTokenizer) Encode(string) ([]int32, error) { return f.ids, nil }
func (f fixedTokenizer) Decode([]int32) (string, error) { return "", nil }
func (f fixedTokenizer) VocabSize() int                 { return 100256 }
func (f fixedTokenizer) EosToken() int32                { return 100257 }
func (f fixedTokenizer) PadToken() int32                { return -1 }

func TestRunSentenceReplaysEncoder(t *testing.T) {
	dir := t.TempDir()
	exportTiny(t, dir)

	tok := fixedTokenizer{ids: []int32{17, 93842, 5, 100200}}
	res := validate.RunSentence(
		filepath.Join(dir, export.EncoderFile),
		validate.SampleText, tok, t5test.TinyConfig(), cpu.New(), logger.Discard())

	assert.True(t, res.OK(), "sentence replay: %v", res.Err)
}

func TestRunSentenceMissingEncoderIsAdvisory(t *testing.T) {
	tok := fixedTokenizer{ids: []int32{1, 2, 3}}
	res := validate.RunSentence(
		filepath.Join(t.TempDir(), "no_such_file.onnx"),
		validate.SampleText, tok, t5test.TinyConfig(), cpu.New(), logger.Discard())

	assert.False(t, res.OK())
	assert.Error(t, res.Err)
}

func TestRunCorruptDecoderIsAdvisory(t *testing.T) {
	dir := t.TempDir()
	dummy := exportTiny(t, dir)

	decPath := filepath.Join(dir, export.DecoderFile)
	require.NoError(t, os.WriteFile(decPath, []byte("not an onnx file"), 0o644))

	report := validate.Run(
		filepath.Join(dir, export.EncoderFile),
		decPath,
		dummy, t5test.TinyConfig(), cpu.New(), logger.Discard())

	assert.True(t, report.Encoder.OK(), "encoder: %v", report.Encoder.Err)
	assert.False(t, report.Decoder.OK())
	assert.Error(t, report.Decoder.Err)
}
