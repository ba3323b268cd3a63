package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gramconv/internal/logger"
)

const unigramTokenizerJSON = `{
	"model": {
		"type": "Unigram",
		"vocab": [["<pad>", 0.0], ["</s>", 0.0], ["<unk>", 0.0], ["▁the", -2.5]]
	},
	"added_tokens": [{"id": 32000, "content": "<extra_id_99>"}]
}`

const bpeTokenizerJSON = `{
	"model": {
		"type": "BPE",
		"vocab": {"<pad>": 0, "</s>": 1, "the": 2}
	}
}`

// writeModelDir builds a fake snapshot directory with the given files.
func writeModelDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantType  Type
		wantVocab int
	}{
		{
			name:      "unigram with pair vocab",
			content:   unigramTokenizerJSON,
			wantType:  TypeUnigram,
			wantVocab: 4,
		},
		{
			name:      "bpe with object vocab",
			content:   bpeTokenizerJSON,
			wantType:  TypeBPE,
			wantVocab: 3,
		},
		{
			name:      "unknown model type",
			content:   `{"model": {"type": "SentencePieceThing"}}`,
			wantType:  TypeUnknown,
			wantVocab: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModelDir(t, map[string]string{FastTokenizerFile: tt.content})

			meta, err := DetectType(filepath.Join(dir, FastTokenizerFile))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, meta.Type)
			assert.Equal(t, tt.wantVocab, meta.VocabSize)
		})
	}
}

func TestDetectType_Invalid(t *testing.T) {
	dir := writeModelDir(t, map[string]string{FastTokenizerFile: "not json at all"})

	_, err := DetectType(filepath.Join(dir, FastTokenizerFile))
	assert.Error(t, err)

	_, err = DetectType(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSaveArtifacts_Full(t *testing.T) {
	modelDir := writeModelDir(t, map[string]string{
		SentencePieceFile:        "spm-binary-payload",
		"tokenizer_config.json":  `{"model_max_length": 512}`,
		"special_tokens_map.json": `{"eos_token": "</s>"}`,
		FastTokenizerFile:        unigramTokenizerJSON,
	})
	outDir := filepath.Join(t.TempDir(), "out")

	result, err := SaveArtifacts(modelDir, outDir, logger.Discard())
	require.NoError(t, err)

	assert.True(t, result.FastSaved)
	require.NotNil(t, result.Meta)
	assert.Equal(t, TypeUnigram, result.Meta.Type)
	assert.ElementsMatch(t, []string{
		SentencePieceFile, "tokenizer_config.json", "special_tokens_map.json",
	}, result.NativeFiles)

	for _, name := range []string{SentencePieceFile, "tokenizer_config.json", FastTokenizerFile} {
		copied, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		original, err := os.ReadFile(filepath.Join(modelDir, name))
		require.NoError(t, err)
		assert.Equal(t, original, copied)
	}
}

func TestSaveArtifacts_MissingSentencePieceIsFatal(t *testing.T) {
	modelDir := writeModelDir(t, map[string]string{
		FastTokenizerFile: unigramTokenizerJSON,
	})

	_, err := SaveArtifacts(modelDir, t.TempDir(), logger.Discard())
	assert.Error(t, err)
}

func TestSaveArtifacts_FastFailureIsDegraded(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "no tokenizer.json",
			files: map[string]string{
				SentencePieceFile: "spm-binary-payload",
			},
		},
		{
			name: "corrupt tokenizer.json",
			files: map[string]string{
				SentencePieceFile: "spm-binary-payload",
				FastTokenizerFile: "{broken",
			},
		},
		{
			name: "unrecognized tokenizer model",
			files: map[string]string{
				SentencePieceFile: "spm-binary-payload",
				FastTokenizerFile: `{"model": {"type": "Mystery"}}`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modelDir := writeModelDir(t, tt.files)
			outDir := filepath.Join(t.TempDir(), "out")

			result, err := SaveArtifacts(modelDir, outDir, logger.Discard())
			require.NoError(t, err, "fast-path failure must not be fatal")

			assert.False(t, result.FastSaved)
			assert.Error(t, result.FastErr)
			assert.Contains(t, result.NativeFiles, SentencePieceFile)

			_, statErr := os.Stat(filepath.Join(outDir, SentencePieceFile))
			assert.NoError(t, statErr, "slow tokenizer still copied")
		})
	}
}
