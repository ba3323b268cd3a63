package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTikToken_NewTikToken(t *testing.T) {
	tests := []struct {
		name              string
		encoding          string
		wantErr           bool
		expectedVocabSize int
	}{
		{
			name:              "cl100k_base",
			encoding:          "cl100k_base",
			wantErr:           false,
			expectedVocabSize: 100256,
		},
		{
			name:              "p50k_base",
			encoding:          "p50k_base",
			wantErr:           false,
			expectedVocabSize: 50257,
		},
		{
			name:     "invalid encoding",
			encoding: "invalid_encoding_xyz",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewTikToken(tt.encoding)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, tok)
				return
			}
			if err != nil {
				t.Skipf("encoding %s unavailable (offline?): %v", tt.encoding, err)
			}

			require.NotNil(t, tok)
			assert.Equal(t, tt.expectedVocabSize, tok.VocabSize())
			assert.Equal(t, tt.encoding, tok.Name())
		})
	}
}

func TestTikToken_Roundtrip(t *testing.T) {
	tok, err := NewTikToken("cl100k_base")
	if err != nil {
		t.Skipf("cl100k_base unavailable (offline?): %v", err)
	}

	tests := []struct {
		name string
		text string
	}{
		{
			name: "simple text",
			text: "He are moving here.",
		},
		{
			name: "with newlines",
			text: "Hello\nWorld\n",
		},
		{
			name: "unicode",
			text: "Hello 世界! 🌍",
		},
		{
			name: "empty string",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := tok.Encode(tt.text)
			require.NoError(t, err)

			decoded, err := tok.Decode(tokens)
			require.NoError(t, err)

			assert.Equal(t, tt.text, decoded)
		})
	}
}

func TestTikToken_SpecialTokens(t *testing.T) {
	tok, err := NewTikToken("cl100k_base")
	if err != nil {
		t.Skipf("cl100k_base unavailable (offline?): %v", err)
	}

	assert.Equal(t, int32(100257), tok.EosToken())
	assert.Equal(t, int32(-1), tok.PadToken(), "tiktoken doesn't define PAD")
}

func TestLoadFallsBackToDefaultEncoding(t *testing.T) {
	// A HuggingFace model id maps to no OpenAI encoding, so Load falls
	// through to cl100k_base.
	tok, err := Load("prithivida/grammar_error_correcter_v1")
	if err != nil {
		t.Skipf("tiktoken encodings unavailable (offline?): %v", err)
	}

	require.NotNil(t, tok)
	assert.Equal(t, 100256, tok.VocabSize())

	ids, err := tok.Encode("He are moving here.")
	require.NoError(t, err)
	assert.NotEmpty(t, ids)
}
