package t5

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Config mirrors the fields of a HuggingFace T5 config.json that the
// converter needs. Fields absent from the file keep the T5 defaults set
// by DefaultConfig.
type Config struct {
	ModelType                    string  `json:"model_type"`
	VocabSize                    int     `json:"vocab_size"`
	DModel                       int     `json:"d_model"`
	DKV                          int     `json:"d_kv"`
	DFF                          int     `json:"d_ff"`
	NumLayers                    int     `json:"num_layers"`
	NumDecoderLayers             int     `json:"num_decoder_layers"`
	NumHeads                     int     `json:"num_heads"`
	RelativeAttentionNumBuckets  int     `json:"relative_attention_num_buckets"`
	RelativeAttentionMaxDistance int     `json:"relative_attention_max_distance"`
	LayerNormEpsilon             float32 `json:"layer_norm_epsilon"`
	TieWordEmbeddings            *bool   `json:"tie_word_embeddings"`
	PadTokenID                   int64   `json:"pad_token_id"`
	EOSTokenID                   int64   `json:"eos_token_id"`
	DecoderStartTokenID          int64   `json:"decoder_start_token_id"`
}

// ConfigFile is the config name inside a model snapshot.
const ConfigFile = "config.json"

// DefaultConfig returns the t5-base architecture defaults, the shape of
// prithivida/grammar_error_correcter_v1.
func DefaultConfig() Config {
	tied := true
	return Config{
		ModelType:                    "t5",
		VocabSize:                    32128,
		DModel:                       768,
		DKV:                          64,
		DFF:                          3072,
		NumLayers:                    12,
		NumDecoderLayers:             12,
		NumHeads:                     12,
		RelativeAttentionNumBuckets:  32,
		RelativeAttentionMaxDistance: 128,
		LayerNormEpsilon:             1e-6,
		TieWordEmbeddings:            &tied,
		PadTokenID:                   0,
		EOSTokenID:                   1,
	}
}

// LoadConfig reads config.json from a model directory, overlaying the
// file's fields onto the T5 defaults.
func LoadConfig(dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path) //nolint:gosec // G304: Model directory comes from user input.
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the architecture parameters.
func (c Config) Validate() error {
	switch c.ModelType {
	case "t5", "mt5", "":
		// T5 family only; the trace encodes T5 semantics (RMSNorm,
		// unscaled attention, relative position bias).
	default:
		return fmt.Errorf("unsupported model_type %q (T5 family required)", c.ModelType)
	}
	if c.VocabSize <= 0 || c.DModel <= 0 || c.DKV <= 0 || c.DFF <= 0 {
		return fmt.Errorf("invalid dimensions: vocab=%d d_model=%d d_kv=%d d_ff=%d",
			c.VocabSize, c.DModel, c.DKV, c.DFF)
	}
	if c.NumLayers <= 0 || c.NumHeads <= 0 {
		return fmt.Errorf("invalid depth: num_layers=%d num_heads=%d", c.NumLayers, c.NumHeads)
	}
	if c.RelativeAttentionNumBuckets <= 1 {
		return fmt.Errorf("invalid relative_attention_num_buckets %d", c.RelativeAttentionNumBuckets)
	}
	if c.LayerNormEpsilon <= 0 {
		return fmt.Errorf("invalid layer_norm_epsilon %g", c.LayerNormEpsilon)
	}
	return nil
}

// DecoderLayers returns num_decoder_layers, defaulting to num_layers
// the way transformers does.
func (c Config) DecoderLayers() int {
	if c.NumDecoderLayers > 0 {
		return c.NumDecoderLayers
	}
	return c.NumLayers
}

// Tied reports whether the LM head shares the embedding matrix.
func (c Config) Tied() bool {
	return c.TieWordEmbeddings == nil || *c.TieWordEmbeddings
}

// InnerDim is the concatenated attention head dimension.
func (c Config) InnerDim() int {
	return c.NumHeads * c.DKV
}
