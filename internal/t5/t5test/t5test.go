// Package t5test provides a reduced-dimension model fixture shared by
// the exporter, validator and pipeline tests. Full-size checkpoints are
// never fabricated in tests; the graph contract is shape-polymorphic so
// a tiny architecture exercises the same code paths.
package t5test

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/born-ml/gramconv/internal/t5"
	"github.com/born-ml/gramconv/internal/tensor"
)

// TinyConfig returns a small T5 architecture: vocab 50, d_model 16,
// 2 layers of 4 heads.
func TinyConfig() t5.Config {
	cfg := t5.DefaultConfig()
	cfg.VocabSize = 50
	cfg.DModel = 16
	cfg.DKV = 4
	cfg.DFF = 32
	cfg.NumLayers = 2
	cfg.NumDecoderLayers = 2
	cfg.NumHeads = 4
	cfg.RelativeAttentionNumBuckets = 8
	cfg.RelativeAttentionMaxDistance = 16
	return cfg
}

// Checkpoint serves deterministic random weights under the HuggingFace
// T5 tensor names.
type Checkpoint struct {
	Tensors map[string]*tensor.RawTensor
}

// NewCheckpoint builds a checkpoint matching cfg, seeded so repeated
// calls produce identical weights.
func NewCheckpoint(cfg t5.Config) *Checkpoint {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // G404: Deterministic test data.
	c := &Checkpoint{Tensors: make(map[string]*tensor.RawTensor)}

	small := func(shape tensor.Shape) *tensor.RawTensor {
		w := tensor.Randn(shape, rng)
		// Keep activations in a tame range through 2 layers.
		data := w.AsFloat32()
		for i := range data {
			data[i] *= 0.1
		}
		return w
	}

	c.Tensors["shared.weight"] = small(tensor.Shape{cfg.VocabSize, cfg.DModel})

	addStack := func(prefix string, layers int, isDecoder bool) {
		for i := 0; i < layers; i++ {
			bp := fmt.Sprintf("%s.block.%d", prefix, i)
			for _, p := range []string{"q", "k", "v"} {
				c.Tensors[bp+".layer.0.SelfAttention."+p+".weight"] = small(tensor.Shape{cfg.InnerDim(), cfg.DModel})
			}
			c.Tensors[bp+".layer.0.SelfAttention.o.weight"] = small(tensor.Shape{cfg.DModel, cfg.InnerDim()})
			c.Tensors[bp+".layer.0.layer_norm.weight"] = tensor.Ones(tensor.Shape{cfg.DModel})

			ffnLayer := 1
			if isDecoder {
				for _, p := range []string{"q", "k", "v"} {
					c.Tensors[bp+".layer.1.EncDecAttention."+p+".weight"] = small(tensor.Shape{cfg.InnerDim(), cfg.DModel})
				}
				c.Tensors[bp+".layer.1.EncDecAttention.o.weight"] = small(tensor.Shape{cfg.DModel, cfg.InnerDim()})
				c.Tensors[bp+".layer.1.layer_norm.weight"] = tensor.Ones(tensor.Shape{cfg.DModel})
				ffnLayer = 2
			}

			fp := fmt.Sprintf("%s.layer.%d", bp, ffnLayer)
			c.Tensors[fp+".DenseReluDense.wi.weight"] = small(tensor.Shape{cfg.DFF, cfg.DModel})
			c.Tensors[fp+".DenseReluDense.wo.weight"] = small(tensor.Shape{cfg.DModel, cfg.DFF})
			c.Tensors[fp+".layer_norm.weight"] = tensor.Ones(tensor.Shape{cfg.DModel})
		}
		c.Tensors[prefix+".block.0.layer.0.SelfAttention.relative_attention_bias.weight"] =
			small(tensor.Shape{cfg.RelativeAttentionNumBuckets, cfg.NumHeads})
		c.Tensors[prefix+".final_layer_norm.weight"] = tensor.Ones(tensor.Shape{cfg.DModel})
	}

	addStack("encoder", cfg.NumLayers, false)
	addStack("decoder", cfg.DecoderLayers(), true)

	return c
}

// LoadTensor implements the weight source consumed by t5.LoadModel.
func (c *Checkpoint) LoadTensor(name string) (*tensor.RawTensor, error) {
	t, ok := c.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return t, nil
}

// LoadTinyModel loads a model over TinyConfig weights.
func LoadTinyModel() (*t5.Model, error) {
	cfg := TinyConfig()
	return t5.LoadModel(cfg, NewCheckpoint(cfg))
}

// UnigramTokenizerJSON is a minimal valid fast-tokenizer file.
const UnigramTokenizerJSON = `{
	"model": {
		"type": "Unigram",
		"vocab": [["<pad>", 0.0], ["</s>", 0.0], ["<unk>", 0.0], ["▁the", -2.5]]
	}
}`

// WriteSnapshot materializes a HuggingFace-style model snapshot in dir:
// config.json, a real model.safetensors holding the checkpoint weights,
// and the tokenizer files.
func WriteSnapshot(dir string, cfg t5.Config, ckpt *Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfgData, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	files := map[string][]byte{
		"config.json":           cfgData,
		"spiece.model":          []byte("sentencepiece-model-payload"),
		"tokenizer_config.json": []byte(`{"model_max_length": 512}`),
		"tokenizer.json":        []byte(UnigramTokenizerJSON),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}

	return writeSafeTensors(filepath.Join(dir, "model.safetensors"), ckpt.Tensors)
}

// writeSafeTensors serializes float32 tensors in the safetensors layout:
// 8-byte little-endian header size, JSON header, then the data blob.
func writeSafeTensors(path string, tensors map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	type entry struct {
		DType       string  `json:"dtype"`
		Shape       []int   `json:"shape"`
		DataOffsets [2]int64 `json:"data_offsets"`
	}

	header := make(map[string]entry, len(names))
	var blob []byte
	for _, name := range names {
		t := tensors[name]
		start := int64(len(blob))
		blob = append(blob, t.Data()...)
		header[name] = entry{
			DType:       "F32",
			Shape:       t.Shape(),
			DataOffsets: [2]int64{start, int64(len(blob))},
		}
	}

	headerData, err := json.Marshal(header)
	if err != nil {
		return err
	}

	out := make([]byte, 0, 8+len(headerData)+len(blob))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(headerData)))
	out = append(out, headerData...)
	out = append(out, blob...)
	return os.WriteFile(path, out, 0o644)
}
