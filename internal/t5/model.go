package t5

import (
	"fmt"

	"github.com/born-ml/gramconv/internal/loader"
	"github.com/born-ml/gramconv/internal/tensor"
)

// attention holds one attention module's projection weights. Linear
// weights are stored pre-transposed to (in, out) so traced MatMuls apply
// them directly.
type attention struct {
	q, k, v, o *tensor.RawTensor
}

// blockWeights holds one encoder or decoder block. CrossAttn and its
// norm are nil for encoder blocks.
type blockWeights struct {
	selfNorm *tensor.RawTensor
	selfAttn attention

	crossNorm *tensor.RawTensor
	crossAttn *attention

	ffnNorm *tensor.RawTensor
	wi, wo  *tensor.RawTensor
}

// stackWeights is a full encoder or decoder stack. relBias is the
// relative position bias table of block 0, shared by all blocks.
type stackWeights struct {
	blocks    []blockWeights
	relBias   *tensor.RawTensor // (num_buckets, num_heads)
	finalNorm *tensor.RawTensor
}

// Model holds the loaded T5 weights in float32, ready for tracing.
type Model struct {
	Config Config

	shared  *tensor.RawTensor // (vocab, d_model)
	lmHead  *tensor.RawTensor // (d_model, vocab); the transposed embedding when tied
	encoder stackWeights
	decoder stackWeights
}

// weightSource narrows loader.Checkpoint to what loading needs.
type weightSource interface {
	LoadTensor(name string) (*tensor.RawTensor, error)
}

var _ weightSource = (loader.Checkpoint)(nil)

// LoadModel reads all weights the traces reference from a checkpoint.
// Every linear weight is transposed once here instead of per trace.
func LoadModel(cfg Config, ckpt weightSource) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model{Config: cfg}

	var err error
	if m.shared, err = ckpt.LoadTensor("shared.weight"); err != nil {
		return nil, fmt.Errorf("shared embedding: %w", err)
	}
	if want := (tensor.Shape{cfg.VocabSize, cfg.DModel}); !m.shared.Shape().Equal(want) {
		return nil, fmt.Errorf("shared embedding shape %v, config says %v", m.shared.Shape(), want)
	}

	if cfg.Tied() {
		if m.lmHead, err = tensor.TransposeAxes(m.shared, 1, 0); err != nil {
			return nil, fmt.Errorf("lm head: %w", err)
		}
	} else {
		if m.lmHead, err = loadLinear(ckpt, "lm_head.weight"); err != nil {
			return nil, fmt.Errorf("lm head: %w", err)
		}
	}

	if m.encoder, err = loadStack(ckpt, "encoder", cfg.NumLayers, false); err != nil {
		return nil, err
	}
	if m.decoder, err = loadStack(ckpt, "decoder", cfg.DecoderLayers(), true); err != nil {
		return nil, err
	}

	return m, nil
}

func loadStack(ckpt weightSource, prefix string, layers int, isDecoder bool) (stackWeights, error) {
	s := stackWeights{blocks: make([]blockWeights, layers)}

	var err error
	for i := range s.blocks {
		if s.blocks[i], err = loadBlock(ckpt, fmt.Sprintf("%s.block.%d", prefix, i), isDecoder); err != nil {
			return s, fmt.Errorf("%s block %d: %w", prefix, i, err)
		}
	}

	// Only block 0 carries the relative position bias table; all blocks
	// share it at execution time.
	biasName := fmt.Sprintf("%s.block.0.layer.0.SelfAttention.relative_attention_bias.weight", prefix)
	if s.relBias, err = ckpt.LoadTensor(biasName); err != nil {
		return s, fmt.Errorf("%s: %w", prefix, err)
	}

	if s.finalNorm, err = ckpt.LoadTensor(prefix + ".final_layer_norm.weight"); err != nil {
		return s, fmt.Errorf("%s: %w", prefix, err)
	}
	return s, nil
}

func loadBlock(ckpt weightSource, prefix string, isDecoder bool) (blockWeights, error) {
	var b blockWeights
	var err error

	if b.selfAttn, err = loadAttention(ckpt, prefix+".layer.0.SelfAttention"); err != nil {
		return b, err
	}
	if b.selfNorm, err = ckpt.LoadTensor(prefix + ".layer.0.layer_norm.weight"); err != nil {
		return b, err
	}

	ffnLayer := 1
	if isDecoder {
		cross, err := loadAttention(ckpt, prefix+".layer.1.EncDecAttention")
		if err != nil {
			return b, err
		}
		b.crossAttn = &cross
		if b.crossNorm, err = ckpt.LoadTensor(prefix + ".layer.1.layer_norm.weight"); err != nil {
			return b, err
		}
		ffnLayer = 2
	}

	ffn := fmt.Sprintf("%s.layer.%d", prefix, ffnLayer)
	if b.wi, err = loadLinear(ckpt, ffn+".DenseReluDense.wi.weight"); err != nil {
		return b, err
	}
	if b.wo, err = loadLinear(ckpt, ffn+".DenseReluDense.wo.weight"); err != nil {
		return b, err
	}
	if b.ffnNorm, err = ckpt.LoadTensor(ffn + ".layer_norm.weight"); err != nil {
		return b, err
	}
	return b, nil
}

func loadAttention(ckpt weightSource, prefix string) (attention, error) {
	var a attention
	var err error
	if a.q, err = loadLinear(ckpt, prefix+".q.weight"); err != nil {
		return a, err
	}
	if a.k, err = loadLinear(ckpt, prefix+".k.weight"); err != nil {
		return a, err
	}
	if a.v, err = loadLinear(ckpt, prefix+".v.weight"); err != nil {
		return a, err
	}
	if a.o, err = loadLinear(ckpt, prefix+".o.weight"); err != nil {
		return a, err
	}
	return a, nil
}

// loadLinear loads a (out, in) linear weight and transposes it to
// (in, out).
func loadLinear(ckpt weightSource, name string) (*tensor.RawTensor, error) {
	w, err := ckpt.LoadTensor(name)
	if err != nil {
		return nil, err
	}
	if len(w.Shape()) != 2 {
		return nil, fmt.Errorf("%s: expected matrix, got shape %v", name, w.Shape())
	}
	t, err := tensor.TransposeAxes(w, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}
