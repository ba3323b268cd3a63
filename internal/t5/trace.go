package t5

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/gramconv/internal/onnx"
	"github.com/born-ml/gramconv/internal/tensor"
)

// TraceOptions configures decoder tracing.
type TraceOptions struct {
	// UseCache requests incremental key/value caching. Cached decoding
	// carries state between invocations, which cannot cross a static
	// graph boundary; tracing with it enabled is an error.
	UseCache bool
}

// ErrCacheUnsupported is returned when a trace is requested with
// key/value caching enabled.
var ErrCacheUnsupported = errors.New("t5: key/value caching cannot be traced into a static graph")

// maskValue is the additive score for masked attention positions, large
// enough to zero them after softmax in float32.
const maskValue = -1e9

// tracer walks the model through a GraphBuilder, registering each weight
// as an initializer exactly once.
type tracer struct {
	b   *onnx.GraphBuilder
	cfg Config

	weights map[string]*onnx.Value
}

func newTracer(b *onnx.GraphBuilder, cfg Config) *tracer {
	return &tracer{b: b, cfg: cfg, weights: make(map[string]*onnx.Value)}
}

func (t *tracer) weight(name string, w *tensor.RawTensor) *onnx.Value {
	if v, ok := t.weights[name]; ok {
		return v
	}
	v := t.b.Initializer(name, w)
	t.weights[name] = v
	return v
}

// TraceEncoder records the encoder forward pass: embedding, N blocks of
// relative-position self-attention and ReLU FFN, final RMSNorm. Returns
// the last hidden state (B, L, d_model).
func (m *Model) TraceEncoder(b *onnx.GraphBuilder, inputIDs, attentionMask *onnx.Value) *onnx.Value {
	tr := newTracer(b, m.Config)

	hidden := b.Gather(tr.weight("shared.weight", m.shared), inputIDs, 0)

	// Position bias and padding mask are computed once and shared by
	// every block, the bias table living in block 0.
	qlen := b.DimValue(inputIDs, 1)
	bias := tr.positionBias("encoder.relative_attention_bias.weight", m.encoder.relBias, qlen, qlen, true)
	scoreBias := b.Add(bias, tr.extendedMask(attentionMask))

	for i := range m.encoder.blocks {
		blk := &m.encoder.blocks[i]
		prefix := fmt.Sprintf("encoder.block.%d", i)

		normed := tr.rmsNorm(prefix+".self_norm", blk.selfNorm, hidden)
		hidden = b.Add(hidden, tr.attention(prefix+".self", &blk.selfAttn, normed, normed, scoreBias))

		normed = tr.rmsNorm(prefix+".ffn_norm", blk.ffnNorm, hidden)
		hidden = b.Add(hidden, tr.ffn(prefix, blk, normed))
	}

	return tr.rmsNorm("encoder.final_norm", m.encoder.finalNorm, hidden)
}

// TraceDecoder records the fused decoder + LM head forward pass with
// caching disabled: the full target prefix is recomputed every call.
// Returns logits (B, M, vocab).
func (m *Model) TraceDecoder(b *onnx.GraphBuilder, inputIDs, encoderHiddenStates, encoderAttentionMask *onnx.Value, opts TraceOptions) (*onnx.Value, error) {
	if opts.UseCache {
		return nil, ErrCacheUnsupported
	}

	tr := newTracer(b, m.Config)

	hidden := b.Gather(tr.weight("shared.weight", m.shared), inputIDs, 0)

	// Self-attention scores get the decoder position bias plus the
	// causal mask; both depend only on the runtime prefix length M.
	mlen := b.DimValue(inputIDs, 1)
	selfBias := b.Add(
		tr.positionBias("decoder.relative_attention_bias.weight", m.decoder.relBias, mlen, mlen, false),
		tr.causalMask(mlen),
	)

	// Cross-attention has no position bias, only the encoder padding
	// mask (B, 1, 1, L).
	crossBias := tr.extendedMask(encoderAttentionMask)

	for i := range m.decoder.blocks {
		blk := &m.decoder.blocks[i]
		prefix := fmt.Sprintf("decoder.block.%d", i)

		normed := tr.rmsNorm(prefix+".self_norm", blk.selfNorm, hidden)
		hidden = b.Add(hidden, tr.attention(prefix+".self", &blk.selfAttn, normed, normed, selfBias))

		normed = tr.rmsNorm(prefix+".cross_norm", blk.crossNorm, hidden)
		hidden = b.Add(hidden, tr.attention(prefix+".cross", blk.crossAttn, normed, encoderHiddenStates, crossBias))

		normed = tr.rmsNorm(prefix+".ffn_norm", blk.ffnNorm, hidden)
		hidden = b.Add(hidden, tr.ffn(prefix, blk, normed))
	}

	hidden = tr.rmsNorm("decoder.final_norm", m.decoder.finalNorm, hidden)

	// Tied embeddings rescale the hidden state by d_model^-0.5 before
	// the output projection.
	if m.Config.Tied() {
		hidden = b.Mul(hidden, b.Scalar(float32(1.0/math.Sqrt(float64(m.Config.DModel)))))
	}
	logits := b.MatMul(hidden, tr.weight("lm_head.weight", m.lmHead))

	return logits, nil
}

// rmsNorm is T5's LayerNorm: scale by the reciprocal root mean square of
// the last axis, no mean subtraction, no bias.
func (t *tracer) rmsNorm(name string, w *tensor.RawTensor, x *onnx.Value) *onnx.Value {
	b := t.b
	variance := b.ReduceMean(b.Mul(x, x), []int64{-1}, true)
	normed := b.Div(x, b.Sqrt(b.Add(variance, b.Scalar(t.cfg.LayerNormEpsilon))))
	return b.Mul(normed, t.weight(name, w))
}

// ffn is the DenseReluDense feed-forward: wi, ReLU, wo.
func (t *tracer) ffn(prefix string, blk *blockWeights, x *onnx.Value) *onnx.Value {
	b := t.b
	inner := b.Relu(b.MatMul(x, t.weight(prefix+".ffn_wi", blk.wi)))
	return b.MatMul(inner, t.weight(prefix+".ffn_wo", blk.wo))
}

// attention is a full multi-head attention module. query feeds the Q
// projection, kv feeds K and V (identical for self-attention), and
// scoreBias is added to the raw scores before softmax. T5 attention is
// unscaled: no 1/sqrt(d_k).
func (t *tracer) attention(prefix string, att *attention, query, kv, scoreBias *onnx.Value) *onnx.Value {
	b := t.b

	batch := b.DimValue(query, 0)
	qlen := b.DimValue(query, 1)
	klen := b.DimValue(kv, 1)

	q := t.splitHeads(b.MatMul(query, t.weight(prefix+".q", att.q)), batch, qlen)
	k := t.splitHeads(b.MatMul(kv, t.weight(prefix+".k", att.k)), batch, klen)
	v := t.splitHeads(b.MatMul(kv, t.weight(prefix+".v", att.v)), batch, klen)

	scores := b.MatMul(q, b.Transpose(k, 0, 1, 3, 2)) // (B, H, Lq, Lk)
	scores = b.Add(scores, scoreBias)
	attn := b.Softmax(scores, -1)

	context := b.MatMul(attn, v) // (B, H, Lq, d_kv)
	merged := t.mergeHeads(context, batch, qlen)
	return b.MatMul(merged, t.weight(prefix+".o", att.o))
}

// splitHeads reshapes (B, L, inner) to (B, heads, L, d_kv) with the
// batch and length dims taken from the runtime shape.
func (t *tracer) splitHeads(x, batch, length *onnx.Value) *onnx.Value {
	b := t.b
	shaped := b.DynamicReshape(x, batch, length,
		b.ScalarInt64(int64(t.cfg.NumHeads)), b.ScalarInt64(int64(t.cfg.DKV)))
	return b.Transpose(shaped, 0, 2, 1, 3)
}

// mergeHeads is the inverse: (B, heads, L, d_kv) to (B, L, inner).
func (t *tracer) mergeHeads(x, batch, length *onnx.Value) *onnx.Value {
	b := t.b
	joined := b.Transpose(x, 0, 2, 1, 3)
	return b.DynamicReshape(joined, batch, length, b.ScalarInt64(int64(t.cfg.InnerDim())))
}

// extendedMask turns a (B, L) attention mask of ones and zeros into the
// additive form (B, 1, 1, L): 0 where attended, maskValue where padded.
func (t *tracer) extendedMask(mask *onnx.Value) *onnx.Value {
	b := t.b
	inverted := b.Sub(b.Scalar(1), b.Cast(mask, tensor.Float32))
	return b.Unsqueeze(b.Mul(inverted, b.Scalar(maskValue)), 1, 2)
}

// causalMask builds the additive (1, 1, M, M) lower-triangular mask from
// the runtime prefix length: position i may attend positions j <= i.
func (t *tracer) causalMask(length *onnx.Value) *onnx.Value {
	b := t.b
	positions := b.Range(b.ScalarInt64(0), length, b.ScalarInt64(1))
	rows := b.Unsqueeze(positions, 1) // (M, 1)
	cols := b.Unsqueeze(positions, 0) // (1, M)
	future := b.Less(rows, cols)
	masked := b.Where(future, b.Scalar(maskValue), b.Scalar(0))
	return b.Unsqueeze(masked, 0, 1)
}

// positionBias emits T5's relative position bias as an in-graph
// computation over the runtime query and key lengths, returning
// (1, heads, Lq, Lk). Bucketing follows the reference: bidirectional
// attention splits the buckets between past and future, causal attention
// buckets only the past; near offsets get exact buckets, far offsets a
// logarithmic scale capped at the last bucket.
func (t *tracer) positionBias(name string, table *tensor.RawTensor, qlen, klen *onnx.Value, bidirectional bool) *onnx.Value {
	b := t.b

	context := b.Unsqueeze(b.Range(b.ScalarInt64(0), qlen, b.ScalarInt64(1)), 1) // (Lq, 1)
	memory := b.Unsqueeze(b.Range(b.ScalarInt64(0), klen, b.ScalarInt64(1)), 0)  // (1, Lk)
	relative := b.Sub(memory, context)                                           // (Lq, Lk)

	numBuckets := int64(t.cfg.RelativeAttentionNumBuckets)
	maxDistance := float64(t.cfg.RelativeAttentionMaxDistance)

	var offset, distance *onnx.Value
	if bidirectional {
		numBuckets /= 2
		offset = b.Where(b.Greater(relative, b.ScalarInt64(0)),
			b.ScalarInt64(numBuckets), b.ScalarInt64(0))
		distance = b.Abs(relative)
	} else {
		// Causal: future keys are masked anyway, so only the distance
		// into the past matters.
		distance = b.Neg(b.Min(relative, b.ScalarInt64(0)))
	}

	maxExact := numBuckets / 2
	isSmall := b.Less(distance, b.ScalarInt64(maxExact))

	// Large distances map logarithmically onto the remaining buckets.
	logScale := float32(math.Log(maxDistance / float64(maxExact)))
	ratio := b.Div(b.Cast(distance, tensor.Float32), b.Scalar(float32(maxExact)))
	scaled := b.Mul(b.Div(b.Log(ratio), b.Scalar(logScale)), b.Scalar(float32(numBuckets-maxExact)))
	large := b.Add(b.Cast(scaled, tensor.Int64), b.ScalarInt64(maxExact))
	large = b.Min(large, b.ScalarInt64(numBuckets-1))

	buckets := b.Where(isSmall, distance, large)
	if offset != nil {
		buckets = b.Add(buckets, offset)
	}

	values := b.Gather(t.weight(name, table), buckets, 0) // (Lq, Lk, heads)
	return b.Unsqueeze(b.Transpose(values, 2, 0, 1), 0)   // (1, heads, Lq, Lk)
}
