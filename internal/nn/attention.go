package nn

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// ScaledDotProductAttention computes
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d) + mask) V
//
// Query is [..., Lq, d], key [..., Lk, d], value [..., Lk, dv]; all
// leading dimensions must match exactly. In the multi-head path the
// leading dimensions are [batch, heads], so every head is computed in
// one batched matrix product rather than a per-head loop.
//
// Scores are divided by sqrt(d) before the softmax: without it the
// pre-softmax variance grows with d, saturating the softmax and killing
// gradient signal. The optional mask is added to the scaled scores;
// forbidden positions carry -inf and end up with exactly zero weight.
// mask may be nil or any shape broadcastable to [..., Lq, Lk].
//
// Returns the attended output [..., Lq, dv] and the attention weights
// [..., Lq, Lk], whose rows are non-negative and sum to 1. The function
// is pure: no state survives the call.
//
// Pass scale = 0 to use the default 1/sqrt(d).
func ScaledDotProductAttention(
	query, key, value *tensor.Tensor[float32],
	mask *tensor.Tensor[float32],
	scale float32,
) (*tensor.Tensor[float32], *tensor.Tensor[float32]) {
	validateAttentionInputs(query, key, value)

	d := query.Shape()[query.Dims()-1]
	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(d)))
	}

	// Transpose the last two axes of key for the batched product.
	perm := make([]int, key.Dims())
	for i := range perm {
		perm[i] = i
	}
	perm[len(perm)-2], perm[len(perm)-1] = perm[len(perm)-1], perm[len(perm)-2]

	scores := query.BatchMatMul(key.Transpose(perm...)).MulScalar(scale)
	if mask != nil {
		scores = scores.Add(mask)
	}

	weights := scores.Softmax(-1)
	return weights.BatchMatMul(value), weights
}

func validateAttentionInputs(query, key, value *tensor.Tensor[float32]) {
	q, k, v := query.Shape(), key.Shape(), value.Shape()
	if len(q) < 2 || len(k) < 2 || len(v) < 2 {
		panic(fmt.Sprintf("ScaledDotProductAttention: operands must be at least 2-D, got q=%v k=%v v=%v", q, k, v))
	}
	if len(q) != len(k) || len(k) != len(v) {
		panic(fmt.Sprintf("ScaledDotProductAttention: rank mismatch, q=%v k=%v v=%v", q, k, v))
	}
	for i := 0; i < len(q)-2; i++ {
		if q[i] != k[i] || k[i] != v[i] {
			panic(fmt.Sprintf("ScaledDotProductAttention: leading dimensions differ, q=%v k=%v v=%v", q, k, v))
		}
	}
	if q[len(q)-1] != k[len(k)-1] {
		panic(fmt.Sprintf("ScaledDotProductAttention: query feature dim %d does not match key feature dim %d (q=%v, k=%v)",
			q[len(q)-1], k[len(k)-1], q, k))
	}
	if k[len(k)-2] != v[len(v)-2] {
		panic(fmt.Sprintf("ScaledDotProductAttention: key length %d does not match value length %d (k=%v, v=%v)",
			k[len(k)-2], v[len(v)-2], k, v))
	}
}

// CausalMask returns the additive mask that restricts position j to
// attend only to positions <= j.
//
// The strictly upper triangle is -inf, everything else 0. Shape is
// [1, 1, seqLen, seqLen] so it broadcasts over batch and heads. The
// mask is ephemeral: decoders rebuild it per call for the current
// target length.
func CausalMask(seqLen int) *tensor.Tensor[float32] {
	if seqLen <= 0 {
		panic(fmt.Sprintf("CausalMask: seqLen must be positive, got %d", seqLen))
	}
	mask := tensor.Zeros[float32](tensor.Shape{1, 1, seqLen, seqLen})
	negInf := float32(math.Inf(-1))
	data := mask.Data()
	for i := 0; i < seqLen; i++ {
		for j := i + 1; j < seqLen; j++ {
			data[i*seqLen+j] = negInf
		}
	}
	return mask
}
