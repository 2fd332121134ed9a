package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// MultiHeadAttention projects its inputs into numHeads parallel
// attention subspaces, runs scaled dot-product attention per head as
// one batched operation, and recombines the heads through an output
// projection.
//
// All four projections map featureDim -> featureDim; each head attends
// over a disjoint headDim = featureDim / numHeads slice of the
// representation. For self-attention pass the same tensor as query, key
// and value; for cross-attention the query comes from one sequence and
// key/value from another.
type MultiHeadAttention struct {
	wq         *Linear
	wk         *Linear
	wv         *Linear
	wo         *Linear
	numHeads   int
	headDim    int
	featureDim int
}

// NewMultiHeadAttention creates a multi-head attention layer.
// featureDim must be divisible by numHeads.
func NewMultiHeadAttention(featureDim, numHeads int) *MultiHeadAttention {
	if numHeads <= 0 {
		panic(fmt.Sprintf("MultiHeadAttention: numHeads must be positive, got %d", numHeads))
	}
	if featureDim%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: featureDim (%d) must be divisible by numHeads (%d)",
			featureDim, numHeads))
	}
	return &MultiHeadAttention{
		wq:         NewLinear(featureDim, featureDim),
		wk:         NewLinear(featureDim, featureDim),
		wv:         NewLinear(featureDim, featureDim),
		wo:         NewLinear(featureDim, featureDim),
		numHeads:   numHeads,
		headDim:    featureDim / numHeads,
		featureDim: featureDim,
	}
}

// Forward computes multi-head attention.
//
// query is [batch, Lq, featureDim], key and value [batch, Lk,
// featureDim]. mask may be nil or broadcastable to
// [batch, heads, Lq, Lk]; it is shared across heads unchanged.
// Returns [batch, Lq, featureDim].
func (m *MultiHeadAttention) Forward(
	query, key, value *tensor.Tensor[float32],
	mask *tensor.Tensor[float32],
) *tensor.Tensor[float32] {
	out, _ := m.ForwardWithWeights(query, key, value, mask)
	return out
}

// ForwardWithWeights is Forward but also returns the per-head attention
// weights [batch, heads, Lq, Lk]. The weights are diagnostic output;
// nothing downstream consumes them.
func (m *MultiHeadAttention) ForwardWithWeights(
	query, key, value *tensor.Tensor[float32],
	mask *tensor.Tensor[float32],
) (*tensor.Tensor[float32], *tensor.Tensor[float32]) {
	batch := query.Shape()[0]
	seqQ := query.Shape()[1]
	seqK := key.Shape()[1]

	// Project and split the feature axis into heads:
	// [batch, seq, dim] -> [batch, heads, seq, headDim].
	q := m.splitHeads(m.project(query, m.wq), batch, seqQ)
	k := m.splitHeads(m.project(key, m.wk), batch, seqK)
	v := m.splitHeads(m.project(value, m.wv), batch, seqK)

	attnOut, weights := ScaledDotProductAttention(q, k, v, mask, 0)

	// Concatenate heads back along the feature axis and project.
	merged := attnOut.Transpose(0, 2, 1, 3).Reshape(batch*seqQ, m.featureDim)
	out := m.wo.Forward(merged).Reshape(batch, seqQ, m.featureDim)
	return out, weights
}

// ForwardWithCache runs self-attention for a new suffix of the sequence
// using cached key/value projections for everything seen before.
//
// x is typically a single token [batch, 1, featureDim] during
// autoregressive generation. The cache is extended with x's key/value
// projections; the query then attends over the whole cached prefix. No
// mask is needed: the cache only ever contains past positions.
func (m *MultiHeadAttention) ForwardWithCache(
	x *tensor.Tensor[float32],
	cache *KVCache,
) *tensor.Tensor[float32] {
	batch := x.Shape()[0]
	seq := x.Shape()[1]

	q := m.splitHeads(m.project(x, m.wq), batch, seq)
	k := m.splitHeads(m.project(x, m.wk), batch, seq)
	v := m.splitHeads(m.project(x, m.wv), batch, seq)

	cache.Update(k, v)
	cachedK, cachedV := cache.Get()

	attnOut, _ := ScaledDotProductAttention(q, cachedK, cachedV, nil, 0)

	merged := attnOut.Transpose(0, 2, 1, 3).Reshape(batch*seq, m.featureDim)
	return m.wo.Forward(merged).Reshape(batch, seq, m.featureDim)
}

// project applies a linear projection to a [batch, seq, dim] tensor.
func (m *MultiHeadAttention) project(x *tensor.Tensor[float32], l *Linear) *tensor.Tensor[float32] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("MultiHeadAttention: expected [batch, seq, dim] input, got shape %v", shape))
	}
	if shape[2] != m.featureDim {
		panic(fmt.Sprintf("MultiHeadAttention: expected feature dim %d, got shape %v", m.featureDim, shape))
	}
	return l.Forward(x.Reshape(shape[0]*shape[1], m.featureDim))
}

// splitHeads reshapes a projected [batch*seq, dim] tensor to
// [batch, heads, seq, headDim].
func (m *MultiHeadAttention) splitHeads(x *tensor.Tensor[float32], batch, seq int) *tensor.Tensor[float32] {
	return x.Reshape(batch, seq, m.numHeads, m.headDim).Transpose(0, 2, 1, 3)
}

// NumHeads returns the head count.
func (m *MultiHeadAttention) NumHeads() int {
	return m.numHeads
}

// HeadDim returns the per-head feature width.
func (m *MultiHeadAttention) HeadDim() int {
	return m.headDim
}

// Parameters returns all projection weights and biases.
func (m *MultiHeadAttention) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 8)
	params = append(params, m.wq.Parameters()...)
	params = append(params, m.wk.Parameters()...)
	params = append(params, m.wv.Parameters()...)
	params = append(params, m.wo.Parameters()...)
	return params
}

// StateDict returns all projection parameters.
func (m *MultiHeadAttention) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("wq", m.wq.StateDict())
	sd.merge("wk", m.wk.StateDict())
	sd.merge("wv", m.wv.StateDict())
	sd.merge("wo", m.wo.StateDict())
	return sd
}

// LoadStateDict restores all projections.
func (m *MultiHeadAttention) LoadStateDict(sd StateDict) error {
	for _, c := range []struct {
		prefix string
		layer  *Linear
	}{
		{"wq", m.wq}, {"wk", m.wk}, {"wv", m.wv}, {"wo", m.wo},
	} {
		if err := loadChild(sd, c.prefix, c.layer); err != nil {
			return err
		}
	}
	return nil
}
