package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// KVCache stores key/value projections of already-processed positions
// so autoregressive decoding only projects the newest token instead of
// recomputing the whole prefix each step.
//
// Each decoder layer's self-attention owns one cache. Entries are
// [batch, heads, seq, headDim] slabs appended along the sequence axis.
type KVCache struct {
	keys   []*tensor.Tensor[float32]
	values []*tensor.Tensor[float32]
	length int
	maxLen int
}

// NewKVCache creates an empty cache bounded by maxSeqLen positions.
func NewKVCache(maxSeqLen int) *KVCache {
	if maxSeqLen <= 0 {
		panic(fmt.Sprintf("KVCache: maxSeqLen must be positive, got %d", maxSeqLen))
	}
	return &KVCache{maxLen: maxSeqLen}
}

// Update appends new key/value tensors [batch, heads, seq, headDim].
// Panics if the cache would exceed its bound.
func (c *KVCache) Update(key, value *tensor.Tensor[float32]) {
	seqLen := key.Shape()[2]
	if c.length+seqLen > c.maxLen {
		panic(fmt.Sprintf("KVCache: overflow (have %d + new %d > max %d)", c.length, seqLen, c.maxLen))
	}
	c.keys = append(c.keys, key)
	c.values = append(c.values, value)
	c.length += seqLen
}

// Get returns the full cached keys and values,
// [batch, heads, length, headDim] each. Panics on an empty cache.
func (c *KVCache) Get() (keys, values *tensor.Tensor[float32]) {
	if c.length == 0 {
		panic("KVCache: cannot read an empty cache")
	}
	if len(c.keys) == 1 {
		return c.keys[0], c.values[0]
	}
	return tensor.Cat(c.keys, 2), tensor.Cat(c.values, 2)
}

// Reset empties the cache for a new sequence.
func (c *KVCache) Reset() {
	c.keys = c.keys[:0]
	c.values = c.values[:0]
	c.length = 0
}

// Len returns the number of cached positions.
func (c *KVCache) Len() int {
	return c.length
}
