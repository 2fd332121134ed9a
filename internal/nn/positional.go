package nn

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// PositionalEncoding holds the fixed sinusoidal position table from
// "Attention is All You Need":
//
//	pe[pos, 2i]   = sin(pos / 10000^(2i/dim))
//	pe[pos, 2i+1] = cos(pos / 10000^(2i/dim))
//
// Attention by itself is permutation-equivariant, so order has to be
// injected explicitly. Sinusoids at geometrically spaced frequencies
// give every position a unique fingerprint, and any fixed offset is a
// linear transform of the original encoding, which is what lets
// relative-position behavior generalize up to maxLen.
//
// The table is computed once at construction and never updated by
// training; it is deliberately not a Parameter.
type PositionalEncoding struct {
	table  *tensor.Tensor[float32] // [maxLen, dim], immutable
	maxLen int
	dim    int
}

// NewPositionalEncoding precomputes the encoding table for sequences up
// to maxLen positions of width dim.
func NewPositionalEncoding(dim, maxLen int) *PositionalEncoding {
	if dim <= 0 || dim%2 != 0 {
		panic(fmt.Sprintf("PositionalEncoding: dim must be positive and even, got %d", dim))
	}
	if maxLen <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: maxLen must be positive, got %d", maxLen))
	}

	table := tensor.Zeros[float32](tensor.Shape{maxLen, dim})
	data := table.Data()
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dim/2; i++ {
			angle := float64(pos) / math.Pow(10000, float64(2*i)/float64(dim))
			data[pos*dim+2*i] = float32(math.Sin(angle))
			data[pos*dim+2*i+1] = float32(math.Cos(angle))
		}
	}
	return &PositionalEncoding{table: table, maxLen: maxLen, dim: dim}
}

// Forward adds the positional signal to activations
// [batch, seq, dim], broadcasting the table over the batch axis.
// Panics when the sequence is longer than the precomputed table.
func (p *PositionalEncoding) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != p.dim {
		panic(fmt.Sprintf("PositionalEncoding.Forward: expected [batch, seq, %d], got shape %v", p.dim, shape))
	}
	return x.Add(p.Table(0, shape[1]))
}

// Table returns encodings for positions [start, start+length) shaped
// [1, length, dim] for broadcasting. Generation uses a non-zero start
// to encode a single new token at its absolute position.
func (p *PositionalEncoding) Table(start, length int) *tensor.Tensor[float32] {
	if start < 0 || length <= 0 || start+length > p.maxLen {
		panic(fmt.Sprintf("PositionalEncoding: positions [%d, %d) exceed maxLen %d", start, start+length, p.maxLen))
	}
	return p.table.Narrow(0, start, length).Reshape(1, length, p.dim)
}

// MaxLen returns the largest supported sequence length.
func (p *PositionalEncoding) MaxLen() int {
	return p.maxLen
}

// Parameters returns nil: the table is fixed state, not a gradient
// target, and must stay invisible to the optimizer.
func (p *PositionalEncoding) Parameters() []*Parameter {
	return nil
}
