package nn

import "github.com/loom-ml/loom/internal/tensor"

// TransformerBlock is one encoder layer: self-attention and a
// position-wise feed-forward network, each wrapped in dropout, a
// residual connection and its own LayerNorm (post-norm):
//
//	x = norm1(x + dropout(SelfAttention(x)))
//	x = norm2(x + dropout(FFN(x)))
//
// The residual highway keeps gradients flowing through depth; the two
// independent norms keep the activation scale stable however many
// blocks are stacked. The two sub-layer outputs have different
// distributions, which is why the norms are not shared.
type TransformerBlock struct {
	attention *MultiHeadAttention
	ffn       *FFN
	norm1     *LayerNorm
	norm2     *LayerNorm
	attnDrop  *Dropout
	ffnDrop   *Dropout
}

// NewTransformerBlock creates a block with the given dimensions.
// featureDim must be divisible by numHeads.
func NewTransformerBlock(featureDim, numHeads, ffnDim int, dropout float32, normEps float32, mode *Mode) *TransformerBlock {
	return &TransformerBlock{
		attention: NewMultiHeadAttention(featureDim, numHeads),
		ffn:       NewFFN(featureDim, ffnDim),
		norm1:     NewLayerNorm(featureDim, normEps),
		norm2:     NewLayerNorm(featureDim, normEps),
		attnDrop:  NewDropout(dropout, mode),
		ffnDrop:   NewDropout(dropout, mode),
	}
}

// Forward applies the block to x [batch, seq, dim]. mask may be nil or
// broadcastable to [batch, heads, seq, seq]. Output shape equals input
// shape.
func (t *TransformerBlock) Forward(x, mask *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	attnOut := t.attention.Forward(x, x, x, mask)
	x = t.norm1.Forward(x.Add(t.attnDrop.Forward(attnOut)))

	ffnOut := t.ffn.Forward(x)
	return t.norm2.Forward(x.Add(t.ffnDrop.Forward(ffnOut)))
}

// Attention exposes the block's attention layer for diagnostics.
func (t *TransformerBlock) Attention() *MultiHeadAttention {
	return t.attention
}

// Parameters returns all trainable parameters of the block.
func (t *TransformerBlock) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 16)
	params = append(params, t.attention.Parameters()...)
	params = append(params, t.norm1.Parameters()...)
	params = append(params, t.ffn.Parameters()...)
	params = append(params, t.norm2.Parameters()...)
	return params
}

// StateDict returns the block's parameters under attn/norm1/ffn/norm2.
func (t *TransformerBlock) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("attn", t.attention.StateDict())
	sd.merge("norm1", t.norm1.StateDict())
	sd.merge("ffn", t.ffn.StateDict())
	sd.merge("norm2", t.norm2.StateDict())
	return sd
}

// LoadStateDict restores the block's parameters.
func (t *TransformerBlock) LoadStateDict(sd StateDict) error {
	for _, c := range []struct {
		prefix string
		child  StateDicter
	}{
		{"attn", t.attention}, {"norm1", t.norm1}, {"ffn", t.ffn}, {"norm2", t.norm2},
	} {
		if err := loadChild(sd, c.prefix, c.child); err != nil {
			return err
		}
	}
	return nil
}
