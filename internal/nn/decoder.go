package nn

import (
	"fmt"
	"math"
	"strconv"

	"github.com/loom-ml/loom/internal/tensor"
)

// DecoderBlock is one decoder layer. It differs from the encoder block
// in two ways that are both load-bearing:
//
//   - self-attention runs under a causal mask, so position j only sees
//     positions <= j;
//   - a second, cross-attention stage queries the encoder's memory
//     tensor. Without it the decoder degenerates into a language model
//     that cannot read the source sequence at all, so cross-attention
//     is not optional here.
//
// Each of the three sub-layers has its own dropout, residual connection
// and LayerNorm.
type DecoderBlock struct {
	selfAttention  *MultiHeadAttention
	crossAttention *MultiHeadAttention
	ffn            *FFN
	norm1          *LayerNorm
	norm2          *LayerNorm
	norm3          *LayerNorm
	selfDrop       *Dropout
	crossDrop      *Dropout
	ffnDrop        *Dropout
}

// NewDecoderBlock creates a decoder layer with the given dimensions.
func NewDecoderBlock(featureDim, numHeads, ffnDim int, dropout, normEps float32, mode *Mode) *DecoderBlock {
	return &DecoderBlock{
		selfAttention:  NewMultiHeadAttention(featureDim, numHeads),
		crossAttention: NewMultiHeadAttention(featureDim, numHeads),
		ffn:            NewFFN(featureDim, ffnDim),
		norm1:          NewLayerNorm(featureDim, normEps),
		norm2:          NewLayerNorm(featureDim, normEps),
		norm3:          NewLayerNorm(featureDim, normEps),
		selfDrop:       NewDropout(dropout, mode),
		crossDrop:      NewDropout(dropout, mode),
		ffnDrop:        NewDropout(dropout, mode),
	}
}

// Forward applies the layer.
//
// x is the decoder activation [batch, tgtLen, dim], memory the encoder
// output [batch, srcLen, dim], mask the causal mask for x's
// self-attention. Cross-attention takes queries from the
// (already masked) decoder state and keys/values from memory, so it
// needs no mask of its own.
func (d *DecoderBlock) Forward(x, memory, mask *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	selfOut := d.selfAttention.Forward(x, x, x, mask)
	x = d.norm1.Forward(x.Add(d.selfDrop.Forward(selfOut)))

	crossOut := d.crossAttention.Forward(x, memory, memory, nil)
	x = d.norm2.Forward(x.Add(d.crossDrop.Forward(crossOut)))

	ffnOut := d.ffn.Forward(x)
	return d.norm3.Forward(x.Add(d.ffnDrop.Forward(ffnOut)))
}

// ForwardWithCache is Forward for one new token during generation.
// Self-attention reads and extends the layer's KV cache instead of
// recomputing the prefix; causality holds because the cache only
// contains past positions. Cross-attention still reads the full
// (fixed) encoder memory.
func (d *DecoderBlock) ForwardWithCache(x, memory *tensor.Tensor[float32], cache *KVCache) *tensor.Tensor[float32] {
	selfOut := d.selfAttention.ForwardWithCache(x, cache)
	x = d.norm1.Forward(x.Add(d.selfDrop.Forward(selfOut)))

	crossOut := d.crossAttention.Forward(x, memory, memory, nil)
	x = d.norm2.Forward(x.Add(d.crossDrop.Forward(crossOut)))

	ffnOut := d.ffn.Forward(x)
	return d.norm3.Forward(x.Add(d.ffnDrop.Forward(ffnOut)))
}

// SelfAttention exposes the masked self-attention layer.
func (d *DecoderBlock) SelfAttention() *MultiHeadAttention {
	return d.selfAttention
}

// CrossAttention exposes the encoder-memory attention layer.
func (d *DecoderBlock) CrossAttention() *MultiHeadAttention {
	return d.crossAttention
}

// Parameters returns all trainable parameters of the layer.
func (d *DecoderBlock) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 24)
	params = append(params, d.selfAttention.Parameters()...)
	params = append(params, d.norm1.Parameters()...)
	params = append(params, d.crossAttention.Parameters()...)
	params = append(params, d.norm2.Parameters()...)
	params = append(params, d.ffn.Parameters()...)
	params = append(params, d.norm3.Parameters()...)
	return params
}

// StateDict returns the layer's parameters.
func (d *DecoderBlock) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("self_attn", d.selfAttention.StateDict())
	sd.merge("cross_attn", d.crossAttention.StateDict())
	sd.merge("ffn", d.ffn.StateDict())
	sd.merge("norm1", d.norm1.StateDict())
	sd.merge("norm2", d.norm2.StateDict())
	sd.merge("norm3", d.norm3.StateDict())
	return sd
}

// LoadStateDict restores the layer's parameters.
func (d *DecoderBlock) LoadStateDict(sd StateDict) error {
	for _, c := range []struct {
		prefix string
		child  StateDicter
	}{
		{"self_attn", d.selfAttention}, {"cross_attn", d.crossAttention}, {"ffn", d.ffn},
		{"norm1", d.norm1}, {"norm2", d.norm2}, {"norm3", d.norm3},
	} {
		if err := loadChild(sd, c.prefix, c.child); err != nil {
			return err
		}
	}
	return nil
}

// Decoder is the autoregressive tower: the same embed/positional/stack
// structure as the encoder, but causally masked, cross-attending to
// encoder memory, and finishing with a projection to vocabulary logits.
type Decoder struct {
	embedding *Embedding
	positions *PositionalEncoding
	layers    []*DecoderBlock
	output    *Linear
	drop      *Dropout
	vocabSize int
	scale     float32
}

// NewDecoder builds a decoder from the shared model configuration.
func NewDecoder(cfg Config, mode *Mode) *Decoder {
	cfg = cfg.withDefaults()
	cfg.validate("Decoder")
	layers := make([]*DecoderBlock, cfg.NumLayers)
	for i := range layers {
		layers[i] = NewDecoderBlock(cfg.FeatureDim, cfg.NumHeads, cfg.FFNDim, cfg.Dropout, cfg.NormEps, mode)
	}
	return &Decoder{
		embedding: NewEmbedding(cfg.VocabSize, cfg.FeatureDim),
		positions: NewPositionalEncoding(cfg.FeatureDim, cfg.MaxLen),
		layers:    layers,
		output:    NewLinear(cfg.FeatureDim, cfg.VocabSize),
		drop:      NewDropout(cfg.Dropout, mode),
		vocabSize: cfg.VocabSize,
		scale:     float32(math.Sqrt(float64(cfg.FeatureDim))),
	}
}

// Forward decodes target tokens [batch, tgtLen] against encoder memory
// [batch, srcLen, dim] and returns vocabulary logits
// [batch, tgtLen, vocabSize].
//
// mask may be nil, in which case the causal mask for the current target
// length is built fresh; pass a custom mask only to tighten the
// constraint further, never to loosen it.
func (d *Decoder) Forward(tokens *tensor.Tensor[int32], memory, mask *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	if tokens.Dims() != 2 {
		panic(fmt.Sprintf("Decoder.Forward: expected token indices [batch, seq], got shape %v", tokens.Shape()))
	}
	if memory.Dims() != 3 {
		panic(fmt.Sprintf("Decoder.Forward: expected memory [batch, srcLen, dim], got shape %v", memory.Shape()))
	}

	batch, seq := tokens.Shape()[0], tokens.Shape()[1]
	if mask == nil {
		mask = CausalMask(seq)
	}

	x := d.embedding.Forward(tokens).MulScalar(d.scale)
	x = d.positions.Forward(x)
	x = d.drop.Forward(x)

	for _, layer := range d.layers {
		x = layer.Forward(x, memory, mask)
	}

	logits := d.output.Forward(x.Reshape(batch*seq, x.Shape()[2]))
	return logits.Reshape(batch, seq, d.vocabSize)
}

// ForwardWithCache decodes a single new token [batch, 1] at absolute
// position pos using one KV cache per layer. Equivalent to running
// Forward on the whole prefix and keeping the last position, at a
// fraction of the cost.
func (d *Decoder) ForwardWithCache(
	token *tensor.Tensor[int32],
	memory *tensor.Tensor[float32],
	caches []*KVCache,
	pos int,
) *tensor.Tensor[float32] {
	if token.Dims() != 2 || token.Shape()[1] != 1 {
		panic(fmt.Sprintf("Decoder.ForwardWithCache: expected a single token [batch, 1], got shape %v", token.Shape()))
	}
	if len(caches) != len(d.layers) {
		panic(fmt.Sprintf("Decoder.ForwardWithCache: got %d caches for %d layers", len(caches), len(d.layers)))
	}

	batch := token.Shape()[0]
	x := d.embedding.Forward(token).MulScalar(d.scale)
	x = x.Add(d.positions.Table(pos, 1))
	x = d.drop.Forward(x)

	for i, layer := range d.layers {
		x = layer.ForwardWithCache(x, memory, caches[i])
	}

	logits := d.output.Forward(x.Reshape(batch, x.Shape()[2]))
	return logits.Reshape(batch, 1, d.vocabSize)
}

// NewCaches allocates one KV cache per layer, each bounded by maxLen.
func (d *Decoder) NewCaches(maxLen int) []*KVCache {
	caches := make([]*KVCache, len(d.layers))
	for i := range caches {
		caches[i] = NewKVCache(maxLen)
	}
	return caches
}

// NumLayers returns the depth of the tower.
func (d *Decoder) NumLayers() int {
	return len(d.layers)
}

// VocabSize returns the size of the output vocabulary.
func (d *Decoder) VocabSize() int {
	return d.vocabSize
}

// Positions exposes the decoder's positional table.
func (d *Decoder) Positions() *PositionalEncoding {
	return d.positions
}

// Layers exposes the decoder blocks for diagnostics.
func (d *Decoder) Layers() []*DecoderBlock {
	return d.layers
}

// Parameters returns every trainable parameter of the tower.
func (d *Decoder) Parameters() []*Parameter {
	params := d.embedding.Parameters()
	for _, layer := range d.layers {
		params = append(params, layer.Parameters()...)
	}
	return append(params, d.output.Parameters()...)
}

// StateDict returns the decoder's parameters.
func (d *Decoder) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("embed", d.embedding.StateDict())
	for i, layer := range d.layers {
		sd.merge("layers."+strconv.Itoa(i), layer.StateDict())
	}
	sd.merge("output", d.output.StateDict())
	return sd
}

// LoadStateDict restores the decoder's parameters.
func (d *Decoder) LoadStateDict(sd StateDict) error {
	if err := loadChild(sd, "embed", d.embedding); err != nil {
		return err
	}
	for i, layer := range d.layers {
		if err := loadChild(sd, "layers."+strconv.Itoa(i), layer); err != nil {
			return err
		}
	}
	return loadChild(sd, "output", d.output)
}
