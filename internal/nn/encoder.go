package nn

import (
	"fmt"
	"math"
	"strconv"

	"github.com/loom-ml/loom/internal/tensor"
)

// Encoder is the bidirectional transformer tower: token embedding,
// positional signal, dropout, then numLayers stacked blocks with no
// mask. Its output is the memory tensor a decoder cross-attends to.
type Encoder struct {
	embedding *Embedding
	positions *PositionalEncoding
	layers    []*TransformerBlock
	drop      *Dropout
	scale     float32 // sqrt(featureDim), applied to embeddings
}

// NewEncoder builds an encoder from the shared model configuration.
func NewEncoder(cfg Config, mode *Mode) *Encoder {
	cfg = cfg.withDefaults()
	cfg.validate("Encoder")
	layers := make([]*TransformerBlock, cfg.NumLayers)
	for i := range layers {
		layers[i] = NewTransformerBlock(cfg.FeatureDim, cfg.NumHeads, cfg.FFNDim, cfg.Dropout, cfg.NormEps, mode)
	}
	return &Encoder{
		embedding: NewEmbedding(cfg.VocabSize, cfg.FeatureDim),
		positions: NewPositionalEncoding(cfg.FeatureDim, cfg.MaxLen),
		layers:    layers,
		drop:      NewDropout(cfg.Dropout, mode),
		scale:     float32(math.Sqrt(float64(cfg.FeatureDim))),
	}
}

// Forward encodes tokens [batch, seq] into the context tensor
// [batch, seq, featureDim].
//
// Embeddings are multiplied by sqrt(featureDim) so their magnitude
// matches the positional signal before the two are summed.
func (e *Encoder) Forward(tokens *tensor.Tensor[int32]) *tensor.Tensor[float32] {
	if tokens.Dims() != 2 {
		panic(fmt.Sprintf("Encoder.Forward: expected token indices [batch, seq], got shape %v", tokens.Shape()))
	}

	x := e.embedding.Forward(tokens).MulScalar(e.scale)
	x = e.positions.Forward(x)
	x = e.drop.Forward(x)

	for _, layer := range e.layers {
		x = layer.Forward(x, nil)
	}
	return x
}

// Positions exposes the encoder's positional table.
func (e *Encoder) Positions() *PositionalEncoding {
	return e.positions
}

// Parameters returns the embedding table and every block's parameters.
// The positional table is excluded: it is not a gradient target.
func (e *Encoder) Parameters() []*Parameter {
	params := e.embedding.Parameters()
	for _, layer := range e.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict returns the encoder's parameters.
func (e *Encoder) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("embed", e.embedding.StateDict())
	for i, layer := range e.layers {
		sd.merge("layers."+strconv.Itoa(i), layer.StateDict())
	}
	return sd
}

// LoadStateDict restores the encoder's parameters.
func (e *Encoder) LoadStateDict(sd StateDict) error {
	if err := loadChild(sd, "embed", e.embedding); err != nil {
		return err
	}
	for i, layer := range e.layers {
		if err := loadChild(sd, "layers."+strconv.Itoa(i), layer); err != nil {
			return err
		}
	}
	return nil
}
