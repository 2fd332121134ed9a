package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Embedding maps token indices to dense vectors via a learnable
// [numEmbed, embedDim] lookup table.
type Embedding struct {
	weight   *Parameter
	numEmbed int
	embedDim int
}

// NewEmbedding creates an embedding table for a vocabulary of
// numEmbeddings entries, initialized from N(0, 1).
func NewEmbedding(numEmbeddings, embeddingDim int) *Embedding {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("Embedding: sizes must be positive, got vocab=%d dim=%d", numEmbeddings, embeddingDim))
	}
	weight := tensor.Randn(tensor.Shape{numEmbeddings, embeddingDim})
	return &Embedding{
		weight:   NewParameter("weight", weight),
		numEmbed: numEmbeddings,
		embedDim: embeddingDim,
	}
}

// Forward looks up the embedding vector for every index.
//
// indices [batch, seq] produce [batch, seq, embedDim]. Panics on any
// index outside [0, numEmbeddings).
func (e *Embedding) Forward(indices *tensor.Tensor[int32]) *tensor.Tensor[float32] {
	return tensor.EmbeddingLookup(e.weight.Tensor(), indices)
}

// NumEmbeddings returns the vocabulary size.
func (e *Embedding) NumEmbeddings() int {
	return e.numEmbed
}

// EmbedDim returns the embedding width.
func (e *Embedding) EmbedDim() int {
	return e.embedDim
}

// Parameters returns the embedding table.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.weight}
}

// StateDict returns the embedding weight.
func (e *Embedding) StateDict() StateDict {
	return StateDict{"weight": e.weight.Tensor()}
}

// LoadStateDict restores the embedding weight.
func (e *Embedding) LoadStateDict(sd StateDict) error {
	return loadInto(sd, "weight", e.weight.Tensor())
}
