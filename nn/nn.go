// Copyright 2025 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn is the public API for Loom's attention stack: scaled
// dot-product attention, multi-head attention, transformer blocks,
// sinusoidal positional encoding, and the encoder/decoder towers
// composed into a sequence-to-sequence Transformer.
//
// Example:
//
//	model := nn.NewTransformer(nn.TransformerConfig{
//	    SrcVocabSize: 1000, TgtVocabSize: 1000,
//	    FeatureDim: 128, NumHeads: 8, FFNDim: 512,
//	    NumLayers: 2, MaxLen: 256, Dropout: 0.1,
//	})
//	logits := model.Forward(src, tgt) // [batch, tgtLen, vocab]
package nn

import (
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// Module is the capability shared by all stack elements.
type Module = nn.Module

// Parameter is a named trainable tensor.
type Parameter = nn.Parameter

// NewParameter creates a trainable parameter.
func NewParameter(name string, t *tensor.Tensor[float32]) *Parameter {
	return nn.NewParameter(name, t)
}

// Mode switches a model between training and evaluation behavior.
type Mode = nn.Mode

// NewMode returns a Mode in evaluation state.
func NewMode() *Mode {
	return nn.NewMode()
}

// StateDict maps hierarchical parameter names to tensors.
type StateDict = nn.StateDict

// StateDicter is implemented by checkpointable modules.
type StateDicter = nn.StateDicter

// Layers

// Linear is a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a Linear layer with Xavier initialization.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(inFeatures, outFeatures)
}

// Embedding maps token indices to dense vectors.
type Embedding = nn.Embedding

// NewEmbedding creates an embedding table.
func NewEmbedding(numEmbeddings, embeddingDim int) *Embedding {
	return nn.NewEmbedding(numEmbeddings, embeddingDim)
}

// LayerNorm normalizes activations along the feature axis.
type LayerNorm = nn.LayerNorm

// NewLayerNorm creates a LayerNorm layer.
func NewLayerNorm(dim int, epsilon float32) *LayerNorm {
	return nn.NewLayerNorm(dim, epsilon)
}

// Dropout zeroes random elements while training.
type Dropout = nn.Dropout

// NewDropout creates a Dropout layer bound to a shared Mode.
func NewDropout(rate float32, mode *Mode) *Dropout {
	return nn.NewDropout(rate, mode)
}

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// NewReLU creates a ReLU module.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// FFN is the position-wise feed-forward network.
type FFN = nn.FFN

// NewFFN creates a feed-forward network featureDim -> ffnDim -> featureDim.
func NewFFN(featureDim, ffnDim int) *FFN {
	return nn.NewFFN(featureDim, ffnDim)
}

// Attention

// ScaledDotProductAttention computes softmax(QK^T/sqrt(d) + mask) V,
// returning the output and attention weights. Pass scale = 0 for the
// default 1/sqrt(d).
func ScaledDotProductAttention(
	query, key, value *tensor.Tensor[float32],
	mask *tensor.Tensor[float32],
	scale float32,
) (*tensor.Tensor[float32], *tensor.Tensor[float32]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, scale)
}

// CausalMask builds the additive [1, 1, n, n] mask forbidding
// attention to future positions.
func CausalMask(seqLen int) *tensor.Tensor[float32] {
	return nn.CausalMask(seqLen)
}

// MultiHeadAttention runs attention in parallel subspaces.
type MultiHeadAttention = nn.MultiHeadAttention

// NewMultiHeadAttention creates a multi-head attention layer.
func NewMultiHeadAttention(featureDim, numHeads int) *MultiHeadAttention {
	return nn.NewMultiHeadAttention(featureDim, numHeads)
}

// KVCache stores key/value projections for fast generation.
type KVCache = nn.KVCache

// NewKVCache creates an empty cache bounded by maxSeqLen.
func NewKVCache(maxSeqLen int) *KVCache {
	return nn.NewKVCache(maxSeqLen)
}

// Towers

// PositionalEncoding is the fixed sinusoidal position table.
type PositionalEncoding = nn.PositionalEncoding

// NewPositionalEncoding precomputes encodings for maxLen positions.
func NewPositionalEncoding(dim, maxLen int) *PositionalEncoding {
	return nn.NewPositionalEncoding(dim, maxLen)
}

// TransformerBlock is one encoder layer.
type TransformerBlock = nn.TransformerBlock

// NewTransformerBlock creates an encoder layer.
func NewTransformerBlock(featureDim, numHeads, ffnDim int, dropout, normEps float32, mode *Mode) *TransformerBlock {
	return nn.NewTransformerBlock(featureDim, numHeads, ffnDim, dropout, normEps, mode)
}

// DecoderBlock is one decoder layer with masked self-attention and
// cross-attention over encoder memory.
type DecoderBlock = nn.DecoderBlock

// NewDecoderBlock creates a decoder layer.
func NewDecoderBlock(featureDim, numHeads, ffnDim int, dropout, normEps float32, mode *Mode) *DecoderBlock {
	return nn.NewDecoderBlock(featureDim, numHeads, ffnDim, dropout, normEps, mode)
}

// Config describes one encoder or decoder tower.
type Config = nn.Config

// Encoder is the bidirectional tower.
type Encoder = nn.Encoder

// NewEncoder builds an encoder tower.
func NewEncoder(cfg Config, mode *Mode) *Encoder {
	return nn.NewEncoder(cfg, mode)
}

// Decoder is the causally masked, cross-attending tower.
type Decoder = nn.Decoder

// NewDecoder builds a decoder tower.
func NewDecoder(cfg Config, mode *Mode) *Decoder {
	return nn.NewDecoder(cfg, mode)
}

// TransformerConfig configures a sequence-to-sequence model.
type TransformerConfig = nn.TransformerConfig

// Transformer composes one encoder and one decoder.
type Transformer = nn.Transformer

// NewTransformer builds a sequence-to-sequence model in eval mode.
func NewTransformer(cfg TransformerConfig) *Transformer {
	return nn.NewTransformer(cfg)
}
