// Package nn implements the attention-based sequence transformation
// stack: scaled dot-product attention, multi-head attention, the
// residual transformer block, sinusoidal positional encoding, and the
// encoder/decoder towers composed into a sequence-to-sequence model.
//
// Shape contracts are enforced at every boundary: activations are
// [batch, seq, dim], attention runs internally over
// [batch, heads, seq, headDim], and any mismatch panics immediately
// with the offending shapes.
package nn

import "github.com/loom-ml/loom/internal/tensor"

// Module is the single capability shared by every stack element: map
// one activation tensor to another and expose trainable parameters.
//
// Layers that need a mask or encoder memory (attention, blocks) add
// those as explicit arguments on their concrete types; there is no
// inheritance hierarchy, only this one polymorphic operation.
type Module interface {
	Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32]
	Parameters() []*Parameter
}

// Mode selects between training and evaluation behavior. It is a small
// configuration object shared by reference with every Dropout in a
// model, so flipping the model between modes is one field write instead
// of hidden per-module state.
//
// Only dropout consults the mode: in evaluation it is the identity, in
// training it samples a fresh random mask per forward call. Every other
// operation in the stack is deterministic in both modes.
type Mode struct {
	training bool
}

// NewMode returns a Mode in evaluation state.
func NewMode() *Mode {
	return &Mode{}
}

// Train switches to training behavior (dropout active).
func (m *Mode) Train() {
	m.training = true
}

// Eval switches to evaluation behavior (dropout disabled).
func (m *Mode) Eval() {
	m.training = false
}

// Training reports whether training behavior is active.
func (m *Mode) Training() bool {
	return m.training
}
