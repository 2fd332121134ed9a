package nn

import "github.com/loom-ml/loom/internal/tensor"

// Parameter is a named trainable tensor.
//
// The optimizer consumes parameters through the Parameters() view of a
// model; the gradient slot is filled by whatever differentiation layer
// drives training and is nil until then. Non-trainable state such as
// the positional encoding table is a plain tensor field, never a
// Parameter, so it is excluded from optimizer enumeration by
// construction.
type Parameter struct {
	name   string
	tensor *tensor.Tensor[float32]
	grad   *tensor.Tensor[float32]
}

// NewParameter creates a trainable parameter wrapping t.
func NewParameter(name string, t *tensor.Tensor[float32]) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name, e.g. "weight" or "gamma".
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor[float32] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before any backward pass.
func (p *Parameter) Grad() *tensor.Tensor[float32] {
	return p.grad
}

// SetGrad stores the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor[float32]) {
	p.grad = grad
}

// ZeroGrad clears the gradient ahead of the next accumulation.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
