package nn

import "github.com/loom-ml/loom/internal/tensor"

// ReLU is the rectified linear activation, f(x) = max(0, x).
type ReLU struct{}

// NewReLU creates a ReLU module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies the activation element-wise.
func (r *ReLU) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	return x.ReLU()
}

// Parameters returns nil; ReLU has no trainable state.
func (r *ReLU) Parameters() []*Parameter {
	return nil
}
