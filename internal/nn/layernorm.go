package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// LayerNorm normalizes activations along the feature axis:
//
//	y = gamma * (x - mean(x)) / sqrt(var(x) + eps) + beta
//
// Statistics are computed per position over the last dimension, so the
// activation scale stays stable no matter how many blocks are stacked.
type LayerNorm struct {
	gamma   *Parameter // scale [dim]
	beta    *Parameter // shift [dim]
	dim     int
	epsilon float32
}

// NewLayerNorm creates a LayerNorm over a feature axis of size dim.
// Gamma starts at one, beta at zero.
func NewLayerNorm(dim int, epsilon float32) *LayerNorm {
	if dim <= 0 {
		panic(fmt.Sprintf("LayerNorm: dim must be positive, got %d", dim))
	}
	if epsilon <= 0 {
		panic(fmt.Sprintf("LayerNorm: epsilon must be positive, got %g", epsilon))
	}
	return &LayerNorm{
		gamma:   NewParameter("gamma", tensor.Ones[float32](tensor.Shape{dim})),
		beta:    NewParameter("beta", tensor.Zeros[float32](tensor.Shape{dim})),
		dim:     dim,
		epsilon: epsilon,
	}
}

// Forward normalizes x along its last dimension, which must equal dim.
func (l *LayerNorm) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	shape := x.Shape()
	if shape[len(shape)-1] != l.dim {
		panic(fmt.Sprintf("LayerNorm.Forward: expected feature dim %d, got shape %v", l.dim, shape))
	}

	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	inv := variance.AddScalar(l.epsilon).Rsqrt()
	normed := centered.Mul(inv)

	// gamma/beta are [dim]; broadcasting aligns them with the last axis.
	return normed.Mul(l.gamma.Tensor()).Add(l.beta.Tensor())
}

// Parameters returns gamma and beta.
func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{l.gamma, l.beta}
}

// StateDict returns gamma and beta.
func (l *LayerNorm) StateDict() StateDict {
	return StateDict{
		"gamma": l.gamma.Tensor(),
		"beta":  l.beta.Tensor(),
	}
}

// LoadStateDict restores gamma and beta.
func (l *LayerNorm) LoadStateDict(sd StateDict) error {
	if err := loadInto(sd, "gamma", l.gamma.Tensor()); err != nil {
		return err
	}
	return loadInto(sd, "beta", l.beta.Tensor())
}
