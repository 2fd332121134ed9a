package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Linear is a fully connected layer computing y = x @ W.T + b.
//
// Weight shape is [outFeatures, inFeatures], bias [outFeatures].
// Weights use Xavier initialization, biases start at zero.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a Linear layer mapping inFeatures to outFeatures.
func NewLinear(inFeatures, outFeatures int) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: feature counts must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures})),
		bias:        NewParameter("bias", tensor.Zeros[float32](tensor.Shape{outFeatures})),
	}
}

// Forward applies the affine transform.
//
// Input must be [batch, inFeatures]; callers with [batch, seq, dim]
// activations flatten the leading axes first. Output is
// [batch, outFeatures].
func (l *Linear) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2-D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected %d input features, got %d", l.inFeatures, shape[1]))
	}

	out := x.MatMul(l.weight.Tensor().Transpose())
	return out.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// InFeatures returns the input width.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns the layer's tensors keyed by parameter name.
func (l *Linear) StateDict() StateDict {
	return StateDict{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}

// LoadStateDict copies matching entries of sd into the layer.
func (l *Linear) LoadStateDict(sd StateDict) error {
	if err := loadInto(sd, "weight", l.weight.Tensor()); err != nil {
		return err
	}
	return loadInto(sd, "bias", l.bias.Tensor())
}
