package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// FFN is the position-wise feed-forward network of a transformer block:
//
//	FFN(x) = Linear2(ReLU(Linear1(x)))
//
// Linear1 expands featureDim to ffnDim (typically 4x), Linear2 projects
// back. The same weights are applied independently at every sequence
// position.
type FFN struct {
	linear1 *Linear
	linear2 *Linear
	act     *ReLU
}

// NewFFN creates a feed-forward network featureDim -> ffnDim -> featureDim.
func NewFFN(featureDim, ffnDim int) *FFN {
	return &FFN{
		linear1: NewLinear(featureDim, ffnDim),
		linear2: NewLinear(ffnDim, featureDim),
		act:     NewReLU(),
	}
}

// Forward applies the network. Accepts [batch, dim] or
// [batch, seq, dim] and preserves the input shape.
func (f *FFN) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	shape := x.Shape()
	switch len(shape) {
	case 2:
		return f.linear2.Forward(f.act.Forward(f.linear1.Forward(x)))
	case 3:
		batch, seq, dim := shape[0], shape[1], shape[2]
		flat := x.Reshape(batch*seq, dim)
		out := f.linear2.Forward(f.act.Forward(f.linear1.Forward(flat)))
		return out.Reshape(batch, seq, dim)
	default:
		panic(fmt.Sprintf("FFN.Forward: expected 2-D or 3-D input, got shape %v", shape))
	}
}

// Parameters returns both projection layers' parameters.
func (f *FFN) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 4)
	params = append(params, f.linear1.Parameters()...)
	params = append(params, f.linear2.Parameters()...)
	return params
}

// StateDict returns the parameters of both projections.
func (f *FFN) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("linear1", f.linear1.StateDict())
	sd.merge("linear2", f.linear2.StateDict())
	return sd
}

// LoadStateDict restores both projections.
func (f *FFN) LoadStateDict(sd StateDict) error {
	if err := loadChild(sd, "linear1", f.linear1); err != nil {
		return err
	}
	return loadChild(sd, "linear2", f.linear2)
}
