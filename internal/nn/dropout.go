package nn

import (
	"fmt"
	"math/rand"

	"github.com/loom-ml/loom/internal/tensor"
)

// Dropout randomly zeroes elements during training and is the identity
// in evaluation. Kept elements are scaled by 1/(1-rate) (inverted
// dropout), so the expected activation magnitude matches between modes.
//
// The mode is read from a shared *Mode rather than per-module state;
// see Mode.
type Dropout struct {
	rate float32
	mode *Mode
}

// NewDropout creates a Dropout with the given drop probability in
// [0, 1).
func NewDropout(rate float32, mode *Mode) *Dropout {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("Dropout: rate must be in [0, 1), got %g", rate))
	}
	if mode == nil {
		panic("Dropout: mode must not be nil")
	}
	return &Dropout{rate: rate, mode: mode}
}

// Forward applies dropout. This is the only non-deterministic operation
// in the stack, and only while training.
func (d *Dropout) Forward(x *tensor.Tensor[float32]) *tensor.Tensor[float32] {
	if !d.mode.Training() || d.rate == 0 {
		return x
	}

	scale := 1 / (1 - d.rate)
	out := tensor.Zeros[float32](x.Shape())
	src := x.Data()
	dst := out.Data()
	for i, v := range src {
		if rand.Float32() >= d.rate { //nolint:gosec // dropout mask, not crypto
			dst[i] = v * scale
		}
	}
	return out
}

// Parameters returns nil; dropout has no trainable state.
func (d *Dropout) Parameters() []*Parameter {
	return nil
}
