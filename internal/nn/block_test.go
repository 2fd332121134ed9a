package nn

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func TestTransformerBlock_PreservesShape(t *testing.T) {
	mode := NewMode()
	block := NewTransformerBlock(16, 4, 32, 0, 1e-5, mode)
	x := tensor.Randn(tensor.Shape{2, 5, 16})

	out := block.Forward(x, nil)

	if !out.Shape().Equal(tensor.Shape{2, 5, 16}) {
		t.Errorf("unexpected output shape %v", out.Shape())
	}
}

// Post-norm ends each sub-layer with LayerNorm, so every output
// position must come out normalized: mean approximately 0 over the
// feature axis.
func TestTransformerBlock_OutputIsNormalized(t *testing.T) {
	mode := NewMode()
	block := NewTransformerBlock(16, 4, 32, 0, 1e-5, mode)
	x := tensor.Randn(tensor.Shape{1, 4, 16})

	out := block.Forward(x, nil)

	data := out.Data()
	for pos := 0; pos < 4; pos++ {
		mean := float64(0)
		for f := 0; f < 16; f++ {
			mean += float64(data[pos*16+f])
		}
		mean /= 16
		if math.Abs(mean) > 1e-4 {
			t.Errorf("position %d has feature mean %v, want ~0", pos, mean)
		}
	}
}

func TestTransformerBlock_DropoutOffInEvalIsDeterministic(t *testing.T) {
	mode := NewMode()
	mode.Eval()
	block := NewTransformerBlock(8, 2, 16, 0.5, 1e-5, mode)
	x := tensor.Randn(tensor.Shape{1, 3, 8})

	a := block.Forward(x, nil)
	b := block.Forward(x, nil)

	for i, v := range a.Data() {
		if v != b.Data()[i] {
			t.Fatalf("eval-mode forward not deterministic at %d: %v vs %v", i, v, b.Data()[i])
		}
	}
}

func TestTransformerBlock_ParameterCount(t *testing.T) {
	mode := NewMode()
	block := NewTransformerBlock(8, 2, 16, 0, 1e-5, mode)

	// 4 projections with bias (8 params) + 2 FFN linears with bias (4)
	// + 2 norms with gamma/beta (4).
	if got := len(block.Parameters()); got != 16 {
		t.Errorf("parameter count = %d, want 16", got)
	}
}

func TestTransformerBlock_StateDictRoundTrip(t *testing.T) {
	mode := NewMode()
	src := NewTransformerBlock(8, 2, 16, 0, 1e-5, mode)
	dst := NewTransformerBlock(8, 2, 16, 0, 1e-5, mode)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}

	x := tensor.Randn(tensor.Shape{1, 3, 8})
	a := src.Forward(x, nil)
	b := dst.Forward(x, nil)
	for i, v := range a.Data() {
		if v != b.Data()[i] {
			t.Fatalf("outputs diverge at %d", i)
		}
	}
}
