package nn

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func TestScaledDotProductAttention_WeightRowsSumToOne(t *testing.T) {
	q := tensor.Randn(tensor.Shape{2, 4, 5, 8})
	k := tensor.Randn(tensor.Shape{2, 4, 7, 8})
	v := tensor.Randn(tensor.Shape{2, 4, 7, 8})

	out, weights := ScaledDotProductAttention(q, k, v, nil, 0)

	if !out.Shape().Equal(tensor.Shape{2, 4, 5, 8}) {
		t.Fatalf("unexpected output shape %v", out.Shape())
	}
	if !weights.Shape().Equal(tensor.Shape{2, 4, 5, 7}) {
		t.Fatalf("unexpected weights shape %v", weights.Shape())
	}

	data := weights.Data()
	rows := weights.NumElements() / 7
	for r := 0; r < rows; r++ {
		sum := float32(0)
		for c := 0; c < 7; c++ {
			w := data[r*7+c]
			if w < 0 || w > 1 {
				t.Fatalf("weight %v outside [0,1] at row %d", w, r)
			}
			sum += w
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("weight row %d sums to %v, want 1", r, sum)
		}
	}
}

// A scalar query against four scalar keys: the pre-softmax scores are
// the element-wise products, so the highest key must get the most
// weight and the lowest key the least.
func TestScaledDotProductAttention_ScalarQueryRanking(t *testing.T) {
	q := tensor.MustFromSlice([]float32{0.5}, tensor.Shape{1, 1, 1})
	k := tensor.MustFromSlice([]float32{0.1, 0.5, 0.3, 0.9}, tensor.Shape{1, 4, 1})
	v := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 4, 1})

	_, weights := ScaledDotProductAttention(q, k, v, nil, 0)

	w := weights.Data()
	sum := float32(0)
	for i := 1; i < 4; i++ {
		if w[3] < w[i] {
			t.Errorf("key 3 should dominate, got weights %v", w)
		}
		if w[0] > w[i] {
			t.Errorf("key 0 should be lowest, got weights %v", w)
		}
	}
	for _, v := range w {
		sum += v
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

// Rows [1,0], [0,1], [0.5,0.5]: the third row is equally similar to
// the first two, so its attention weights on them must match.
func TestScaledDotProductAttention_SymmetricThirdRow(t *testing.T) {
	x := tensor.MustFromSlice([]float32{
		1, 0,
		0, 1,
		0.5, 0.5,
	}, tensor.Shape{1, 3, 2})

	_, weights := ScaledDotProductAttention(x, x, x, nil, 0)

	w0 := weights.At(0, 2, 0)
	w1 := weights.At(0, 2, 1)
	if math.Abs(float64(w0-w1)) > 1e-6 {
		t.Errorf("third row weights on rows 0 and 1 differ: %v vs %v", w0, w1)
	}
}

// Without positional encoding, self-attention is permutation
// equivariant: permuting the input rows permutes the output rows
// identically.
func TestScaledDotProductAttention_PermutationEquivariance(t *testing.T) {
	x := tensor.MustFromSlice([]float32{
		1, 0,
		0, 1,
		0.5, 0.5,
	}, tensor.Shape{1, 3, 2})
	swapped := tensor.MustFromSlice([]float32{
		0, 1,
		1, 0,
		0.5, 0.5,
	}, tensor.Shape{1, 3, 2})

	out, _ := ScaledDotProductAttention(x, x, x, nil, 0)
	outSwapped, _ := ScaledDotProductAttention(swapped, swapped, swapped, nil, 0)

	for f := 0; f < 2; f++ {
		if math.Abs(float64(out.At(0, 0, f)-outSwapped.At(0, 1, f))) > 1e-6 {
			t.Errorf("row 0 not mapped to row 1 at feature %d", f)
		}
		if math.Abs(float64(out.At(0, 1, f)-outSwapped.At(0, 0, f))) > 1e-6 {
			t.Errorf("row 1 not mapped to row 0 at feature %d", f)
		}
		if math.Abs(float64(out.At(0, 2, f)-outSwapped.At(0, 2, f))) > 1e-6 {
			t.Errorf("fixed row 2 changed at feature %d", f)
		}
	}
}

func TestScaledDotProductAttention_FeatureDimMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for q/k feature dim mismatch")
		}
	}()
	q := tensor.Zeros[float32](tensor.Shape{1, 2, 4})
	k := tensor.Zeros[float32](tensor.Shape{1, 2, 8})
	ScaledDotProductAttention(q, k, k, nil, 0)
}

func TestScaledDotProductAttention_KeyValueLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for k/v length mismatch")
		}
	}()
	q := tensor.Zeros[float32](tensor.Shape{1, 2, 4})
	k := tensor.Zeros[float32](tensor.Shape{1, 3, 4})
	v := tensor.Zeros[float32](tensor.Shape{1, 5, 4})
	ScaledDotProductAttention(q, k, v, nil, 0)
}

func TestCausalMask_UpperTriangleForbidden(t *testing.T) {
	mask := CausalMask(4)
	if !mask.Shape().Equal(tensor.Shape{1, 1, 4, 4}) {
		t.Fatalf("unexpected mask shape %v", mask.Shape())
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := mask.At(0, 0, i, j)
			if j > i && !math.IsInf(float64(v), -1) {
				t.Errorf("mask[%d,%d] = %v, want -inf", i, j, v)
			}
			if j <= i && v != 0 {
				t.Errorf("mask[%d,%d] = %v, want 0", i, j, v)
			}
		}
	}
}

func TestCausalMask_ZeroWeightOnFuture(t *testing.T) {
	q := tensor.Randn(tensor.Shape{2, 3, 4, 8})
	_, weights := ScaledDotProductAttention(q, q, q, CausalMask(4), 0)

	for b := 0; b < 2; b++ {
		for h := 0; h < 3; h++ {
			for i := 0; i < 4; i++ {
				for j := i + 1; j < 4; j++ {
					if w := weights.At(b, h, i, j); w != 0 {
						t.Errorf("future weight [%d,%d,%d,%d] = %v, want exactly 0", b, h, i, j, w)
					}
				}
			}
		}
	}
}
