package nn

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func TestMultiHeadAttention_PreservesShape(t *testing.T) {
	mha := NewMultiHeadAttention(16, 4)
	x := tensor.Randn(tensor.Shape{2, 5, 16})

	out := mha.Forward(x, x, x, nil)

	if !out.Shape().Equal(tensor.Shape{2, 5, 16}) {
		t.Errorf("unexpected output shape %v", out.Shape())
	}
}

func TestMultiHeadAttention_CrossAttentionShapes(t *testing.T) {
	mha := NewMultiHeadAttention(8, 2)
	q := tensor.Randn(tensor.Shape{1, 3, 8})
	kv := tensor.Randn(tensor.Shape{1, 7, 8})

	out, weights := mha.ForwardWithWeights(q, kv, kv, nil)

	if !out.Shape().Equal(tensor.Shape{1, 3, 8}) {
		t.Errorf("unexpected output shape %v", out.Shape())
	}
	if !weights.Shape().Equal(tensor.Shape{1, 2, 3, 7}) {
		t.Errorf("unexpected weights shape %v", weights.Shape())
	}
}

func TestMultiHeadAttention_WeightRowsSumToOne(t *testing.T) {
	mha := NewMultiHeadAttention(8, 2)
	x := tensor.Randn(tensor.Shape{1, 4, 8})

	_, weights := mha.ForwardWithWeights(x, x, x, nil)

	data := weights.Data()
	rows := weights.NumElements() / 4
	for r := 0; r < rows; r++ {
		sum := float32(0)
		for c := 0; c < 4; c++ {
			sum += data[r*4+c]
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("weight row %d sums to %v, want 1", r, sum)
		}
	}
}

func TestNewMultiHeadAttention_IndivisiblePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when featureDim is not divisible by numHeads")
		}
	}()
	NewMultiHeadAttention(10, 3)
}

func TestMultiHeadAttention_WrongFeatureDimPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for wrong input feature dim")
		}
	}()
	mha := NewMultiHeadAttention(16, 4)
	x := tensor.Randn(tensor.Shape{1, 3, 8})
	mha.Forward(x, x, x, nil)
}

// Decoding token-by-token through the cache must reproduce the final
// position of a full masked forward over the same prefix.
func TestMultiHeadAttention_CacheMatchesFullForward(t *testing.T) {
	const seqLen = 5
	mha := NewMultiHeadAttention(8, 2)
	x := tensor.Randn(tensor.Shape{1, seqLen, 8})

	full := mha.Forward(x, x, x, CausalMask(seqLen))

	cache := NewKVCache(seqLen)
	var cached *tensor.Tensor[float32]
	for i := 0; i < seqLen; i++ {
		step := x.Narrow(1, i, 1)
		cached = mha.ForwardWithCache(step, cache)
	}

	for f := 0; f < 8; f++ {
		got := cached.At(0, 0, f)
		want := full.At(0, seqLen-1, f)
		if math.Abs(float64(got-want)) > 1e-3 {
			t.Errorf("feature %d: cached %v, full %v", f, got, want)
		}
	}
}

func TestMultiHeadAttention_StateDictRoundTrip(t *testing.T) {
	src := NewMultiHeadAttention(8, 2)
	dst := NewMultiHeadAttention(8, 2)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}

	x := tensor.Randn(tensor.Shape{1, 3, 8})
	a := src.Forward(x, x, x, nil)
	b := dst.Forward(x, x, x, nil)
	for i, v := range a.Data() {
		if v != b.Data()[i] {
			t.Fatalf("outputs diverge at %d: %v vs %v", i, v, b.Data()[i])
		}
	}
}

func BenchmarkScaledDotProductAttention(b *testing.B) {
	q := tensor.Randn(tensor.Shape{1, 8, 64, 64})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ScaledDotProductAttention(q, q, q, nil, 0)
	}
}

func BenchmarkMultiHeadAttention_Forward(b *testing.B) {
	mha := NewMultiHeadAttention(256, 8)
	x := tensor.Randn(tensor.Shape{1, 64, 256})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mha.Forward(x, x, x, nil)
	}
}

func BenchmarkMultiHeadAttention_CachedStep(b *testing.B) {
	mha := NewMultiHeadAttention(256, 8)
	step := tensor.Randn(tensor.Shape{1, 1, 256})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache := NewKVCache(64)
		for j := 0; j < 64; j++ {
			mha.ForwardWithCache(step, cache)
		}
	}
}

func TestKVCache_GrowsAndResets(t *testing.T) {
	cache := NewKVCache(8)
	if cache.Len() != 0 {
		t.Fatalf("fresh cache has length %d", cache.Len())
	}

	k := tensor.Randn(tensor.Shape{1, 2, 3, 4})
	v := tensor.Randn(tensor.Shape{1, 2, 3, 4})
	cache.Update(k, v)
	cache.Update(k, v)

	if cache.Len() != 6 {
		t.Errorf("cache length = %d, want 6", cache.Len())
	}
	gotK, gotV := cache.Get()
	if !gotK.Shape().Equal(tensor.Shape{1, 2, 6, 4}) || !gotV.Shape().Equal(tensor.Shape{1, 2, 6, 4}) {
		t.Errorf("cached shapes %v / %v", gotK.Shape(), gotV.Shape())
	}

	cache.Reset()
	if cache.Len() != 0 {
		t.Errorf("cache length after reset = %d, want 0", cache.Len())
	}
}
