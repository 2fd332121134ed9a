package nn

import (
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func testConfig() TransformerConfig {
	return TransformerConfig{
		SrcVocabSize: 12,
		TgtVocabSize: 10,
		FeatureDim:   8,
		NumHeads:     2,
		FFNDim:       16,
		NumLayers:    2,
		MaxLen:       16,
	}
}

func TestEncoder_OutputShape(t *testing.T) {
	enc := NewEncoder(Config{
		VocabSize: 12, FeatureDim: 8, NumHeads: 2, FFNDim: 16, NumLayers: 2, MaxLen: 16,
	}, NewMode())
	tokens := tensor.MustFromSlice([]int32{1, 2, 3, 1, 2, 3}, tensor.Shape{2, 3})

	out := enc.Forward(tokens)

	if !out.Shape().Equal(tensor.Shape{2, 3, 8}) {
		t.Errorf("unexpected encoder output shape %v", out.Shape())
	}
}

func TestEncoder_BadTokenRankPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for 1-D token input")
		}
	}()
	enc := NewEncoder(Config{
		VocabSize: 12, FeatureDim: 8, NumHeads: 2, FFNDim: 16, NumLayers: 1, MaxLen: 16,
	}, NewMode())
	enc.Forward(tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{3}))
}

func TestTransformer_LogitShape(t *testing.T) {
	model := NewTransformer(testConfig())
	src := tensor.MustFromSlice([]int32{1, 2, 3, 4}, tensor.Shape{1, 4})
	tgt := tensor.MustFromSlice([]int32{1, 5, 6}, tensor.Shape{1, 3})

	logits := model.Forward(src, tgt)

	if !logits.Shape().Equal(tensor.Shape{1, 3, 10}) {
		t.Errorf("unexpected logit shape %v", logits.Shape())
	}
}

// Changing the source sequence must change the decoder's output.
// Cross-attention is the only path from source to target, so this is
// the end-to-end check that it is wired in.
func TestTransformer_OutputDependsOnSource(t *testing.T) {
	model := NewTransformer(testConfig())
	model.Eval()

	tgt := tensor.MustFromSlice([]int32{1, 5}, tensor.Shape{1, 2})
	srcA := tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3})
	srcB := tensor.MustFromSlice([]int32{4, 5, 6}, tensor.Shape{1, 3})

	a := model.Forward(srcA, tgt)
	b := model.Forward(srcB, tgt)

	same := true
	for i, v := range a.Data() {
		if v != b.Data()[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("logits identical for different sources; cross-attention is not reaching the encoder")
	}
}

// With the causal mask in place, logits at position j must not depend
// on target tokens after j.
func TestTransformer_CausalMaskHidesFutureTargets(t *testing.T) {
	model := NewTransformer(testConfig())
	model.Eval()

	src := tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3})
	tgtA := tensor.MustFromSlice([]int32{1, 5, 6}, tensor.Shape{1, 3})
	tgtB := tensor.MustFromSlice([]int32{1, 5, 9}, tensor.Shape{1, 3})

	a := model.Forward(src, tgtA)
	b := model.Forward(src, tgtB)

	// Positions 0 and 1 share the same visible prefix.
	vocab := 10
	for pos := 0; pos < 2; pos++ {
		for v := 0; v < vocab; v++ {
			if a.At(0, pos, v) != b.At(0, pos, v) {
				t.Fatalf("position %d logit %d leaked a future token", pos, v)
			}
		}
	}
}

func TestTransformer_ParameterCount(t *testing.T) {
	model := NewTransformer(testConfig())

	// Per attention layer: 4 linears, weight+bias each. Per FFN: 2
	// linears. Per norm: gamma+beta. Encoder block: 8+4+4 = 16; decoder
	// block: 16+4+6 = 26. Plus one embedding per tower and the output
	// projection. The positional tables contribute nothing.
	want := 1 + 2*16 + 1 + 2*26 + 2
	if got := len(model.Parameters()); got != want {
		t.Errorf("parameter count = %d, want %d", got, want)
	}
}

func TestTransformer_TrainEvalToggle(t *testing.T) {
	model := NewTransformer(testConfig())
	if model.Training() {
		t.Error("new model should start in eval mode")
	}
	model.Train()
	if !model.Training() {
		t.Error("Train() did not enable training mode")
	}
	model.Eval()
	if model.Training() {
		t.Error("Eval() did not disable training mode")
	}
}

func TestTransformer_EvalForwardDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.Dropout = 0.5
	model := NewTransformer(cfg)
	model.Eval()

	src := tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3})
	tgt := tensor.MustFromSlice([]int32{1, 5}, tensor.Shape{1, 2})

	a := model.Forward(src, tgt)
	b := model.Forward(src, tgt)
	for i, v := range a.Data() {
		if v != b.Data()[i] {
			t.Fatalf("eval forward not deterministic at %d", i)
		}
	}
}

func TestTransformer_StateDictRoundTrip(t *testing.T) {
	src := NewTransformer(testConfig())
	dst := NewTransformer(testConfig())
	src.Eval()
	dst.Eval()

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}

	in := tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3})
	tgt := tensor.MustFromSlice([]int32{1, 5}, tensor.Shape{1, 2})
	a := src.Forward(in, tgt)
	b := dst.Forward(in, tgt)
	for i, v := range a.Data() {
		if v != b.Data()[i] {
			t.Fatalf("outputs diverge at %d after state dict load", i)
		}
	}
}

func TestTransformer_StateDictMissingEntryFails(t *testing.T) {
	model := NewTransformer(testConfig())
	sd := model.StateDict()
	for name := range sd {
		delete(sd, name)
		break
	}
	if err := model.LoadStateDict(sd); err == nil {
		t.Error("expected error for missing state dict entry")
	}
}

func TestDecoder_CacheMatchesFullForward(t *testing.T) {
	model := NewTransformer(testConfig())
	model.Eval()

	src := tensor.MustFromSlice([]int32{1, 2, 3, 4}, tensor.Shape{1, 4})
	memory := model.Encoder().Forward(src)
	dec := model.Decoder()

	prefix := []int32{1, 5, 6, 7}
	full := dec.Forward(
		tensor.MustFromSlice(prefix, tensor.Shape{1, len(prefix)}), memory, nil)

	caches := dec.NewCaches(len(prefix))
	var cached *tensor.Tensor[float32]
	for i, tok := range prefix {
		one := tensor.MustFromSlice([]int32{tok}, tensor.Shape{1, 1})
		cached = dec.ForwardWithCache(one, memory, caches, i)
	}

	last := len(prefix) - 1
	for v := 0; v < dec.VocabSize(); v++ {
		got := cached.At(0, 0, v)
		want := full.At(0, last, v)
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-3 {
			t.Errorf("logit %d: cached %v, full %v", v, got, want)
		}
	}
}
