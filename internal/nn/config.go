package nn

import "fmt"

// Config describes one encoder or decoder tower.
type Config struct {
	VocabSize  int     // token vocabulary size
	FeatureDim int     // model width, must be divisible by NumHeads
	NumHeads   int     // attention heads per layer
	FFNDim     int     // feed-forward hidden width, typically 4*FeatureDim
	NumLayers  int     // stacked blocks
	MaxLen     int     // positional table capacity
	Dropout    float32 // drop probability, 0 disables
	NormEps    float32 // LayerNorm epsilon, 0 defaults to 1e-5
}

// withDefaults fills optional fields.
func (c Config) withDefaults() Config {
	if c.NormEps == 0 {
		c.NormEps = 1e-5
	}
	return c
}

func (c Config) validate(who string) {
	if c.VocabSize <= 0 {
		panic(fmt.Sprintf("%s: VocabSize must be positive, got %d", who, c.VocabSize))
	}
	if c.FeatureDim <= 0 || c.FeatureDim%2 != 0 {
		panic(fmt.Sprintf("%s: FeatureDim must be positive and even, got %d", who, c.FeatureDim))
	}
	if c.NumHeads <= 0 || c.FeatureDim%c.NumHeads != 0 {
		panic(fmt.Sprintf("%s: FeatureDim (%d) must be divisible by NumHeads (%d)", who, c.FeatureDim, c.NumHeads))
	}
	if c.FFNDim <= 0 {
		panic(fmt.Sprintf("%s: FFNDim must be positive, got %d", who, c.FFNDim))
	}
	if c.NumLayers <= 0 {
		panic(fmt.Sprintf("%s: NumLayers must be positive, got %d", who, c.NumLayers))
	}
	if c.MaxLen <= 0 {
		panic(fmt.Sprintf("%s: MaxLen must be positive, got %d", who, c.MaxLen))
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		panic(fmt.Sprintf("%s: Dropout must be in [0, 1), got %g", who, c.Dropout))
	}
	if c.NormEps <= 0 {
		panic(fmt.Sprintf("%s: NormEps must be positive, got %g", who, c.NormEps))
	}
}
