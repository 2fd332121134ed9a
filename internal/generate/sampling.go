// Package generate drives autoregressive decoding: it owns the policy
// that turns vocabulary logits into the next token and the loop that
// feeds tokens back through the decoder until an end token or length
// bound is reached. The model itself stays policy-free.
package generate

import (
	"math"
	"math/rand"
	"sort"
)

// SamplingConfig selects the decoding policy.
type SamplingConfig struct {
	// Temperature scales logits before sampling. 0 means greedy argmax.
	Temperature float32

	// TopK restricts sampling to the K most likely tokens. 0 disables.
	TopK int

	// TopP keeps the smallest set of tokens whose cumulative
	// probability reaches P (nucleus sampling). 1.0 disables.
	TopP float32

	// Seed fixes the RNG for reproducible output. -1 seeds randomly.
	Seed int64
}

// DefaultSamplingConfig returns plain temperature-1 sampling.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{Temperature: 1.0, TopP: 1.0, Seed: -1}
}

// Sampler draws next tokens from logits according to its config.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a sampler. With a non-negative seed the token
// stream is fully deterministic.
func NewSampler(config SamplingConfig) *Sampler {
	seed := config.Seed
	if seed < 0 {
		seed = rand.Int63() //nolint:gosec // sampling, not crypto
	}
	return &Sampler{
		config: config,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic by request
	}
}

// Sample returns the next token ID for a [vocabSize] logit row.
func (s *Sampler) Sample(logits []float32) int32 {
	if s.config.Temperature == 0 {
		return argmax(logits)
	}

	// Work on a copy; the caller's logits stay untouched.
	scaled := make([]float32, len(logits))
	inv := 1 / s.config.Temperature
	for i, v := range logits {
		scaled[i] = v * inv
	}

	probs := softmax(scaled)
	if s.config.TopK > 0 && s.config.TopK < len(probs) {
		probs = keepTopK(probs, s.config.TopK)
	}
	if s.config.TopP > 0 && s.config.TopP < 1 {
		probs = keepTopP(probs, s.config.TopP)
	}

	return s.draw(probs)
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int32(best)
}

func softmax(logits []float32) []float32 {
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	probs := make([]float32, len(logits))
	sum := 0.0
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// keepTopK zeroes everything outside the K most probable tokens and
// renormalizes.
func keepTopK(probs []float32, k int) []float32 {
	idx := sortedByProb(probs)
	out := make([]float32, len(probs))
	sum := float32(0)
	for _, i := range idx[:k] {
		out[i] = probs[i]
		sum += probs[i]
	}
	renormalize(out, sum)
	return out
}

// keepTopP keeps the smallest prefix of the sorted distribution whose
// mass reaches p and renormalizes.
func keepTopP(probs []float32, p float32) []float32 {
	idx := sortedByProb(probs)
	out := make([]float32, len(probs))
	sum := float32(0)
	for _, i := range idx {
		out[i] = probs[i]
		sum += probs[i]
		if sum >= p {
			break
		}
	}
	renormalize(out, sum)
	return out
}

func sortedByProb(probs []float32) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	return idx
}

func renormalize(probs []float32, sum float32) {
	if sum == 0 {
		return
	}
	for i := range probs {
		probs[i] /= sum
	}
}

// draw samples an index from a probability distribution.
func (s *Sampler) draw(probs []float32) int32 {
	r := s.rng.Float32()
	acc := float32(0)
	for i, p := range probs {
		acc += p
		if r < acc {
			return int32(i)
		}
	}
	// Float round-off can leave acc slightly below 1; fall back to the
	// most probable token.
	return argmax(probs)
}
