package generate

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// State tracks where a Generator is in its lifecycle.
type State int

const (
	// StateAwaitingStart means no decoding step has run yet.
	StateAwaitingStart State = iota
	// StateGenerating means the prefix is being extended.
	StateGenerating
	// StateFinished means the end token was produced or the length
	// bound was hit.
	StateFinished
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting-start"
	case StateGenerating:
		return "generating"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config controls one generation run.
type Config struct {
	// StartToken seeds the target sequence.
	StartToken int32

	// EndToken finishes generation when produced. Use -1 to disable
	// and always run to MaxTokens.
	EndToken int32

	// MaxTokens bounds the generated sequence, start token excluded.
	MaxTokens int

	// UseCache enables per-layer KV caching so each step only projects
	// the newest token. Output is identical either way; without the
	// cache every step re-runs the full prefix.
	UseCache bool

	// Sampling selects the decoding policy.
	Sampling SamplingConfig

	// OnToken, when set, is called after every generated token with
	// the token ID and step index. Used for streaming and progress
	// reporting.
	OnToken func(tokenID int32, step int)
}

// DefaultConfig returns greedy decoding with caching enabled.
func DefaultConfig() Config {
	return Config{
		EndToken:  -1,
		MaxTokens: 64,
		UseCache:  true,
		Sampling:  SamplingConfig{Temperature: 0},
	}
}

// Generator runs the decode loop of a sequence-to-sequence model:
// encode the source once, then repeatedly feed the generated prefix
// back through the decoder, sampling one token per step.
type Generator struct {
	model   *nn.Transformer
	config  Config
	sampler *Sampler
	state   State
}

// NewGenerator creates a generator for model.
func NewGenerator(model *nn.Transformer, config Config) (*Generator, error) {
	if model == nil {
		return nil, errors.New("generate: model must not be nil")
	}
	if config.MaxTokens <= 0 {
		return nil, errors.Errorf("generate: MaxTokens must be positive, got %d", config.MaxTokens)
	}
	return &Generator{
		model:   model,
		config:  config,
		sampler: NewSampler(config.Sampling),
		state:   StateAwaitingStart,
	}, nil
}

// State returns the generator's current lifecycle state.
func (g *Generator) State() State {
	return g.state
}

// Generate produces a token sequence conditioned on src [1, srcLen].
//
// The returned slice starts with the start token. Generation stops on
// the end token (kept in the output) or after MaxTokens steps. The
// model is evaluated in inference mode; dropout stays off.
func (g *Generator) Generate(src *tensor.Tensor[int32]) ([]int32, error) {
	if src == nil || src.Dims() != 2 || src.Shape()[0] != 1 {
		return nil, errors.Errorf("generate: src must be [1, srcLen], got %v", shapeOf(src))
	}

	g.model.Eval()
	memory := g.model.Encoder().Forward(src)
	klog.V(2).Infof("encoded source of length %d", src.Shape()[1])

	g.state = StateGenerating
	tokens := []int32{g.config.StartToken}

	var caches []*nn.KVCache
	if g.config.UseCache {
		caches = g.model.Decoder().NewCaches(g.config.MaxTokens + 1)
	}

	for step := 0; step < g.config.MaxTokens; step++ {
		logits := g.step(tokens, memory, caches, step)
		next := g.sampler.Sample(logits)
		tokens = append(tokens, next)
		klog.V(3).Infof("step %d: token %d", step, next)
		if g.config.OnToken != nil {
			g.config.OnToken(next, step)
		}

		if g.config.EndToken >= 0 && next == g.config.EndToken {
			break
		}
	}

	g.state = StateFinished
	klog.V(2).Infof("generation finished after %d tokens", len(tokens)-1)
	return tokens, nil
}

// step returns the next-token logit row [vocabSize] for the current
// prefix.
func (g *Generator) step(tokens []int32, memory *tensor.Tensor[float32], caches []*nn.KVCache, step int) []float32 {
	vocab := g.model.Decoder().VocabSize()

	if caches != nil {
		// Cached path: only the newest token goes through the decoder.
		last := tensor.MustFromSlice([]int32{tokens[len(tokens)-1]}, tensor.Shape{1, 1})
		logits := g.model.Decoder().ForwardWithCache(last, memory, caches, step)
		return logits.Data()[:vocab]
	}

	// Recompute path: run the whole prefix and keep the last position.
	prefix := tensor.MustFromSlice(append([]int32{}, tokens...), tensor.Shape{1, len(tokens)})
	logits := g.model.Decoder().Forward(prefix, memory, nil)
	data := logits.Data()
	return data[(len(tokens)-1)*vocab : len(tokens)*vocab]
}

func shapeOf(t *tensor.Tensor[int32]) tensor.Shape {
	if t == nil {
		return nil
	}
	return t.Shape()
}
