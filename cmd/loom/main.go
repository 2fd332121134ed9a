// Command loom is a small driver around the Loom attention stack. It
// builds a randomly initialized sequence-to-sequence model, encodes a
// source token sequence and decodes from it, which exercises the full
// pipeline end to end.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/loom-ml/loom/internal/generate"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("Loom %s\n", version)
		return
	}

	klog.InitFlags(nil)
	var (
		srcArg      = flag.String("src", "5 7 11 13", "space-separated source token IDs")
		vocabSize   = flag.Int("vocab", 64, "vocabulary size for both towers")
		featureDim  = flag.Int("dim", 64, "model width")
		numHeads    = flag.Int("heads", 4, "attention heads")
		numLayers   = flag.Int("layers", 2, "blocks per tower")
		maxTokens   = flag.Int("max-tokens", 16, "tokens to generate")
		temperature = flag.Float64("temperature", 0, "sampling temperature, 0 = greedy")
		seed        = flag.Int64("seed", 42, "sampling seed, -1 = random")
		noCache     = flag.Bool("no-cache", false, "disable the KV cache")
	)
	flag.Parse()

	src, err := parseTokens(*srcArg, *vocabSize)
	if err != nil {
		klog.Exitf("invalid -src: %v", err)
	}

	model := nn.NewTransformer(nn.TransformerConfig{
		SrcVocabSize: *vocabSize,
		TgtVocabSize: *vocabSize,
		FeatureDim:   *featureDim,
		NumHeads:     *numHeads,
		FFNDim:       4 * *featureDim,
		NumLayers:    *numLayers,
		MaxLen:       256,
	})
	klog.Infof("model ready: %d parameters", countParams(model))

	bar := progressbar.NewOptions(*maxTokens,
		progressbar.OptionSetDescription("decoding"),
		progressbar.OptionClearOnFinish(),
	)
	gen, err := generate.NewGenerator(model, generate.Config{
		StartToken: 1,
		EndToken:   -1,
		MaxTokens:  *maxTokens,
		UseCache:   !*noCache,
		Sampling: generate.SamplingConfig{
			Temperature: float32(*temperature),
			TopP:        1.0,
			Seed:        *seed,
		},
		OnToken: func(int32, int) { _ = bar.Add(1) },
	})
	if err != nil {
		klog.Exitf("building generator: %v", err)
	}

	srcTensor := tensor.MustFromSlice(src, tensor.Shape{1, len(src)})
	tokens, err := gen.Generate(srcTensor)
	if err != nil {
		klog.Exitf("generating: %v", err)
	}

	fmt.Printf("source:    %v\n", src)
	fmt.Printf("generated: %v\n", tokens)
}

func parseTokens(s string, vocab int) ([]int32, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no tokens")
	}
	tokens := make([]int32, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("token %d outside vocabulary [0, %d)", id, vocab)
		}
		tokens[i] = int32(id)
	}
	return tokens, nil
}

func countParams(model *nn.Transformer) int {
	total := 0
	for _, p := range model.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}
