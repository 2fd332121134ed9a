package nn

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/tensor"
)

// StateDict maps hierarchical parameter names ("encoder.layers.0.attn.
// wq.weight") to their tensors. Composite modules build theirs by
// merging child dictionaries under a prefix.
type StateDict map[string]*tensor.Tensor[float32]

// StateDicter is implemented by every module that can be checkpointed.
type StateDicter interface {
	StateDict() StateDict
	LoadStateDict(StateDict) error
}

// merge copies src into dst with every key prefixed.
func (d StateDict) merge(prefix string, src StateDict) {
	for k, v := range src {
		d[prefix+"."+k] = v
	}
}

// sub extracts the entries under prefix with the prefix stripped.
func (d StateDict) sub(prefix string) StateDict {
	out := StateDict{}
	for k, v := range d {
		if strings.HasPrefix(k, prefix+".") {
			out[strings.TrimPrefix(k, prefix+".")] = v
		}
	}
	return out
}

// loadInto copies sd[key] into dst, validating presence and shape.
func loadInto(sd StateDict, key string, dst *tensor.Tensor[float32]) error {
	src, ok := sd[key]
	if !ok {
		return errors.Errorf("state dict: missing entry %q", key)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return errors.Errorf("state dict: shape mismatch for %q: expected %v, got %v",
			key, dst.Shape(), src.Shape())
	}
	copy(dst.Data(), src.Data())
	return nil
}

// loadChild delegates the entries under prefix to a child module.
func loadChild(sd StateDict, prefix string, child StateDicter) error {
	if err := child.LoadStateDict(sd.sub(prefix)); err != nil {
		return errors.WithMessagef(err, "in %s", prefix)
	}
	return nil
}
