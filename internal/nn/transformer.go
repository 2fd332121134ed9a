package nn

import "github.com/loom-ml/loom/internal/tensor"

// TransformerConfig configures a full sequence-to-sequence model. The
// two towers share width, depth and head count but may have separate
// vocabularies.
type TransformerConfig struct {
	SrcVocabSize int
	TgtVocabSize int
	FeatureDim   int
	NumHeads     int
	FFNDim       int
	NumLayers    int
	MaxLen       int
	Dropout      float32
	NormEps      float32
}

// Transformer composes one Encoder and one Decoder into a
// sequence-to-sequence model. The decoder cross-attends to the
// encoder's output on every layer, which is what makes the generated
// sequence depend on the source sequence.
type Transformer struct {
	encoder *Encoder
	decoder *Decoder
	mode    *Mode
}

// NewTransformer builds the model in evaluation mode.
func NewTransformer(cfg TransformerConfig) *Transformer {
	mode := NewMode()
	shared := Config{
		FeatureDim: cfg.FeatureDim,
		NumHeads:   cfg.NumHeads,
		FFNDim:     cfg.FFNDim,
		NumLayers:  cfg.NumLayers,
		MaxLen:     cfg.MaxLen,
		Dropout:    cfg.Dropout,
		NormEps:    cfg.NormEps,
	}

	encCfg := shared
	encCfg.VocabSize = cfg.SrcVocabSize
	decCfg := shared
	decCfg.VocabSize = cfg.TgtVocabSize

	return &Transformer{
		encoder: NewEncoder(encCfg, mode),
		decoder: NewDecoder(decCfg, mode),
		mode:    mode,
	}
}

// Forward runs the full pipeline: src tokens [batch, srcLen] are
// encoded, then tgt tokens [batch, tgtLen] are decoded against that
// memory under a causal mask. Returns logits
// [batch, tgtLen, tgtVocabSize].
func (t *Transformer) Forward(src, tgt *tensor.Tensor[int32]) *tensor.Tensor[float32] {
	memory := t.encoder.Forward(src)
	return t.decoder.Forward(tgt, memory, nil)
}

// Encoder returns the source tower.
func (t *Transformer) Encoder() *Encoder {
	return t.encoder
}

// Decoder returns the target tower.
func (t *Transformer) Decoder() *Decoder {
	return t.decoder
}

// Train enables dropout across the whole model.
func (t *Transformer) Train() {
	t.mode.Train()
}

// Eval disables dropout across the whole model.
func (t *Transformer) Eval() {
	t.mode.Eval()
}

// Training reports the current mode.
func (t *Transformer) Training() bool {
	return t.mode.Training()
}

// Parameters returns every trainable parameter of both towers, for
// optimizer consumption.
func (t *Transformer) Parameters() []*Parameter {
	params := t.encoder.Parameters()
	return append(params, t.decoder.Parameters()...)
}

// StateDict returns the full model state under encoder./decoder.
func (t *Transformer) StateDict() StateDict {
	sd := StateDict{}
	sd.merge("encoder", t.encoder.StateDict())
	sd.merge("decoder", t.decoder.StateDict())
	return sd
}

// LoadStateDict restores the full model state.
func (t *Transformer) LoadStateDict(sd StateDict) error {
	if err := loadChild(sd, "encoder", t.encoder); err != nil {
		return err
	}
	return loadChild(sd, "decoder", t.decoder)
}
