package checkpoint

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

func sampleState(t *testing.T) nn.StateDict {
	t.Helper()
	return nn.StateDict{
		"encoder.embed.weight": tensor.MustFromSlice(
			[]float32{0.1, -0.2, 0.3, 1.5, -2.5, 0}, tensor.Shape{3, 2}),
		"decoder.norm1.gamma": tensor.MustFromSlice(
			[]float32{1, 1, 1, 1}, tensor.Shape{4}),
	}
}

func TestSaveLoad_Float32RoundTrip(t *testing.T) {
	sd := sampleState(t)

	var buf bytes.Buffer
	require.NoError(t, Save(sd, &buf, Options{}))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Len(t, loaded, len(sd))

	for name, want := range sd {
		got, ok := loaded[name]
		require.True(t, ok, "missing entry %q", name)
		assert.True(t, got.Shape().Equal(want.Shape()), "shape mismatch for %q", name)
		assert.Equal(t, want.Data(), got.Data(), "float32 payload must round-trip exactly")
	}
}

func TestSaveLoad_Float16RoundTrip(t *testing.T) {
	sd := sampleState(t)

	var buf bytes.Buffer
	require.NoError(t, Save(sd, &buf, Options{Half: true}))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	for name, want := range sd {
		got := loaded[name]
		require.NotNil(t, got, "missing entry %q", name)
		for i, w := range want.Data() {
			assert.InDelta(t, float64(w), float64(got.Data()[i]), 1e-2,
				"%q[%d] lost too much precision", name, i)
		}
	}
}

func TestSave_Deterministic(t *testing.T) {
	sd := sampleState(t)

	var a, b bytes.Buffer
	require.NoError(t, Save(sd, &a, Options{}))
	require.NoError(t, Save(sd, &b, Options{}))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestSave_HalfIsSmaller(t *testing.T) {
	sd := sampleState(t)

	var full, half bytes.Buffer
	require.NoError(t, Save(sd, &full, Options{}))
	require.NoError(t, Save(sd, &half, Options{Half: true}))
	assert.Less(t, half.Len(), full.Len())
}

func TestLoad_BadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("NOPE\x01\x00\x00\x00\x00\x00\x00\x00")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestLoad_Truncated(t *testing.T) {
	sd := sampleState(t)
	var buf bytes.Buffer
	require.NoError(t, Save(sd, &buf, Options{}))

	_, err := Load(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	assert.Error(t, err)
}

func TestSaveFileLoadFile(t *testing.T) {
	sd := sampleState(t)
	path := filepath.Join(t.TempDir(), "model.loom")

	require.NoError(t, SaveFile(sd, path, Options{}))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, loaded, len(sd))
}

func TestFullModelRoundTrip(t *testing.T) {
	model := nn.NewTransformer(nn.TransformerConfig{
		SrcVocabSize: 8,
		TgtVocabSize: 8,
		FeatureDim:   8,
		NumHeads:     2,
		FFNDim:       16,
		NumLayers:    1,
		MaxLen:       16,
	})

	var buf bytes.Buffer
	require.NoError(t, Save(model.StateDict(), &buf, Options{}))
	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.NoError(t, model.LoadStateDict(loaded))
}

func TestHalfHandlesSpecialValues(t *testing.T) {
	sd := nn.StateDict{
		"w": tensor.MustFromSlice([]float32{0, -0, 1, -1, 65504}, tensor.Shape{5}),
	}

	var buf bytes.Buffer
	require.NoError(t, Save(sd, &buf, Options{Half: true}))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	got := loaded["w"].Data()
	assert.Equal(t, float32(0), got[0])
	assert.Equal(t, float32(1), got[2])
	assert.Equal(t, float32(-1), got[3])
	assert.False(t, math.IsInf(float64(got[4]), 1), "65504 is representable in float16")
}
