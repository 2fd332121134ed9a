package nn

import (
	"math"
	"math/rand"

	"github.com/loom-ml/loom/internal/tensor"
)

// Xavier returns a tensor initialized from the Glorot uniform
// distribution U(-b, b) with b = sqrt(6 / (fanIn + fanOut)), which
// keeps activation variance roughly constant across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor[float32] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros[float32](shape)
	data := t.Data()
	for i := range data {
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound) //nolint:gosec // weight init
	}
	return t
}
