package tensor

import (
	"fmt"
	"math"
)

// Softmax normalizes the tensor along dim so each slice along that axis
// is non-negative and sums to 1.
//
// Only the last axis is supported (dim = -1 or Dims()-1); that is the
// key axis in attention and the vocabulary axis in logits. The maximum
// is subtracted before exponentiation so large scores, including the
// -inf entries written by masks, cannot overflow.
func (t *Tensor[T]) Softmax(dim int) *Tensor[T] {
	if dim < 0 {
		dim += len(t.shape)
	}
	if dim != len(t.shape)-1 {
		panic(fmt.Sprintf("tensor.Softmax: only the last axis is supported, got dim %d for shape %v", dim, t.shape))
	}

	n := t.shape[dim]
	rows := len(t.data) / n
	out := Zeros[T](t.shape)

	for r := 0; r < rows; r++ {
		src := t.data[r*n : (r+1)*n]
		dst := out.data[r*n : (r+1)*n]

		maxVal := float64(src[0])
		for _, v := range src[1:] {
			if float64(v) > maxVal {
				maxVal = float64(v)
			}
		}

		sum := 0.0
		for i, v := range src {
			e := math.Exp(float64(v) - maxVal)
			dst[i] = T(e)
			sum += e
		}
		inv := 1.0 / sum
		for i := range dst {
			dst[i] = T(float64(dst[i]) * inv)
		}
	}
	return out
}

// MeanDim reduces the tensor by averaging along dim. With keepDim the
// reduced axis is retained with size 1 so the result broadcasts back
// against the input.
func (t *Tensor[T]) MeanDim(dim int, keepDim bool) *Tensor[T] {
	if dim < 0 {
		dim += len(t.shape)
	}
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("tensor.MeanDim: dim %d out of range for shape %v", dim, t.shape))
	}

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.shape[i]
	}
	n := t.shape[dim]
	inner := 1
	for i := dim + 1; i < len(t.shape); i++ {
		inner *= t.shape[i]
	}

	outShape := make(Shape, 0, len(t.shape))
	outShape = append(outShape, t.shape[:dim]...)
	if keepDim {
		outShape = append(outShape, 1)
	}
	outShape = append(outShape, t.shape[dim+1:]...)
	if len(outShape) == 0 {
		outShape = Shape{1}
	}

	out := Zeros[T](outShape)
	invN := 1.0 / float64(n)
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += float64(t.data[(o*n+i)*inner+in])
			}
			out.data[o*inner+in] = T(sum * invN)
		}
	}
	return out
}
