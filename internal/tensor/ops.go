package tensor

import (
	"fmt"
	"math"
)

// Add returns the element-wise sum of t and other, broadcasting size-1
// and missing leading dimensions.
func (t *Tensor[T]) Add(other *Tensor[T]) *Tensor[T] {
	return binaryOp(t, other, "tensor.Add", func(a, b T) T { return a + b })
}

// Sub returns the element-wise difference t - other with broadcasting.
func (t *Tensor[T]) Sub(other *Tensor[T]) *Tensor[T] {
	return binaryOp(t, other, "tensor.Sub", func(a, b T) T { return a - b })
}

// Mul returns the element-wise (Hadamard) product with broadcasting.
func (t *Tensor[T]) Mul(other *Tensor[T]) *Tensor[T] {
	return binaryOp(t, other, "tensor.Mul", func(a, b T) T { return a * b })
}

// Div returns the element-wise quotient t / other with broadcasting.
func (t *Tensor[T]) Div(other *Tensor[T]) *Tensor[T] {
	return binaryOp(t, other, "tensor.Div", func(a, b T) T { return a / b })
}

// AddScalar adds s to every element.
func (t *Tensor[T]) AddScalar(s T) *Tensor[T] {
	return t.unaryOp(func(v T) T { return v + s })
}

// MulScalar multiplies every element by s.
func (t *Tensor[T]) MulScalar(s T) *Tensor[T] {
	return t.unaryOp(func(v T) T { return v * s })
}

// Exp applies e^x element-wise.
func (t *Tensor[T]) Exp() *Tensor[T] {
	return t.unaryOp(func(v T) T { return T(math.Exp(float64(v))) })
}

// Sin applies sin(x) element-wise.
func (t *Tensor[T]) Sin() *Tensor[T] {
	return t.unaryOp(func(v T) T { return T(math.Sin(float64(v))) })
}

// Cos applies cos(x) element-wise.
func (t *Tensor[T]) Cos() *Tensor[T] {
	return t.unaryOp(func(v T) T { return T(math.Cos(float64(v))) })
}

// Sqrt applies the square root element-wise.
func (t *Tensor[T]) Sqrt() *Tensor[T] {
	return t.unaryOp(func(v T) T { return T(math.Sqrt(float64(v))) })
}

// Rsqrt applies the reciprocal square root element-wise.
func (t *Tensor[T]) Rsqrt() *Tensor[T] {
	return t.unaryOp(func(v T) T { return T(1.0 / math.Sqrt(float64(v))) })
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T]) ReLU() *Tensor[T] {
	return t.unaryOp(func(v T) T {
		if v < 0 {
			return 0
		}
		return v
	})
}

func (t *Tensor[T]) unaryOp(f func(T) T) *Tensor[T] {
	out := Zeros[T](t.shape)
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// binaryOp applies f element-wise with numpy-style broadcasting: shapes
// are aligned at the trailing dimensions, and each dimension pair must
// either match or contain a 1.
func binaryOp[T DType](a, b *Tensor[T], op string, f func(x, y T) T) *Tensor[T] {
	// Fast path: identical shapes need no index arithmetic.
	if a.shape.Equal(b.shape) {
		out := Zeros[T](a.shape)
		for i := range a.data {
			out.data[i] = f(a.data[i], b.data[i])
		}
		return out
	}

	outShape := broadcastShapes(a.shape, b.shape, op)
	out := Zeros[T](outShape)
	aStrides := broadcastStrides(a.shape, outShape)
	bStrides := broadcastStrides(b.shape, outShape)

	idx := make([]int, len(outShape))
	for i := range out.data {
		aOff, bOff := 0, 0
		for d := range idx {
			aOff += idx[d] * aStrides[d]
			bOff += idx[d] * bStrides[d]
		}
		out.data[i] = f(a.data[aOff], b.data[bOff])
		increment(idx, outShape)
	}
	return out
}

// broadcastShapes computes the broadcast result shape or panics.
func broadcastShapes(a, b Shape, op string) Shape {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		ad, bd := 1, 1
		if i >= n-len(a) {
			ad = a[i-(n-len(a))]
		}
		if i >= n-len(b) {
			bd = b[i-(n-len(b))]
		}
		switch {
		case ad == bd:
			out[i] = ad
		case ad == 1:
			out[i] = bd
		case bd == 1:
			out[i] = ad
		default:
			panic(fmt.Sprintf("%s: shapes %v and %v are not broadcastable", op, a, b))
		}
	}
	return out
}

// broadcastStrides returns strides for src aligned to the broadcast
// shape, with 0 for broadcast (size-1 or missing) dimensions.
func broadcastStrides(src, out Shape) []int {
	srcStrides := src.Strides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		if i < offset || src[i-offset] == 1 {
			strides[i] = 0
		} else {
			strides[i] = srcStrides[i-offset]
		}
	}
	return strides
}
