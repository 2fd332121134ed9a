// Package tensor implements the n-dimensional arrays that carry all data
// through the attention pipeline.
//
// Tensors are dense, row-major and CPU-resident. The element type is a
// type parameter restricted by DType: float32 for activations and
// parameters, int32 for token indices. Shape mismatches are contract
// violations and panic immediately with the offending shapes; only
// fallible construction from external data returns an error.
package tensor

import (
	"math/rand"

	"github.com/pkg/errors"
)

// DType constrains the element types a Tensor can hold.
type DType interface {
	~float32 | ~int32
}

// Tensor is a dense n-dimensional array of T in row-major order.
type Tensor[T DType] struct {
	data  []T
	shape Shape
}

// New wraps an existing slice as a tensor without copying.
// The slice length must match the shape exactly.
func New[T DType](data []T, shape Shape) (*Tensor[T], error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("tensor: shape %v requires %d elements, got %d",
			shape, shape.NumElements(), len(data))
	}
	return &Tensor[T]{data: data, shape: shape.Clone()}, nil
}

// FromSlice creates a tensor by copying data into fresh storage.
func FromSlice[T DType](data []T, shape Shape) (*Tensor[T], error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("tensor: shape %v requires %d elements, got %d",
			shape, shape.NumElements(), len(data))
	}
	buf := make([]T, len(data))
	copy(buf, data)
	return &Tensor[T]{data: buf, shape: shape.Clone()}, nil
}

// MustFromSlice is FromSlice for statically known shapes; it panics on
// a length mismatch.
func MustFromSlice[T DType](data []T, shape Shape) *Tensor[T] {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor's shape. Callers must not mutate it.
func (t *Tensor[T]) Shape() Shape {
	return t.shape
}

// Dims returns the number of dimensions.
func (t *Tensor[T]) Dims() int {
	return len(t.shape)
}

// NumElements returns the total element count.
func (t *Tensor[T]) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Mutations are visible to every view
// of the tensor.
func (t *Tensor[T]) Data() []T {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor[T]) Clone() *Tensor[T] {
	buf := make([]T, len(t.data))
	copy(buf, t.data)
	return &Tensor[T]{data: buf, shape: t.shape.Clone()}
}

// At returns the element at the given multi-index.
func (t *Tensor[T]) At(idx ...int) T {
	return t.data[t.offset(idx)]
}

// Set stores v at the given multi-index.
func (t *Tensor[T]) Set(v T, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor[T]) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(errors.Errorf("tensor: index %v does not match shape %v", idx, t.shape))
	}
	off := 0
	for i, strides := 0, t.shape.Strides(); i < len(idx); i++ {
		if idx[i] < 0 || idx[i] >= t.shape[i] {
			panic(errors.Errorf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off += idx[i] * strides[i]
	}
	return off
}

// Zeros creates a zero-filled tensor.
func Zeros[T DType](shape Shape) *Tensor[T] {
	shape.validate("tensor.Zeros")
	return &Tensor[T]{data: make([]T, shape.NumElements()), shape: shape.Clone()}
}

// Ones creates a tensor filled with ones.
func Ones[T DType](shape Shape) *Tensor[T] {
	return Full[T](shape, 1)
}

// Full creates a tensor filled with value.
func Full[T DType](shape Shape, value T) *Tensor[T] {
	shape.validate("tensor.Full")
	t := &Tensor[T]{data: make([]T, shape.NumElements()), shape: shape.Clone()}
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with elements drawn from N(0, 1).
func Randn(shape Shape) *Tensor[float32] {
	shape.validate("tensor.Randn")
	t := &Tensor[float32]{data: make([]float32, shape.NumElements()), shape: shape.Clone()}
	for i := range t.data {
		t.data[i] = float32(rand.NormFloat64()) //nolint:gosec // weight init, not crypto
	}
	return t
}

// Arange creates a 1-D int32 tensor holding 0, 1, ..., n-1.
func Arange(n int) *Tensor[int32] {
	data := make([]int32, n)
	for i := range data {
		data[i] = int32(i)
	}
	return &Tensor[int32]{data: data, shape: Shape{n}}
}
