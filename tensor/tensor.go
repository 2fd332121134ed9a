// Copyright 2025 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public API for Loom's n-dimensional arrays.
//
// Tensors are dense, row-major, CPU-resident arrays of float32
// (activations, parameters) or int32 (token indices). Shapes are part
// of every operation's contract; mismatches panic with the offending
// shapes.
//
// Example:
//
//	x := tensor.Randn(tensor.Shape{2, 3})
//	y := tensor.Ones[float32](tensor.Shape{2, 3})
//	z := x.Add(y)
package tensor

import "github.com/loom-ml/loom/internal/tensor"

// DType constrains tensor element types: float32 or int32.
type DType = tensor.DType

// Shape describes tensor dimensions, outermost first.
type Shape = tensor.Shape

// Tensor is a dense n-dimensional array.
type Tensor[T DType] = tensor.Tensor[T]

// New wraps a slice as a tensor without copying.
func New[T DType](data []T, shape Shape) (*Tensor[T], error) {
	return tensor.New(data, shape)
}

// FromSlice creates a tensor by copying data.
func FromSlice[T DType](data []T, shape Shape) (*Tensor[T], error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is FromSlice that panics on length mismatch.
func MustFromSlice[T DType](data []T, shape Shape) *Tensor[T] {
	return tensor.MustFromSlice(data, shape)
}

// Zeros creates a zero-filled tensor.
func Zeros[T DType](shape Shape) *Tensor[T] {
	return tensor.Zeros[T](shape)
}

// Ones creates a tensor filled with ones.
func Ones[T DType](shape Shape) *Tensor[T] {
	return tensor.Ones[T](shape)
}

// Full creates a tensor filled with value.
func Full[T DType](shape Shape, value T) *Tensor[T] {
	return tensor.Full(shape, value)
}

// Randn creates a float32 tensor drawn from N(0, 1).
func Randn(shape Shape) *Tensor[float32] {
	return tensor.Randn(shape)
}

// Arange creates a 1-D int32 tensor holding 0..n-1.
func Arange(n int) *Tensor[int32] {
	return tensor.Arange(n)
}

// Cat concatenates tensors along dim.
func Cat[T DType](tensors []*Tensor[T], dim int) *Tensor[T] {
	return tensor.Cat(tensors, dim)
}

// EmbeddingLookup gathers rows of a [vocab, dim] table by index.
func EmbeddingLookup(weight *Tensor[float32], indices *Tensor[int32]) *Tensor[float32] {
	return tensor.EmbeddingLookup(weight, indices)
}
