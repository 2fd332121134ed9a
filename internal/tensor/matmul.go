package tensor

import (
	"fmt"

	"github.com/loom-ml/loom/internal/parallel"
)

// MatMul computes the matrix product of two 2-D tensors.
//
// Shapes: [m, k] @ [k, n] -> [m, n]. Rows are processed in parallel for
// large inputs.
func (t *Tensor[T]) MatMul(other *Tensor[T]) *Tensor[T] {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic(fmt.Sprintf("tensor.MatMul: expected matrices, got shapes %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	k2, n := other.shape[0], other.shape[1]
	if k != k2 {
		panic(fmt.Sprintf("tensor.MatMul: inner dimensions differ, %v vs %v", t.shape, other.shape))
	}

	out := Zeros[T](Shape{m, n})
	parallel.For(m, func(i int) {
		matmulRow(t.data[i*k:(i+1)*k], other.data, out.data[i*n:(i+1)*n], k, n)
	})
	return out
}

// BatchMatMul computes a matrix product over the last two dimensions,
// batched over all leading dimensions.
//
// Shapes: [..., m, k] @ [..., k, n] -> [..., m, n]. The leading
// dimensions of both operands must match exactly; attention relies on
// this to keep the [batch, heads] axes aligned.
func (t *Tensor[T]) BatchMatMul(other *Tensor[T]) *Tensor[T] {
	if len(t.shape) < 2 || len(other.shape) < 2 {
		panic(fmt.Sprintf("tensor.BatchMatMul: operands must be at least 2-D, got %v and %v", t.shape, other.shape))
	}
	if len(t.shape) != len(other.shape) {
		panic(fmt.Sprintf("tensor.BatchMatMul: rank mismatch, %v vs %v", t.shape, other.shape))
	}

	nd := len(t.shape)
	batch := 1
	for d := 0; d < nd-2; d++ {
		if t.shape[d] != other.shape[d] {
			panic(fmt.Sprintf("tensor.BatchMatMul: leading dimensions differ, %v vs %v", t.shape, other.shape))
		}
		batch *= t.shape[d]
	}

	m, k := t.shape[nd-2], t.shape[nd-1]
	k2, n := other.shape[nd-2], other.shape[nd-1]
	if k != k2 {
		panic(fmt.Sprintf("tensor.BatchMatMul: inner dimensions differ, %v vs %v", t.shape, other.shape))
	}

	outShape := t.shape.Clone()
	outShape[nd-2] = m
	outShape[nd-1] = n
	out := Zeros[T](outShape)

	parallel.For(batch, func(b int) {
		lhs := t.data[b*m*k : (b+1)*m*k]
		rhs := other.data[b*k*n : (b+1)*k*n]
		dst := out.data[b*m*n : (b+1)*m*n]
		for i := 0; i < m; i++ {
			matmulRow(lhs[i*k:(i+1)*k], rhs, dst[i*n:(i+1)*n], k, n)
		}
	})
	return out
}

// matmulRow accumulates one output row: dst = row @ rhs.
// Iterating k outermost keeps the rhs access pattern sequential.
func matmulRow[T DType](row, rhs, dst []T, k, n int) {
	for p := 0; p < k; p++ {
		a := row[p]
		if a == 0 {
			continue
		}
		rhsRow := rhs[p*n : (p+1)*n]
		for j := range dst {
			dst[j] += a * rhsRow[j]
		}
	}
}
