package tensor

import "fmt"

// Reshape returns a view of the tensor with a new shape. The element
// count must be preserved; Reshape never copies data.
func (t *Tensor[T]) Reshape(dims ...int) *Tensor[T] {
	shape := Shape(dims)
	shape.validate("tensor.Reshape")
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, len(t.data), shape, shape.NumElements()))
	}
	return &Tensor[T]{data: t.data, shape: shape.Clone()}
}

// Transpose permutes the tensor's dimensions.
//
// With no arguments it swaps the two dimensions of a matrix. Otherwise
// perm must be a full permutation of the dimension indices, e.g.
// Transpose(0, 2, 1, 3) swaps the middle axes of a 4-D tensor.
// Transpose always materializes a contiguous copy.
func (t *Tensor[T]) Transpose(perm ...int) *Tensor[T] {
	if len(perm) == 0 {
		if len(t.shape) != 2 {
			panic(fmt.Sprintf("tensor.Transpose: implicit transpose requires a matrix, got shape %v", t.shape))
		}
		perm = []int{1, 0}
	}
	if len(perm) != len(t.shape) {
		panic(fmt.Sprintf("tensor.Transpose: permutation %v does not match shape %v", perm, t.shape))
	}
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			panic(fmt.Sprintf("tensor.Transpose: %v is not a permutation of %d dims", perm, len(t.shape)))
		}
		seen[p] = true
	}

	outShape := make(Shape, len(perm))
	for i, p := range perm {
		outShape[i] = t.shape[p]
	}

	out := Zeros[T](outShape)
	srcStrides := t.shape.Strides()
	idx := make([]int, len(outShape))
	for i := range out.data {
		srcOff := 0
		for d, p := range perm {
			srcOff += idx[d] * srcStrides[p]
		}
		out.data[i] = t.data[srcOff]
		increment(idx, outShape)
	}
	return out
}

// Unsqueeze inserts a size-1 dimension at position dim.
func (t *Tensor[T]) Unsqueeze(dim int) *Tensor[T] {
	if dim < 0 {
		dim += len(t.shape) + 1
	}
	if dim < 0 || dim > len(t.shape) {
		panic(fmt.Sprintf("tensor.Unsqueeze: dim %d out of range for shape %v", dim, t.shape))
	}
	shape := make(Shape, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:dim]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[dim:]...)
	return &Tensor[T]{data: t.data, shape: shape}
}

// Narrow returns a copy of the tensor restricted to [start, start+length)
// along dim.
func (t *Tensor[T]) Narrow(dim, start, length int) *Tensor[T] {
	if dim < 0 {
		dim += len(t.shape)
	}
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("tensor.Narrow: dim %d out of range for shape %v", dim, t.shape))
	}
	if start < 0 || length <= 0 || start+length > t.shape[dim] {
		panic(fmt.Sprintf("tensor.Narrow: range [%d, %d) out of bounds for dimension %d of shape %v",
			start, start+length, dim, t.shape))
	}

	outShape := t.shape.Clone()
	outShape[dim] = length
	out := Zeros[T](outShape)

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(t.shape); i++ {
		inner *= t.shape[i]
	}

	for o := 0; o < outer; o++ {
		srcBase := (o*t.shape[dim] + start) * inner
		dstBase := o * length * inner
		copy(out.data[dstBase:dstBase+length*inner], t.data[srcBase:srcBase+length*inner])
	}
	return out
}

// Cat concatenates tensors along dim. All inputs must share every
// dimension except dim.
func Cat[T DType](tensors []*Tensor[T], dim int) *Tensor[T] {
	if len(tensors) == 0 {
		panic("tensor.Cat: no tensors to concatenate")
	}
	first := tensors[0]
	if dim < 0 {
		dim += len(first.shape)
	}
	if dim < 0 || dim >= len(first.shape) {
		panic(fmt.Sprintf("tensor.Cat: dim %d out of range for shape %v", dim, first.shape))
	}

	total := 0
	for _, t := range tensors {
		if len(t.shape) != len(first.shape) {
			panic(fmt.Sprintf("tensor.Cat: rank mismatch %v vs %v", first.shape, t.shape))
		}
		for d := range t.shape {
			if d != dim && t.shape[d] != first.shape[d] {
				panic(fmt.Sprintf("tensor.Cat: shapes %v and %v differ outside dim %d", first.shape, t.shape, dim))
			}
		}
		total += t.shape[dim]
	}

	outShape := first.shape.Clone()
	outShape[dim] = total
	out := Zeros[T](outShape)

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= first.shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(first.shape); i++ {
		inner *= first.shape[i]
	}

	for o := 0; o < outer; o++ {
		dstOff := o * total * inner
		for _, t := range tensors {
			n := t.shape[dim] * inner
			copy(out.data[dstOff:dstOff+n], t.data[o*n:(o+1)*n])
			dstOff += n
		}
	}
	return out
}

// increment advances a multi-index in row-major order.
func increment(idx []int, shape Shape) {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < shape[d] {
			return
		}
		idx[d] = 0
	}
}
