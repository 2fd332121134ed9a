package tensor

import "fmt"

// EmbeddingLookup gathers rows of a [vocab, dim] weight matrix by token
// index. The result shape is the index shape with dim appended, e.g.
// indices [batch, seq] produce [batch, seq, dim].
//
// Out-of-range indices violate the embedding contract and panic with
// the offending index and vocabulary size.
func EmbeddingLookup(weight *Tensor[float32], indices *Tensor[int32]) *Tensor[float32] {
	if len(weight.shape) != 2 {
		panic(fmt.Sprintf("tensor.EmbeddingLookup: weight must be [vocab, dim], got %v", weight.shape))
	}
	vocab, dim := weight.shape[0], weight.shape[1]

	outShape := make(Shape, 0, len(indices.shape)+1)
	outShape = append(outShape, indices.shape...)
	outShape = append(outShape, dim)
	out := Zeros[float32](outShape)

	for i, id := range indices.data {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("tensor.EmbeddingLookup: index %d out of range [0, %d)", id, vocab))
		}
		copy(out.data[i*dim:(i+1)*dim], weight.data[int(id)*dim:(int(id)+1)*dim])
	}
	return out
}
