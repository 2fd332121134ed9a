package tensor

import (
	"fmt"
	"strings"
)

// Shape describes the dimensions of a tensor, outermost first.
//
// Shapes are part of every operation's contract: ops validate their
// operands' shapes up front and panic with a descriptive message on
// mismatch rather than silently broadcasting.
type Shape []int

// NumElements returns the total number of elements a tensor of this
// shape holds. The empty shape describes a scalar and has one element.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if d != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Strides returns row-major strides for the shape.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

// String formats the shape as [d0, d1, ...].
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// validate panics if any dimension is non-positive.
func (s Shape) validate(op string) {
	for i, d := range s {
		if d <= 0 {
			panic(fmt.Sprintf("%s: invalid shape %v (dimension %d is %d)", op, s, i, d))
		}
	}
}
