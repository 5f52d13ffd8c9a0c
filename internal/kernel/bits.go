package kernel

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// Cast converts every element to the target scalar type. Signed sources
// sign-extend, unsigned sources zero-extend, and narrowing keeps the low
// bits. Casting to BIT keeps the least significant bit.
func Cast(a *ir.Tensor, to ir.ScalarType) *ir.Tensor {
	from := a.Elem
	return unary(a, to, func(x uint64) uint64 {
		if from.Signed {
			return uint64(ir.Interpret(from, x))
		}
		return x
	})
}

// ToBits decomposes every element into its bits, least significant first,
// appending a trailing axis of length bits.
func ToBits(a *ir.Tensor) *ir.Tensor {
	w := a.Elem.Bits
	out := make([]uint64, 0, len(a.Data)*w)
	for _, x := range a.Data {
		for i := 0; i < w; i++ {
			out = append(out, (x>>uint(i))&1)
		}
	}
	shape := append(append([]int64(nil), a.Shape...), int64(w))
	return &ir.Tensor{Shape: shape, Elem: ir.BIT, Data: out}
}

// FromBits is the inverse of ToBits: the trailing axis, of length
// to.Bits, is recombined into one element per position.
func FromBits(a *ir.Tensor, to ir.ScalarType) (*ir.Tensor, error) {
	if len(a.Shape) == 0 || a.Shape[len(a.Shape)-1] != int64(to.Bits) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpFromBits, "shape %v does not end in %d bits", a.Shape, to.Bits)
	}
	w := to.Bits
	n := len(a.Data) / w
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		var x uint64
		for j := 0; j < w; j++ {
			x |= (a.Data[i*w+j] & 1) << uint(j)
		}
		out[i] = x & to.Mask()
	}
	shape := append([]int64(nil), a.Shape[:len(a.Shape)-1]...)
	return &ir.Tensor{Shape: shape, Elem: to, Data: out}, nil
}
