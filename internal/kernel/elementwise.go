package kernel

import (
	"math"

	"github.com/roach88/mpcgraph/internal/ir"
)

// binaryFunc combines two raw ring elements. Results are masked by the caller.
type binaryFunc func(x, y uint64) uint64

func broadcastBinary(op ir.OpKind, a, b *ir.Tensor, elem ir.ScalarType, f binaryFunc) (*ir.Tensor, error) {
	shape, err := ir.BroadcastShapes(a.Shape, b.Shape)
	if err != nil {
		return nil, errorf(ir.ErrCodeShapeMismatch, op, "%v", err)
	}
	n := ir.NumElements(shape)
	out := make([]uint64, n)
	mask := elem.Mask()
	for i := int64(0); i < n; i++ {
		x := a.Data[ir.BroadcastIndex(i, shape, a.Shape)]
		y := b.Data[ir.BroadcastIndex(i, shape, b.Shape)]
		out[i] = f(x, y) & mask
	}
	return &ir.Tensor{Shape: shape, Elem: elem, Data: out}, nil
}

func unary(a *ir.Tensor, elem ir.ScalarType, f func(x uint64) uint64) *ir.Tensor {
	out := make([]uint64, len(a.Data))
	mask := elem.Mask()
	for i, x := range a.Data {
		out[i] = f(x) & mask
	}
	return &ir.Tensor{Shape: append([]int64(nil), a.Shape...), Elem: elem, Data: out}
}

// Add returns a + b with broadcasting. For BIT operands this is XOR.
func Add(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpAdd, a, b, a.Elem, func(x, y uint64) uint64 { return x + y })
}

// Subtract returns a - b with broadcasting.
func Subtract(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpSubtract, a, b, a.Elem, func(x, y uint64) uint64 { return x - y })
}

// Multiply returns the elementwise product. For BIT operands this is AND.
func Multiply(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpMultiply, a, b, a.Elem, func(x, y uint64) uint64 { return x * y })
}

// MixedMultiply multiplies an integer tensor by a bit tensor.
func MixedMultiply(a, bits *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpMixedMultiply, a, bits, a.Elem, func(x, y uint64) uint64 { return x * (y & 1) })
}

// Negate returns -a.
func Negate(a *ir.Tensor) *ir.Tensor {
	return unary(a, a.Elem, func(x uint64) uint64 { return -x })
}

// Not flips every bit of a BIT tensor.
func Not(a *ir.Tensor) *ir.Tensor {
	return unary(a, a.Elem, func(x uint64) uint64 { return x ^ 1 })
}

// And returns the elementwise conjunction of BIT tensors.
func And(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpAnd, a, b, ir.BIT, func(x, y uint64) uint64 { return x & y })
}

// Or returns the elementwise disjunction of BIT tensors.
func Or(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpOr, a, b, ir.BIT, func(x, y uint64) uint64 { return x | y })
}

// Xor returns the elementwise exclusive or of BIT tensors.
func Xor(a, b *ir.Tensor) (*ir.Tensor, error) {
	return broadcastBinary(ir.OpXor, a, b, ir.BIT, func(x, y uint64) uint64 { return x ^ y })
}

// Truncate divides every element by scale. Signed elements are divided as
// two's complement integers and round toward zero; unsigned elements use
// floor division.
func Truncate(a *ir.Tensor, scale uint64) (*ir.Tensor, error) {
	if scale == 0 {
		return nil, errorf(ir.ErrCodeInvalidAttribute, ir.OpTruncate, "scale must be positive")
	}
	elem := a.Elem
	if !elem.Signed {
		return unary(a, elem, func(x uint64) uint64 { return x / scale }), nil
	}
	return unary(a, elem, func(x uint64) uint64 {
		v := ir.Interpret(elem, x)
		if scale > math.MaxInt64 {
			if v == math.MinInt64 && scale == 1<<63 {
				return ^uint64(0)
			}
			return 0
		}
		return uint64(v / int64(scale))
	}), nil
}

// Compare evaluates a comparison op elementwise and returns a BIT tensor.
// Order comparisons honour the signedness of the element type.
func Compare(kind ir.OpKind, a, b *ir.Tensor) (*ir.Tensor, error) {
	elem := a.Elem
	less := func(x, y uint64) bool {
		if elem.Signed {
			return ir.Interpret(elem, x) < ir.Interpret(elem, y)
		}
		return x < y
	}
	var pred func(x, y uint64) bool
	switch kind {
	case ir.OpEqual:
		pred = func(x, y uint64) bool { return x == y }
	case ir.OpNotEqual:
		pred = func(x, y uint64) bool { return x != y }
	case ir.OpLessThan:
		pred = less
	case ir.OpLessThanEqual:
		pred = func(x, y uint64) bool { return !less(y, x) }
	case ir.OpGreaterThan:
		pred = func(x, y uint64) bool { return less(y, x) }
	case ir.OpGreaterThanEqual:
		pred = func(x, y uint64) bool { return !less(x, y) }
	default:
		return nil, errorf(ir.ErrCodeInvalidAttribute, kind, "not a comparison")
	}
	return broadcastBinary(kind, a, b, ir.BIT, func(x, y uint64) uint64 {
		if pred(x, y) {
			return 1
		}
		return 0
	})
}

// Select picks a where cond is 1 and b where it is 0, with broadcasting
// over all three operands.
func Select(cond, a, b *ir.Tensor) (*ir.Tensor, error) {
	shape, err := ir.BroadcastShapes(cond.Shape, a.Shape, b.Shape)
	if err != nil {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpSelect, "%v", err)
	}
	n := ir.NumElements(shape)
	out := make([]uint64, n)
	for i := int64(0); i < n; i++ {
		if cond.Data[ir.BroadcastIndex(i, shape, cond.Shape)]&1 == 1 {
			out[i] = a.Data[ir.BroadcastIndex(i, shape, a.Shape)]
		} else {
			out[i] = b.Data[ir.BroadcastIndex(i, shape, b.Shape)]
		}
	}
	return &ir.Tensor{Shape: shape, Elem: a.Elem, Data: out}, nil
}
