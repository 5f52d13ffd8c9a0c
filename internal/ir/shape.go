package ir

import "fmt"

// BroadcastShapes combines shapes numpy style: trailing dimensions align and
// size-1 dimensions stretch.
func BroadcastShapes(shapes ...[]int64) ([]int64, error) {
	rank := 0
	for _, s := range shapes {
		if len(s) > rank {
			rank = len(s)
		}
	}
	out := make([]int64, rank)
	for i := range out {
		out[i] = 1
	}
	for _, s := range shapes {
		off := rank - len(s)
		for i, d := range s {
			switch {
			case out[off+i] == d || d == 1:
			case out[off+i] == 1:
				out[off+i] = d
			default:
				return nil, fmt.Errorf("shapes %v are not broadcast-compatible", shapes)
			}
		}
	}
	return out, nil
}

// MatmulShape computes the result shape of a matrix product with numpy
// semantics: 1-D operands are promoted to a row (left) or column (right)
// vector and the promoted axis is dropped from the result; leading batch
// dimensions broadcast.
func MatmulShape(a, b []int64) ([]int64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, fmt.Errorf("matmul operands must have rank >= 1, got %v and %v", a, b)
	}
	aa, bb := a, b
	if len(a) == 1 {
		aa = []int64{1, a[0]}
	}
	if len(b) == 1 {
		bb = []int64{b[0], 1}
	}
	k1, k2 := aa[len(aa)-1], bb[len(bb)-2]
	if k1 != k2 {
		return nil, fmt.Errorf("matmul inner dimensions differ: %v x %v", a, b)
	}
	batch, err := BroadcastShapes(aa[:len(aa)-2], bb[:len(bb)-2])
	if err != nil {
		return nil, err
	}
	out := append([]int64(nil), batch...)
	if len(a) > 1 {
		out = append(out, aa[len(aa)-2])
	}
	if len(b) > 1 {
		out = append(out, bb[len(bb)-1])
	}
	return out, nil
}

// Strides returns row-major strides for shape.
func Strides(shape []int64) []int64 {
	st := make([]int64, len(shape))
	acc := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

// BroadcastIndex maps a flat index into the broadcast result shape to the
// flat index of an operand with shape src.
func BroadcastIndex(flat int64, out, src []int64) int64 {
	off := len(out) - len(src)
	srcStrides := Strides(src)
	idx := int64(0)
	rem := flat
	outStrides := Strides(out)
	for i := range out {
		coord := rem / outStrides[i]
		rem %= outStrides[i]
		j := i - off
		if j < 0 {
			continue
		}
		if src[j] != 1 {
			idx += coord * srcStrides[j]
		}
	}
	return idx
}
