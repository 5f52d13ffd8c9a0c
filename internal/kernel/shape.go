package kernel

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// Reshape reinterprets the row-major data of a under a new shape.
func Reshape(a *ir.Tensor, shape []int64) (*ir.Tensor, error) {
	if ir.NumElements(shape) != int64(len(a.Data)) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpReshape, "cannot reshape %v into %v", a.Shape, shape)
	}
	return &ir.Tensor{
		Shape: append([]int64(nil), shape...),
		Elem:  a.Elem,
		Data:  append([]uint64(nil), a.Data...),
	}, nil
}

// PermuteAxes transposes a so that output axis i is input axis perm[i].
func PermuteAxes(a *ir.Tensor, perm []int64) (*ir.Tensor, error) {
	if len(perm) != len(a.Shape) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpPermuteAxes, "permutation %v does not match rank %d", perm, len(a.Shape))
	}
	outShape := make([]int64, len(perm))
	for i, p := range perm {
		outShape[i] = a.Shape[p]
	}
	inStrides := ir.Strides(a.Shape)
	outStrides := ir.Strides(outShape)
	out := make([]uint64, len(a.Data))
	for flat := range out {
		rem := int64(flat)
		var src int64
		for i := range outShape {
			coord := rem / outStrides[i]
			rem %= outStrides[i]
			src += coord * inStrides[perm[i]]
		}
		out[flat] = a.Data[src]
	}
	return &ir.Tensor{Shape: outShape, Elem: a.Elem, Data: out}, nil
}

// Get selects the sub-array at a prefix of indices.
func Get(a *ir.Tensor, indices []int64) (*ir.Tensor, error) {
	if len(indices) > len(a.Shape) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpGet, "index %v too long for shape %v", indices, a.Shape)
	}
	strides := ir.Strides(a.Shape)
	var off int64
	for i, idx := range indices {
		if idx < 0 || idx >= a.Shape[i] {
			return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpGet, "index %v out of range for shape %v", indices, a.Shape)
		}
		off += idx * strides[i]
	}
	rest := a.Shape[len(indices):]
	n := ir.NumElements(rest)
	return &ir.Tensor{
		Shape: append([]int64(nil), rest...),
		Elem:  a.Elem,
		Data:  append([]uint64(nil), a.Data[off:off+n]...),
	}, nil
}

// decodeIndices interprets an index tensor and checks every entry against
// the dimension it addresses.
func decodeIndices(op ir.OpKind, idx *ir.Tensor, dim int64) ([]int64, error) {
	out := make([]int64, len(idx.Data))
	for i := range idx.Data {
		v := idx.Int(i)
		if v < 0 || v >= dim {
			return nil, errorf(ir.ErrCodeShapeMismatch, op, "index %d out of range [0, %d)", v, dim)
		}
		out[i] = v
	}
	return out, nil
}

// Gather replaces axis of a by the shape of idx, taking slices at the
// listed positions.
func Gather(a, idx *ir.Tensor, axis int64) (*ir.Tensor, error) {
	if axis < 0 || axis >= int64(len(a.Shape)) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpGather, "axis %d out of range for rank %d", axis, len(a.Shape))
	}
	positions, err := decodeIndices(ir.OpGather, idx, a.Shape[axis])
	if err != nil {
		return nil, err
	}
	outer := ir.NumElements(a.Shape[:axis])
	row := ir.NumElements(a.Shape[axis+1:])
	dim := a.Shape[axis]

	out := make([]uint64, 0, outer*int64(len(positions))*row)
	for o := int64(0); o < outer; o++ {
		for _, p := range positions {
			start := (o*dim + p) * row
			out = append(out, a.Data[start:start+row]...)
		}
	}
	shape := append([]int64(nil), a.Shape[:axis]...)
	shape = append(shape, idx.Shape...)
	shape = append(shape, a.Shape[axis+1:]...)
	return &ir.Tensor{Shape: shape, Elem: a.Elem, Data: out}, nil
}

// Scatter is the adjoint of a 1-D Gather: slice j of a along axis is added
// into position idx[j] of a zero tensor whose axis has length count.
// Repeated indices accumulate.
func Scatter(a, idx *ir.Tensor, axis, count int64) (*ir.Tensor, error) {
	if axis < 0 || axis >= int64(len(a.Shape)) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpScatter, "axis %d out of range for rank %d", axis, len(a.Shape))
	}
	if len(idx.Shape) != 1 || idx.Shape[0] != a.Shape[axis] {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpScatter, "indices must be 1-D of length %d", a.Shape[axis])
	}
	positions, err := decodeIndices(ir.OpScatter, idx, count)
	if err != nil {
		return nil, err
	}
	outer := ir.NumElements(a.Shape[:axis])
	row := ir.NumElements(a.Shape[axis+1:])
	dim := a.Shape[axis]

	shape := append([]int64(nil), a.Shape...)
	shape[axis] = count
	out := make([]uint64, outer*count*row)
	mask := a.Elem.Mask()
	for o := int64(0); o < outer; o++ {
		for j, p := range positions {
			src := (o*dim + int64(j)) * row
			dst := (o*count + p) * row
			for r := int64(0); r < row; r++ {
				out[dst+r] = (out[dst+r] + a.Data[src+r]) & mask
			}
		}
	}
	return &ir.Tensor{Shape: shape, Elem: a.Elem, Data: out}, nil
}

// Stack joins tensors of one shape along a new leading axis.
func Stack(ts []*ir.Tensor) (*ir.Tensor, error) {
	if len(ts) == 0 {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpStack, "nothing to stack")
	}
	first := ts[0]
	out := make([]uint64, 0, len(ts)*len(first.Data))
	for i, t := range ts {
		if t.Elem != first.Elem || !ir.ShapesEqual(t.Shape, first.Shape) {
			return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpStack, "input %d has shape %v, expected %v", i, t.Shape, first.Shape)
		}
		out = append(out, t.Data...)
	}
	shape := append([]int64{int64(len(ts))}, first.Shape...)
	return &ir.Tensor{Shape: shape, Elem: first.Elem, Data: out}, nil
}
