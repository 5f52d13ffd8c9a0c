package kernel

import (
	"slices"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Matmul computes the matrix product with numpy semantics: 1-D operands are
// promoted to a row (left) or column (right) vector and leading batch
// dimensions broadcast. For BIT operands the ring is GF(2).
func Matmul(a, b *ir.Tensor) (*ir.Tensor, error) {
	outShape, err := ir.MatmulShape(a.Shape, b.Shape)
	if err != nil {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpMatmul, "%v", err)
	}
	as, bs := a.Shape, b.Shape
	if len(as) == 1 {
		as = []int64{1, as[0]}
	}
	if len(bs) == 1 {
		bs = []int64{bs[0], 1}
	}
	m, k, n := as[len(as)-2], as[len(as)-1], bs[len(bs)-1]
	aBatch, bBatch := as[:len(as)-2], bs[:len(bs)-2]
	batch, err := ir.BroadcastShapes(aBatch, bBatch)
	if err != nil {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpMatmul, "%v", err)
	}

	mask := a.Elem.Mask()
	batches := ir.NumElements(batch)
	out := make([]uint64, batches*m*n)
	for bi := int64(0); bi < batches; bi++ {
		aOff := ir.BroadcastIndex(bi, batch, aBatch) * m * k
		bOff := ir.BroadcastIndex(bi, batch, bBatch) * k * n
		oOff := bi * m * n
		for i := int64(0); i < m; i++ {
			for j := int64(0); j < n; j++ {
				var acc uint64
				for l := int64(0); l < k; l++ {
					acc += a.Data[aOff+i*k+l] * b.Data[bOff+l*n+j]
				}
				out[oOff+i*n+j] = acc & mask
			}
		}
	}
	return &ir.Tensor{Shape: outShape, Elem: a.Elem, Data: out}, nil
}

// Sum adds elements along the given axes. An empty axes list sums
// everything into a scalar.
func Sum(a *ir.Tensor, axes []int64) *ir.Tensor {
	if len(axes) == 0 {
		axes = make([]int64, len(a.Shape))
		for i := range axes {
			axes[i] = int64(i)
		}
	}
	var outShape []int64
	var kept []int
	for i, d := range a.Shape {
		if !slices.Contains(axes, int64(i)) {
			outShape = append(outShape, d)
			kept = append(kept, i)
		}
	}
	inStrides := ir.Strides(a.Shape)
	outStrides := ir.Strides(outShape)
	out := make([]uint64, ir.NumElements(outShape))
	for flat := range a.Data {
		rem := int64(flat)
		var o int64
		k := 0
		for i := range a.Shape {
			coord := rem / inStrides[i]
			rem %= inStrides[i]
			if k < len(kept) && kept[k] == i {
				o += coord * outStrides[k]
				k++
			}
		}
		out[o] += a.Data[flat]
	}
	mask := a.Elem.Mask()
	for i := range out {
		out[i] &= mask
	}
	return &ir.Tensor{Shape: outShape, Elem: a.Elem, Data: out}
}
