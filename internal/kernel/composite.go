package kernel

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

func asComposite(op ir.OpKind, v ir.Value) (*ir.Composite, error) {
	c, ok := v.(*ir.Composite)
	if !ok {
		return nil, errorf(ir.ErrCodeTypeMismatch, op, "expected composite value, got %T", v)
	}
	return c, nil
}

func asTensor(op ir.OpKind, v ir.Value) (*ir.Tensor, error) {
	t, ok := v.(*ir.Tensor)
	if !ok {
		return nil, errorf(ir.ErrCodeTypeMismatch, op, "expected tensor value, got %T", v)
	}
	return t, nil
}

// TupleGet returns component i of a tuple, named tuple or vector value.
func TupleGet(v ir.Value, i int64) (ir.Value, error) {
	c, err := asComposite(ir.OpTupleGet, v)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= int64(len(c.Elems)) {
		return nil, errorf(ir.ErrCodeUnknownField, ir.OpTupleGet, "index %d out of range for %d components", i, len(c.Elems))
	}
	return c.Elems[i], nil
}

// VectorGet returns the element of a vector at a runtime index.
func VectorGet(v ir.Value, idx *ir.Tensor) (ir.Value, error) {
	c, err := asComposite(ir.OpVectorGet, v)
	if err != nil {
		return nil, err
	}
	i := idx.Int(0)
	if i < 0 || i >= int64(len(c.Elems)) {
		return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpVectorGet, "index %d out of range for vector of length %d", i, len(c.Elems))
	}
	return c.Elems[i], nil
}

// Zip pairs up vectors of equal length into a vector of tuples.
func Zip(vs []ir.Value) (ir.Value, error) {
	cs := make([]*ir.Composite, len(vs))
	for i, v := range vs {
		c, err := asComposite(ir.OpZip, v)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(c.Elems) != len(cs[0].Elems) {
			return nil, errorf(ir.ErrCodeShapeMismatch, ir.OpZip, "vector lengths differ: %d vs %d", len(cs[0].Elems), len(c.Elems))
		}
		cs[i] = c
	}
	n := 0
	if len(cs) > 0 {
		n = len(cs[0].Elems)
	}
	rows := make([]ir.Value, n)
	for j := range rows {
		row := make([]ir.Value, len(cs))
		for i, c := range cs {
			row[i] = c.Elems[j]
		}
		rows[j] = &ir.Composite{Elems: row}
	}
	return &ir.Composite{Elems: rows}, nil
}

// Repeat builds a vector holding count copies of v.
func Repeat(v ir.Value, count int64) ir.Value {
	elems := make([]ir.Value, count)
	for i := range elems {
		elems[i] = ir.Clone(v)
	}
	return &ir.Composite{Elems: elems}
}

// ArrayToVector splits an array along its first axis.
func ArrayToVector(a *ir.Tensor) (ir.Value, error) {
	if len(a.Shape) == 0 {
		return nil, errorf(ir.ErrCodeTypeMismatch, ir.OpArrayToVector, "input must be an array")
	}
	elems := make([]ir.Value, a.Shape[0])
	for i := range elems {
		sub, err := Get(a, []int64{int64(i)})
		if err != nil {
			return nil, err
		}
		elems[i] = sub
	}
	return &ir.Composite{Elems: elems}, nil
}

// VectorToArray stacks the tensors of a vector along a new leading axis.
func VectorToArray(v ir.Value) (*ir.Tensor, error) {
	c, err := asComposite(ir.OpVectorToArray, v)
	if err != nil {
		return nil, err
	}
	ts := make([]*ir.Tensor, len(c.Elems))
	for i, e := range c.Elems {
		t, err := asTensor(ir.OpVectorToArray, e)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return Stack(ts)
}
