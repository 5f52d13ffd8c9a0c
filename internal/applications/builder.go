package applications

import (
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// builder records the first construction error so programs can be written
// as straight-line code and checked once at the end.
type builder struct {
	g   *graph.Graph
	err error
}

func (b *builder) apply(op ir.Op, inputs ...*graph.Node) *graph.Node {
	if b.err != nil {
		return nil
	}
	n, err := b.g.Apply(op, inputs...)
	if err != nil {
		b.err = err
		return nil
	}
	return n
}

func (b *builder) input(t ir.Type, party int, name string) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpInput, Type: t, Party: party, Name: name})
}

// indices adds a public u64 index vector.
func (b *builder) indices(xs []int64) *graph.Node {
	data := make([]uint64, len(xs))
	for i, x := range xs {
		data[i] = uint64(x)
	}
	v, err := ir.NewTensor([]int64{int64(len(xs))}, ir.UINT64, data)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return nil
	}
	return b.apply(ir.Op{Kind: ir.OpConstant, Type: v.Type(), Value: v})
}

func (b *builder) binary(kind ir.OpKind, x, y *graph.Node) *graph.Node {
	return b.apply(ir.Op{Kind: kind}, x, y)
}

func (b *builder) gather(a *graph.Node, idx []int64) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpGather}, a, b.indices(idx))
}

func (b *builder) scatter(a *graph.Node, idx []int64, count int64) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpScatter, Count: count}, a, b.indices(idx))
}

func (b *builder) reshape(a *graph.Node, t ir.Type) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpReshape, Type: t}, a)
}

// transpose swaps the axes of a matrix.
func (b *builder) transpose(a *graph.Node) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpPermuteAxes, Axes: []int64{1, 0}}, a)
}

func (b *builder) sel(cond, x, y *graph.Node) *graph.Node {
	return b.apply(ir.Op{Kind: ir.OpSelect}, cond, x, y)
}

func (b *builder) finish(outputs ...*graph.Node) (*graph.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.g.FinalizeNodes(outputs...); err != nil {
		return nil, err
	}
	return b.g, nil
}

// union stacks the n-element arrays of parties 0 and 1 into one array of
// 2n elements.
func (b *builder) union(elem ir.ScalarType, n int64) *graph.Node {
	x := b.input(ir.Array(elem, n), 0, "alice")
	y := b.input(ir.Array(elem, n), 1, "bob")
	both := b.apply(ir.Op{Kind: ir.OpStack}, x, y)
	return b.reshape(both, ir.Array(elem, 2*n))
}

func span(lo, hi, step int64) []int64 {
	var out []int64
	for i := lo; i < hi; i += step {
		out = append(out, i)
	}
	return out
}
