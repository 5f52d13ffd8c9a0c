package graph

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// ids converts node handles into ids, rejecting nodes of other graphs.
func (g *Graph) ids(nodes []*Node) ([]int, error) {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		if n == nil || n.graph != g {
			return nil, ir.NewGraphError(ir.ErrCodeInvalidInputReference, g.id, len(g.nodes), "",
				"input %d is not a node of graph %d", i, g.id)
		}
		out[i] = n.ID
	}
	return out, nil
}

// Apply adds a node applying op to node handles.
func (g *Graph) Apply(op ir.Op, inputs ...*Node) (*Node, error) {
	ids, err := g.ids(inputs)
	if err != nil {
		return nil, err
	}
	return g.AddNode(op, ids...)
}

// Input adds a private input of type t owned by party.
func (g *Graph) Input(t ir.Type, party int, name string) (*Node, error) {
	return g.AddNode(ir.Op{Kind: ir.OpInput, Type: t, Party: party, Name: name})
}

// Constant adds a public constant.
func (g *Graph) Constant(t ir.Type, v ir.Value) (*Node, error) {
	return g.AddNode(ir.Op{Kind: ir.OpConstant, Type: t, Value: v})
}

// Zeros adds an all-zero constant of type t.
func (g *Graph) Zeros(t ir.Type) (*Node, error) {
	return g.AddNode(ir.Op{Kind: ir.OpZeros, Type: t})
}

func (g *Graph) Add(a, b *Node) (*Node, error)      { return g.Apply(ir.Op{Kind: ir.OpAdd}, a, b) }
func (g *Graph) Subtract(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpSubtract}, a, b) }
func (g *Graph) Multiply(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpMultiply}, a, b) }
func (g *Graph) Matmul(a, b *Node) (*Node, error)   { return g.Apply(ir.Op{Kind: ir.OpMatmul}, a, b) }
func (g *Graph) Negate(a *Node) (*Node, error)      { return g.Apply(ir.Op{Kind: ir.OpNegate}, a) }

// MixedMultiply multiplies an integer node by a bit node.
func (g *Graph) MixedMultiply(a, bits *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpMixedMultiply}, a, bits)
}

// Sum reduces over axes; no axes reduces over all of them.
func (g *Graph) Sum(a *Node, axes ...int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpSum, Axes: axes}, a)
}

// Truncate divides by a public scale.
func (g *Graph) Truncate(a *Node, scale uint64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpTruncate, Scale: scale}, a)
}

func (g *Graph) Equal(a, b *Node) (*Node, error)    { return g.Apply(ir.Op{Kind: ir.OpEqual}, a, b) }
func (g *Graph) NotEqual(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpNotEqual}, a, b) }
func (g *Graph) LessThan(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpLessThan}, a, b) }
func (g *Graph) LessThanEqual(a, b *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpLessThanEqual}, a, b)
}
func (g *Graph) GreaterThan(a, b *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpGreaterThan}, a, b)
}
func (g *Graph) GreaterThanEqual(a, b *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpGreaterThanEqual}, a, b)
}

func (g *Graph) Not(a *Node) (*Node, error)    { return g.Apply(ir.Op{Kind: ir.OpNot}, a) }
func (g *Graph) And(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpAnd}, a, b) }
func (g *Graph) Or(a, b *Node) (*Node, error)  { return g.Apply(ir.Op{Kind: ir.OpOr}, a, b) }
func (g *Graph) Xor(a, b *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpXor}, a, b) }

// Select yields a where cond is set and b elsewhere.
func (g *Graph) Select(cond, a, b *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpSelect}, cond, a, b)
}

// Cast converts elements to a scalar type.
func (g *Graph) Cast(a *Node, to ir.ScalarType) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpCast, Type: to}, a)
}

// ToBits decomposes elements into little-endian bits along a new last axis.
func (g *Graph) ToBits(a *Node) (*Node, error) { return g.Apply(ir.Op{Kind: ir.OpToBits}, a) }

// FromBits recombines the trailing bit axis into elements of type to.
func (g *Graph) FromBits(a *Node, to ir.ScalarType) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpFromBits, Type: to}, a)
}

// Reshape reinterprets a under a new tensor type with the same element count.
func (g *Graph) Reshape(a *Node, t ir.Type) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpReshape, Type: t}, a)
}

// PermuteAxes transposes a; no axes reverses them.
func (g *Graph) PermuteAxes(a *Node, axes ...int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpPermuteAxes, Axes: axes}, a)
}

// Get selects the sub-array at a prefix of indices.
func (g *Graph) Get(a *Node, indices ...int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpGet, Indices: indices}, a)
}

// Gather selects slices of a along axis at the positions held by idx.
func (g *Graph) Gather(a, idx *Node, axis int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpGather, Axis: axis}, a, idx)
}

// Scatter adds slices of a along axis into positions idx of a zero array
// whose axis has length count.
func (g *Graph) Scatter(a, idx *Node, axis, count int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpScatter, Axis: axis, Count: count}, a, idx)
}

// Stack joins nodes of one type along a new leading axis.
func (g *Graph) Stack(nodes ...*Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpStack}, nodes...)
}

func (g *Graph) CreateTuple(nodes ...*Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpCreateTuple}, nodes...)
}

// CreateNamedTuple builds a named tuple; names pair with nodes by position.
func (g *Graph) CreateNamedTuple(names []string, nodes ...*Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpCreateNamedTuple, Names: names}, nodes...)
}

func (g *Graph) TupleGet(a *Node, index int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpTupleGet, Index: index}, a)
}

func (g *Graph) NamedTupleGet(a *Node, name string) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpNamedTupleGet, Name: name}, a)
}

// CreateVector builds a vector whose elements all have type elem.
func (g *Graph) CreateVector(elem ir.Type, nodes ...*Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpCreateVector, Type: elem}, nodes...)
}

// VectorGet indexes a vector with an integer scalar node.
func (g *Graph) VectorGet(v, idx *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpVectorGet}, v, idx)
}

func (g *Graph) Zip(vectors ...*Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpZip}, vectors...)
}

func (g *Graph) Repeat(a *Node, count int64) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpRepeat, Count: count}, a)
}

func (g *Graph) ArrayToVector(a *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpArrayToVector}, a)
}

func (g *Graph) VectorToArray(v *Node) (*Node, error) {
	return g.Apply(ir.Op{Kind: ir.OpVectorToArray}, v)
}

// Call adds a call of callee with the given arguments. It fails
// CYCLIC_GRAPH_CALL when callee is g or transitively calls g.
func (g *Graph) Call(callee *Graph, args ...*Node) (*Node, error) {
	if callee == nil || callee.ctx != g.ctx {
		return nil, ir.NewGraphError(ir.ErrCodeUnknownGraph, g.id, len(g.nodes), ir.OpCall, "callee does not belong to this context")
	}
	return g.Apply(ir.Op{Kind: ir.OpCall, Graph: callee.id}, args...)
}
