package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// val is the compiled form of a source node: the node holding its value and
// whether that value is shared (private) or plaintext (public).
type val struct {
	n       *graph.Node
	private bool
}

// lowering compiles one source graph into one output graph.
//
// Builder failures are sticky: after the first failure every emit returns
// nil and the error is reported once the current source node is done. As
// long as err is nil every node handed out is non-nil.
type lowering struct {
	c    *compiler
	src  *graph.Graph
	out  *graph.Graph
	main bool

	vals   []val
	consts map[string]*graph.Node

	at  nodeRef
	err error
}

func (l *lowering) parties() int { return l.c.cfg.Parties }

// wrap attaches the current source location to err.
func (l *lowering) wrap(err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := ir.CodeOf(err)
	if code == "" {
		code = ir.ErrCodeInvalidConfiguration
	}
	return &CompileError{
		Code:    code,
		Message: fmt.Sprintf("lowering failed: %v", err),
		Graph:   l.at.graph,
		Node:    l.at.node,
		Op:      l.at.op,
	}
}

func (l *lowering) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *lowering) apply(op ir.Op, in ...*graph.Node) *graph.Node {
	if l.err != nil {
		return nil
	}
	n, err := l.out.Apply(op, in...)
	if err != nil {
		l.fail(err)
		return nil
	}
	return n
}

func (l *lowering) unsupported(format string, args ...any) (val, error) {
	return val{}, nodeError(ir.ErrCodeUnsupportedOpForMPC, l.at, format, args...)
}

// lower compiles one source node.
func (l *lowering) lower(ctx context.Context, n *graph.Node) (val, error) {
	op := n.Op
	if op.Kind.IsProtocol() {
		return l.unsupported("protocol op %s in a source graph", op.Kind)
	}
	ins := make([]val, len(n.Inputs))
	for i, id := range n.Inputs {
		ins[i] = l.vals[id]
	}

	switch op.Kind {
	case ir.OpInput:
		if l.main && !l.c.shared[op.Name] {
			return l.shareInput(op)
		}
		return val{l.apply(op), true}, nil
	case ir.OpCall:
		return l.call(ctx, op, ins)
	}

	if !anyPrivate(ins) {
		return val{l.apply(op, nodes(ins)...), false}, nil
	}

	switch op.Kind {
	case ir.OpAdd, ir.OpSubtract, ir.OpXor:
		return l.linear(op.Kind, ins[0], ins[1]), nil

	case ir.OpNegate, ir.OpSum, ir.OpReshape, ir.OpPermuteAxes, ir.OpGet,
		ir.OpTupleGet, ir.OpNamedTupleGet, ir.OpRepeat,
		ir.OpArrayToVector, ir.OpVectorToArray:
		return val{l.apply(op, ins[0].n), true}, nil

	case ir.OpStack, ir.OpCreateTuple, ir.OpCreateNamedTuple, ir.OpCreateVector, ir.OpZip:
		return val{l.apply(op, l.sharedAll(ins)...), true}, nil

	case ir.OpGather, ir.OpScatter, ir.OpVectorGet:
		if ins[1].private {
			return l.unsupported("%s with a private index", op.Kind)
		}
		return val{l.apply(op, ins[0].n, ins[1].n), true}, nil

	case ir.OpTruncate:
		return l.unsupported("truncate of private data")

	case ir.OpMultiply, ir.OpMatmul, ir.OpAnd:
		return l.product(op.Kind, ins[0], ins[1]), nil

	case ir.OpMixedMultiply:
		return l.mixedMultiply(ins[0], ins[1]), nil

	case ir.OpNot:
		return val{l.not(ins[0].n), true}, nil

	case ir.OpOr:
		x := l.apply(ir.Op{Kind: ir.OpXor}, l.shared(ins[0]), l.shared(ins[1]))
		y := l.product(ir.OpAnd, ins[0], ins[1])
		return val{l.apply(ir.Op{Kind: ir.OpXor}, x, y.n), true}, nil

	case ir.OpSelect:
		return l.selectOp(ins[0], ins[1], ins[2]), nil

	case ir.OpCast:
		return val{l.cast(ins[0].n, op.Type.(ir.ScalarType)), true}, nil

	case ir.OpToBits:
		return val{l.a2b(ins[0]), true}, nil

	case ir.OpFromBits:
		to := op.Type.(ir.ScalarType)
		return val{l.weightedSum(l.b2a(ins[0].n, to), to, false), true}, nil

	case ir.OpLessThan:
		return val{l.lessThan(ins[0], ins[1]), true}, nil
	case ir.OpGreaterThan:
		return val{l.lessThan(ins[1], ins[0]), true}, nil
	case ir.OpLessThanEqual:
		return val{l.not(l.lessThan(ins[1], ins[0])), true}, nil
	case ir.OpGreaterThanEqual:
		return val{l.not(l.lessThan(ins[0], ins[1])), true}, nil
	case ir.OpEqual:
		return val{l.equal(ins[0], ins[1]), true}, nil
	case ir.OpNotEqual:
		return val{l.not(l.equal(ins[0], ins[1])), true}, nil
	}
	return l.unsupported("no secure lowering for %s", op.Kind)
}

func anyPrivate(vs []val) bool {
	for _, v := range vs {
		if v.private {
			return true
		}
	}
	return false
}

func nodes(vs []val) []*graph.Node {
	out := make([]*graph.Node, len(vs))
	for i, v := range vs {
		out[i] = v.n
	}
	return out
}

// shared returns a sharing of v: v itself when private, party_gate(0, v)
// when public.
func (l *lowering) shared(v val) *graph.Node {
	if v.private {
		return v.n
	}
	return l.gate(0, v.n)
}

func (l *lowering) sharedAll(vs []val) []*graph.Node {
	out := make([]*graph.Node, len(vs))
	for i, v := range vs {
		out[i] = l.shared(v)
	}
	return out
}

// linear applies an op that distributes over addition of shares.
func (l *lowering) linear(kind ir.OpKind, a, b val) val {
	if !a.private && !b.private {
		return val{l.apply(ir.Op{Kind: kind}, a.n, b.n), false}
	}
	return val{l.apply(ir.Op{Kind: kind}, l.shared(a), l.shared(b)), true}
}

// product applies a bilinear op. With a public operand each party applies
// it to its own share; two private operands need a Beaver triple.
func (l *lowering) product(kind ir.OpKind, a, b val) val {
	switch {
	case a.private && b.private:
		return val{l.beaver(kind, a.n, b.n), true}
	case a.private || b.private:
		return val{l.apply(ir.Op{Kind: kind}, a.n, b.n), true}
	default:
		return val{l.apply(ir.Op{Kind: kind}, a.n, b.n), false}
	}
}

func (l *lowering) mixedMultiply(a, bits val) val {
	if !bits.private {
		return val{l.apply(ir.Op{Kind: ir.OpMixedMultiply}, a.n, bits.n), true}
	}
	if l.err != nil {
		return val{}
	}
	_, elem, _ := ir.TensorParts(a.n.Type)
	return l.product(ir.OpMultiply, a, val{l.b2a(bits.n, elem), true})
}

// selectOp lowers select(c, a, b) as b + mixed_multiply(a - b, c) when the
// condition is private.
func (l *lowering) selectOp(c, a, b val) val {
	if !c.private {
		return val{l.apply(ir.Op{Kind: ir.OpSelect}, c.n, l.shared(a), l.shared(b)), true}
	}
	d := l.linear(ir.OpSubtract, a, b)
	m := l.mixedMultiply(d, c)
	return val{l.apply(ir.Op{Kind: ir.OpAdd}, l.shared(b), m.n), true}
}

// cast lowers a cast of a private tensor. Narrowing and same-width casts
// are local because reduction modulo 2^k commutes with addition; casts
// from BIT and widening casts go through bits.
func (l *lowering) cast(x *graph.Node, to ir.ScalarType) *graph.Node {
	if l.err != nil {
		return nil
	}
	_, from, _ := ir.TensorParts(x.Type)
	switch {
	case from == ir.BIT:
		return l.b2a(x, to)
	case to.Bits <= from.Bits:
		return l.apply(ir.Op{Kind: ir.OpCast, Type: to}, x)
	default:
		bits := l.a2b(val{x, true})
		return l.weightedSum(l.b2a(bits, to), to, from.Signed)
	}
}

func (l *lowering) call(ctx context.Context, op ir.Op, ins []val) (val, error) {
	callee, err := l.c.src.Graph(op.Graph)
	if err != nil {
		return val{}, err
	}
	compiled, err := l.c.compileGraph(ctx, callee, false)
	if err != nil {
		return val{}, err
	}
	return val{l.apply(ir.Op{Kind: ir.OpCall, Graph: compiled.ID()}, l.sharedAll(ins)...), true}, nil
}
