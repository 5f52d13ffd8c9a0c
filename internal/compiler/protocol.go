package compiler

import (
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

func (l *lowering) gate(party int, x *graph.Node) *graph.Node {
	return l.apply(ir.Op{Kind: ir.OpPartyGate, Party: party}, x)
}

// constant emits a public tensor, reusing an identical earlier constant.
func (l *lowering) constant(t *ir.Tensor) *graph.Node {
	key := fmt.Sprintf("%s|%v", t.Type(), t.Data)
	if n, ok := l.consts[key]; ok {
		return n
	}
	n := l.apply(ir.Op{Kind: ir.OpConstant, Type: t.Type(), Value: t})
	if n != nil {
		l.consts[key] = n
	}
	return n
}

func (l *lowering) scalar(elem ir.ScalarType, v uint64) *graph.Node {
	return l.constant(ir.Scalar(elem, v))
}

// shareInput turns a private input of party p into a sharing. p expands a
// fresh PRF key into one mask per other party, sends each mask to its
// party and keeps the input minus all masks.
func (l *lowering) shareInput(op ir.Op) (val, error) {
	p := op.Party
	if p < 0 || p >= l.parties() {
		return val{}, nodeError(ir.ErrCodeInvalidConfiguration, l.at,
			"input owned by party %d in a %d-party compilation", p, l.parties())
	}
	t := op.Type
	x := l.apply(op)
	key := l.apply(ir.Op{Kind: ir.OpPRFKey, Party: p})

	var masks, recvs []*graph.Node
	for j := 0; j < l.parties(); j++ {
		if j == p {
			continue
		}
		m := l.apply(ir.Op{Kind: ir.OpMask, Type: t}, key)
		s := l.apply(ir.Op{Kind: ir.OpSend, From: p, To: j}, m)
		r := l.apply(ir.Op{Kind: ir.OpReceive, From: p, To: j}, s)
		masks = append(masks, m)
		recvs = append(recvs, r)
	}

	masked := l.leafwise(t, func(ns []*graph.Node) *graph.Node {
		acc := ns[0]
		for _, m := range ns[1:] {
			acc = l.apply(ir.Op{Kind: ir.OpSubtract}, acc, m)
		}
		return acc
	}, append([]*graph.Node{x}, masks...))

	share := l.leafwise(t, func(ns []*graph.Node) *graph.Node {
		acc := ns[0]
		for _, r := range ns[1:] {
			acc = l.apply(ir.Op{Kind: ir.OpAdd}, acc, r)
		}
		return acc
	}, append([]*graph.Node{l.gate(p, masked)}, recvs...))
	return val{share, true}, nil
}

// leafwise applies f to corresponding tensor leaves of nodes of type t and
// rebuilds the composite structure around the results.
func (l *lowering) leafwise(t ir.Type, f func([]*graph.Node) *graph.Node, ns []*graph.Node) *graph.Node {
	if l.err != nil {
		return nil
	}
	if ir.IsTensor(t) {
		return f(ns)
	}
	part := func(i int, pick func(*graph.Node) *graph.Node) *graph.Node {
		parts := make([]*graph.Node, len(ns))
		for k, n := range ns {
			parts[k] = pick(n)
		}
		return l.leafwise(ir.Children(t)[i], f, parts)
	}

	switch tt := t.(type) {
	case ir.TupleType:
		elems := make([]*graph.Node, len(tt.Elems))
		for i := range tt.Elems {
			elems[i] = part(i, func(n *graph.Node) *graph.Node {
				return l.apply(ir.Op{Kind: ir.OpTupleGet, Index: int64(i)}, n)
			})
		}
		return l.apply(ir.Op{Kind: ir.OpCreateTuple}, elems...)
	case ir.NamedTupleType:
		elems := make([]*graph.Node, len(tt.Fields))
		names := make([]string, len(tt.Fields))
		for i, fld := range tt.Fields {
			names[i] = fld.Name
			elems[i] = part(i, func(n *graph.Node) *graph.Node {
				return l.apply(ir.Op{Kind: ir.OpNamedTupleGet, Name: fld.Name}, n)
			})
		}
		return l.apply(ir.Op{Kind: ir.OpCreateNamedTuple, Names: names}, elems...)
	case ir.VectorType:
		elems := make([]*graph.Node, tt.Len)
		for i := range elems {
			idx := l.scalar(ir.UINT64, uint64(i))
			elems[i] = part(i, func(n *graph.Node) *graph.Node {
				return l.apply(ir.Op{Kind: ir.OpVectorGet}, n, idx)
			})
		}
		return l.apply(ir.Op{Kind: ir.OpCreateVector, Type: tt.Elem}, elems...)
	}
	l.fail(fmt.Errorf("cannot decompose %s", t))
	return nil
}

// open reveals a private value to every party: each party sends its share
// to every other party and adds up what it receives.
func (l *lowering) open(x *graph.Node) *graph.Node {
	acc := x
	for i := 0; i < l.parties(); i++ {
		for j := 0; j < l.parties(); j++ {
			if i == j {
				continue
			}
			s := l.apply(ir.Op{Kind: ir.OpSend, From: i, To: j}, x)
			r := l.apply(ir.Op{Kind: ir.OpReceive, From: i, To: j}, s)
			acc = l.apply(ir.Op{Kind: ir.OpAdd}, acc, r)
		}
	}
	return acc
}

// beaver multiplies two private values with one triple and one round.
func (l *lowering) beaver(kind ir.OpKind, x, y *graph.Node) *graph.Node {
	if l.err != nil {
		return nil
	}
	if !l.c.cfg.hasTriples() {
		l.fail(nodeError(ir.ErrCodeMissingAuxiliaryRandomness, l.at,
			"private %s needs a triple source", kind))
		return nil
	}
	t := l.apply(ir.Op{Kind: ir.OpTriple, Bilinear: kind, Types: []ir.Type{x.Type, y.Type}})
	a := l.apply(ir.Op{Kind: ir.OpTupleGet, Index: 0}, t)
	b := l.apply(ir.Op{Kind: ir.OpTupleGet, Index: 1}, t)
	c := l.apply(ir.Op{Kind: ir.OpTupleGet, Index: 2}, t)

	d := l.open(l.apply(ir.Op{Kind: ir.OpSubtract}, x, a))
	e := l.open(l.apply(ir.Op{Kind: ir.OpSubtract}, y, b))

	z := l.apply(ir.Op{Kind: ir.OpAdd}, c, l.apply(ir.Op{Kind: kind}, d, b))
	z = l.apply(ir.Op{Kind: ir.OpAdd}, z, l.apply(ir.Op{Kind: kind}, a, e))
	return l.apply(ir.Op{Kind: ir.OpAdd}, z, l.gate(0, l.apply(ir.Op{Kind: kind}, d, e)))
}

// not complements a private bit tensor by flipping party 0's share.
func (l *lowering) not(x *graph.Node) *graph.Node {
	return l.apply(ir.Op{Kind: ir.OpXor}, x, l.gate(0, l.scalar(ir.BIT, 1)))
}
