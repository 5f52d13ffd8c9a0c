package compiler

import (
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Boolean circuits over shares of bit vectors. A bit vector is a BIT tensor
// whose last axis holds bits least significant first. Sharing is XOR
// sharing: add on BIT is xor, so the arithmetic helpers work unchanged.

// bitMatrix builds a public BIT matrix with rows x cols entries.
func (l *lowering) bitMatrix(rows, cols int, set func(j, i int) bool) *graph.Node {
	data := make([]uint64, rows*cols)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			if set(j, i) {
				data[j*cols+i] = 1
			}
		}
	}
	return l.constant(ir.MustTensor([]int64{int64(rows), int64(cols)}, ir.BIT, data))
}

// bitVector builds a public BIT vector of length w.
func (l *lowering) bitVector(w int, set func(i int) bool) *graph.Node {
	data := make([]uint64, w)
	for i := range data {
		if set(i) {
			data[i] = 1
		}
	}
	return l.constant(ir.MustTensor([]int64{int64(w)}, ir.BIT, data))
}

func (l *lowering) ones(w int) *graph.Node {
	return l.bitVector(w, func(int) bool { return true })
}

func (l *lowering) unit(w, k int) *graph.Node {
	return l.bitVector(w, func(i int) bool { return i == k })
}

// shift moves every bit d places towards the most significant end, filling
// with zeros. It is a product with a public matrix and therefore local.
func (l *lowering) shift(v *graph.Node, w, d int) *graph.Node {
	m := l.bitMatrix(w, w, func(j, i int) bool { return i == j+d })
	return l.apply(ir.Op{Kind: ir.OpMatmul}, v, m)
}

func (l *lowering) xor(a, b *graph.Node) *graph.Node {
	return l.apply(ir.Op{Kind: ir.OpXor}, a, b)
}

// a2b converts an arithmetic sharing into a boolean sharing of the same
// value. Each party's share is decomposed locally and the per-party bit
// vectors are added with a boolean adder.
func (l *lowering) a2b(v val) *graph.Node {
	if l.err != nil {
		return nil
	}
	if !v.private {
		return l.gate(0, l.apply(ir.Op{Kind: ir.OpToBits}, v.n))
	}
	_, elem, _ := ir.TensorParts(v.n.Type)
	bits := l.apply(ir.Op{Kind: ir.OpToBits}, v.n)
	if elem == ir.BIT {
		return bits
	}

	terms := make([]*graph.Node, l.parties())
	for i := range terms {
		terms[i] = l.gate(i, bits)
	}
	for len(terms) > 1 {
		var next []*graph.Node
		for i := 0; i+1 < len(terms); i += 2 {
			next = append(next, l.boolAdd(terms[i], terms[i+1], elem.Bits))
		}
		if len(terms)%2 == 1 {
			next = append(next, terms[len(terms)-1])
		}
		terms = next
	}
	return terms[0]
}

// boolAdd adds two shared w-bit vectors modulo 2^w.
func (l *lowering) boolAdd(u, v *graph.Node, w int) *graph.Node {
	if l.err != nil {
		return nil
	}
	g := l.beaver(ir.OpAnd, u, v)
	p := l.xor(u, v)
	carries := l.prefix(g, p, w)
	return l.xor(p, l.shift(carries, w, 1))
}

// prefix runs a Kogge-Stone carry network: on return bit i of the result is
// the carry out of bit positions 0..i.
func (l *lowering) prefix(g, p *graph.Node, w int) *graph.Node {
	for d := 1; d < w; d *= 2 {
		if l.err != nil {
			return nil
		}
		g = l.xor(g, l.beaver(ir.OpAnd, p, l.shift(g, w, d)))
		if 2*d < w {
			p = l.beaver(ir.OpAnd, p, l.shift(p, w, d))
		}
	}
	return g
}

// offset adds c to x, staying shared when x is private.
func (l *lowering) offset(x val, c *graph.Node) val {
	if x.private {
		return val{l.apply(ir.Op{Kind: ir.OpAdd}, x.n, l.gate(0, c)), true}
	}
	return val{l.apply(ir.Op{Kind: ir.OpAdd}, x.n, c), false}
}

// lessThan compares x < y elementwise. x - y is computed as x + ^y + 1 on
// bit vectors; x < y exactly when that sum does not carry out. Signed
// inputs are biased by 2^(b-1) so the unsigned comparison orders them.
func (l *lowering) lessThan(x, y val) *graph.Node {
	if l.err != nil {
		return nil
	}
	_, elem, _ := ir.TensorParts(x.n.Type)
	w := elem.Bits
	if elem.Signed {
		bias := l.scalar(elem, uint64(1)<<(w-1))
		x, y = l.offset(x, bias), l.offset(y, bias)
	}

	xs := l.a2b(x)
	ny := l.xor(l.a2b(y), l.gate(0, l.ones(w)))
	g := l.beaver(ir.OpAnd, xs, ny)
	p := l.xor(xs, ny)

	// Carry in of 1 folds into bit 0: g0 |= p0, p0 = 0.
	e0 := l.unit(w, 0)
	g = l.xor(g, l.apply(ir.Op{Kind: ir.OpAnd}, p, e0))
	p = l.apply(ir.Op{Kind: ir.OpAnd}, p, l.bitVector(w, func(i int) bool { return i != 0 }))

	carry := l.apply(ir.Op{Kind: ir.OpMatmul}, l.prefix(g, p, w), l.unit(w, w-1))
	return l.not(carry)
}

// equal compares x == y elementwise: all bits of x - y must be zero.
func (l *lowering) equal(x, y val) *graph.Node {
	if l.err != nil {
		return nil
	}
	d := l.apply(ir.Op{Kind: ir.OpSubtract}, l.shared(x), l.shared(y))
	if l.err != nil {
		return nil
	}
	_, elem, _ := ir.TensorParts(d.Type)
	bits := l.a2b(val{d, true})
	return l.andReduce(l.xor(bits, l.gate(0, l.ones(elem.Bits))), elem.Bits)
}

// andReduce ANDs the w bits of the last axis together with a tree of
// Beaver ANDs, removing that axis.
func (l *lowering) andReduce(v *graph.Node, w int) *graph.Node {
	for w > 1 {
		if l.err != nil {
			return nil
		}
		if w%2 == 1 {
			pad := l.bitMatrix(w, w+1, func(j, i int) bool { return i == j })
			v = l.apply(ir.Op{Kind: ir.OpMatmul}, v, pad)
			v = l.xor(v, l.gate(0, l.unit(w+1, w)))
			w++
		}
		h := w / 2
		lo := l.apply(ir.Op{Kind: ir.OpMatmul}, v, l.bitMatrix(w, h, func(j, i int) bool { return j == i }))
		hi := l.apply(ir.Op{Kind: ir.OpMatmul}, v, l.bitMatrix(w, h, func(j, i int) bool { return j == h+i }))
		v = l.beaver(ir.OpAnd, lo, hi)
		w = h
	}
	return l.apply(ir.Op{Kind: ir.OpMatmul}, v, l.unit(1, 0))
}

// b2a converts a boolean sharing of bits into an arithmetic sharing in to.
// The parties' share bits are combined with a xor b = a + b - 2ab.
func (l *lowering) b2a(bits *graph.Node, to ir.ScalarType) *graph.Node {
	if l.err != nil {
		return nil
	}
	if to == ir.BIT {
		return bits
	}
	c := l.apply(ir.Op{Kind: ir.OpCast, Type: to}, bits)
	two := l.scalar(to, 2)
	acc := l.gate(0, c)
	for i := 1; i < l.parties(); i++ {
		t := l.gate(i, c)
		prod := l.apply(ir.Op{Kind: ir.OpMultiply}, l.beaver(ir.OpMultiply, acc, t), two)
		acc = l.apply(ir.Op{Kind: ir.OpSubtract}, l.apply(ir.Op{Kind: ir.OpAdd}, acc, t), prod)
	}
	return acc
}

// weightedSum collapses the last axis of arithmetic bit shares into the
// integer they encode. With signed the top bit weighs -2^(b-1).
func (l *lowering) weightedSum(arith *graph.Node, to ir.ScalarType, signed bool) *graph.Node {
	if l.err != nil {
		return nil
	}
	shape, _, _ := ir.TensorParts(arith.Type)
	b := int(shape[len(shape)-1])
	weights := make([]uint64, b)
	for i := range weights {
		weights[i] = (uint64(1) << i) & to.Mask()
	}
	if signed {
		weights[b-1] = (^uint64(0) << (b - 1)) & to.Mask()
	}
	wt := l.constant(ir.MustTensor([]int64{int64(b)}, to, weights))
	scaled := l.apply(ir.Op{Kind: ir.OpMultiply}, arith, wt)
	return l.apply(ir.Op{Kind: ir.OpSum, Axes: []int64{int64(len(shape) - 1)}}, scaled)
}
