package applications

import (
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Millionaires adds a graph answering whether party 0 ("alice") is richer
// than party 1 ("bob"). The output is a single bit.
func Millionaires(c *graph.Context, elem ir.ScalarType) (*graph.Graph, error) {
	b := &builder{g: c.NewGraph()}
	alice := b.input(elem, 0, "alice")
	bob := b.input(elem, 1, "bob")
	return b.finish(b.binary(ir.OpGreaterThan, alice, bob))
}

// Matmul adds a graph multiplying party 0's n x m matrix by party 1's
// m x k matrix.
func Matmul(c *graph.Context, elem ir.ScalarType, n, m, k int64) (*graph.Graph, error) {
	b := &builder{g: c.NewGraph()}
	x := b.input(ir.Array(elem, n, m), 0, "alice")
	y := b.input(ir.Array(elem, m, k), 1, "bob")
	return b.finish(b.binary(ir.OpMatmul, x, y))
}

// Dot adds a graph computing the inner product of party 0's and party 1's
// n-element vectors as a 1 x n by n x 1 matrix product.
func Dot(c *graph.Context, elem ir.ScalarType, n int64) (*graph.Graph, error) {
	if n < 1 {
		return nil, fmt.Errorf("dot: size %d must be positive", n)
	}
	b := &builder{g: c.NewGraph()}
	x := b.input(ir.Array(elem, n), 0, "alice")
	y := b.input(ir.Array(elem, n), 1, "bob")
	p := b.binary(ir.OpMatmul, b.reshape(x, ir.Array(elem, 1, n)), b.reshape(y, ir.Array(elem, n, 1)))
	return b.finish(b.apply(ir.Op{Kind: ir.OpGet, Indices: []int64{0, 0}}, p))
}

// Gemm adds a graph computing A x B + C. Party 0 holds A, n x m or m x n
// when transposeA is set. Party 1 holds B, m x k or k x m when transposeB
// is set, and the n x k bias C.
func Gemm(c *graph.Context, elem ir.ScalarType, n, m, k int64, transposeA, transposeB bool) (*graph.Graph, error) {
	if n < 1 || m < 1 || k < 1 {
		return nil, fmt.Errorf("gemm: sizes %d, %d and %d must be positive", n, m, k)
	}
	b := &builder{g: c.NewGraph()}
	var x, y *graph.Node
	if transposeA {
		x = b.transpose(b.input(ir.Array(elem, m, n), 0, "a"))
	} else {
		x = b.input(ir.Array(elem, n, m), 0, "a")
	}
	if transposeB {
		y = b.transpose(b.input(ir.Array(elem, k, m), 1, "b"))
	} else {
		y = b.input(ir.Array(elem, m, k), 1, "b")
	}
	bias := b.input(ir.Array(elem, n, k), 1, "c")
	return b.finish(b.binary(ir.OpAdd, b.binary(ir.OpMatmul, x, y), bias))
}

// Minimum adds a graph computing the smallest element of the union of two
// arrays of 2^logN elements each, by a tournament of pairwise minima.
func Minimum(c *graph.Context, elem ir.ScalarType, logN int) (*graph.Graph, error) {
	if logN < 0 || logN > 16 {
		return nil, fmt.Errorf("minimum: log size %d out of range", logN)
	}
	n := int64(1) << logN
	b := &builder{g: c.NewGraph()}
	arr := b.union(elem, n)
	for size := 2 * n; size > 1; size /= 2 {
		lo := b.gather(arr, span(0, size/2, 1))
		hi := b.gather(arr, span(size/2, size, 1))
		arr = b.sel(b.binary(ir.OpLessThan, lo, hi), lo, hi)
	}
	return b.finish(b.apply(ir.Op{Kind: ir.OpGet, Indices: []int64{0}}, arr))
}

// Sort adds a graph sorting the union of two n-element arrays in ascending
// order with an odd-even transposition network: 2n rounds of independent
// compare-exchange steps on neighbouring pairs.
func Sort(c *graph.Context, elem ir.ScalarType, n int64) (*graph.Graph, error) {
	if n < 1 {
		return nil, fmt.Errorf("sort: size %d must be positive", n)
	}
	size := 2 * n
	b := &builder{g: c.NewGraph()}
	arr := b.union(elem, n)
	for round := int64(0); round < size; round++ {
		first := round % 2
		lefts := span(first, size-1, 2)
		if len(lefts) == 0 {
			continue
		}
		rights := make([]int64, len(lefts))
		touched := make(map[int64]bool, 2*len(lefts))
		for i, l := range lefts {
			rights[i] = l + 1
			touched[l], touched[l+1] = true, true
		}

		lo := b.gather(arr, lefts)
		hi := b.gather(arr, rights)
		swap := b.binary(ir.OpLessThan, hi, lo)
		next := b.binary(ir.OpAdd,
			b.scatter(b.sel(swap, hi, lo), lefts, size),
			b.scatter(b.sel(swap, lo, hi), rights, size))

		var rest []int64
		for i := int64(0); i < size; i++ {
			if !touched[i] {
				rest = append(rest, i)
			}
		}
		if len(rest) > 0 {
			next = b.binary(ir.OpAdd, next, b.scatter(b.gather(arr, rest), rest, size))
		}
		arr = next
	}
	return b.finish(arr)
}

// Intersection adds a graph computing, for each of party 0's n elements,
// whether it occurs among party 1's m elements. The output is a bit array
// of length n; party 1 learns nothing beyond it.
func Intersection(c *graph.Context, elem ir.ScalarType, n, m int64) (*graph.Graph, error) {
	if n < 1 || m < 1 {
		return nil, fmt.Errorf("intersection: sizes %d and %d must be positive", n, m)
	}
	b := &builder{g: c.NewGraph()}
	x := b.input(ir.Array(elem, n), 0, "alice")
	y := b.input(ir.Array(elem, m), 1, "bob")
	eq := b.binary(ir.OpEqual,
		b.reshape(x, ir.Array(elem, n, 1)),
		b.reshape(y, ir.Array(elem, 1, m)))

	var member *graph.Node
	for j := int64(0); j < m; j++ {
		col := b.apply(ir.Op{Kind: ir.OpGather, Axis: 1}, eq, b.indices([]int64{j}))
		if member == nil {
			member = col
			continue
		}
		member = b.binary(ir.OpOr, member, col)
	}
	return b.finish(b.reshape(member, ir.Array(ir.BIT, n)))
}
