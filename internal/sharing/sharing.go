// Package sharing splits values into additive shares and puts them back
// together. A value of a b-bit type is shared among n parties as n values
// of the same type whose elementwise sum modulo 2^b is the value; composite
// values are shared leaf by leaf.
package sharing

import (
	"fmt"
	"io"

	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/randomness"
)

// Share splits v, a value of type t, into parties additive shares. Shares
// 0..parties-2 are drawn uniformly from r and the last share is v minus
// their sum, so any parties-1 shares are independent of v.
func Share(v ir.Value, t ir.Type, parties int, r io.Reader) ([]ir.Value, error) {
	if parties < 1 {
		return nil, fmt.Errorf("sharing among %d parties", parties)
	}
	if err := ir.CheckValue(t, v); err != nil {
		return nil, err
	}
	shares := make([]ir.Value, parties)
	last := ir.Clone(v)
	lastLeaves := ir.Leaves(last)
	for i := 0; i < parties-1; i++ {
		s, err := randomness.Fill(r, t)
		if err != nil {
			return nil, fmt.Errorf("drawing share %d: %w", i, err)
		}
		for li, leaf := range ir.Leaves(s) {
			mask := leaf.Elem.Mask()
			for k, x := range leaf.Data {
				lastLeaves[li].Data[k] = (lastLeaves[li].Data[k] - x) & mask
			}
		}
		shares[i] = s
	}
	shares[parties-1] = last
	return shares, nil
}

// Reconstruct sums shares of type t modulo each leaf's ring.
func Reconstruct(t ir.Type, shares []ir.Value) (ir.Value, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("no shares to reconstruct")
	}
	out := ir.Zero(t)
	outLeaves := ir.Leaves(out)
	for i, s := range shares {
		if err := ir.CheckValue(t, s); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		for li, leaf := range ir.Leaves(s) {
			mask := leaf.Elem.Mask()
			for k, x := range leaf.Data {
				outLeaves[li].Data[k] = (outLeaves[li].Data[k] + x) & mask
			}
		}
	}
	return out, nil
}

// ReconstructAll reconstructs per-party output lists: shares[p][i] is
// party p's share of output i.
func ReconstructAll(types []ir.Type, shares [][]ir.Value) ([]ir.Value, error) {
	out := make([]ir.Value, len(types))
	for i, t := range types {
		column := make([]ir.Value, len(shares))
		for p, ps := range shares {
			if i >= len(ps) {
				return nil, fmt.Errorf("party %d has %d outputs, want %d", p, len(ps), len(types))
			}
			column[p] = ps[i]
		}
		v, err := Reconstruct(t, column)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
