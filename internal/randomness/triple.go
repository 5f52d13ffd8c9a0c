package randomness

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/kernel"
)

// TripleRequest asks for one party's share of the Beaver triple consumed at
// one node evaluation.
type TripleRequest struct {
	Party    int
	Parties  int
	Instance string

	// Bilinear is multiply, matmul or and; A and B are the operand types.
	Bilinear ir.OpKind
	A, B     ir.Type
}

func (r TripleRequest) label() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.Instance, r.Bilinear, r.A, r.B)
}

// TripleSource supplies Beaver triple shares. The value returned is the
// tuple (a_i, b_i, c_i) of the requesting party, where the shares of all
// parties sum to a, b and c = a*b. Implementations must be safe for
// concurrent use.
type TripleSource interface {
	Triple(ctx context.Context, req TripleRequest) (ir.Value, error)
}

// Dealer is a trusted dealer simulated locally: every party holding the same
// seed derives the same triple for an instance and keeps only its share.
type Dealer struct {
	seed []byte
}

// NewDealer creates a dealer for the given seed.
func NewDealer(seed []byte) *Dealer {
	return &Dealer{seed: append([]byte(nil), seed...)}
}

// Triple implements TripleSource.
func (d *Dealer) Triple(ctx context.Context, req TripleRequest) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Parties < 2 || req.Party < 0 || req.Party >= req.Parties {
		return nil, missing(req.Party, req.Instance, "party %d out of range for %d parties", req.Party, req.Parties)
	}
	switch req.Bilinear {
	case ir.OpMultiply, ir.OpMatmul, ir.OpAnd:
	default:
		return nil, missing(req.Party, req.Instance, "no triples for %q", req.Bilinear)
	}
	cType, err := ir.TripleOutput(req.Bilinear, req.A, req.B)
	if err != nil {
		return nil, missing(req.Party, req.Instance, "invalid triple operands: %v", err)
	}

	label := req.label()
	a, err := Fill(stream(domainTriple, d.seed, 0, "a|"+label), req.A)
	if err != nil {
		return nil, err
	}
	b, err := Fill(stream(domainTriple, d.seed, 0, "b|"+label), req.B)
	if err != nil {
		return nil, err
	}
	c, err := kernel.Apply(ir.Op{Kind: req.Bilinear}, []ir.Type{req.A, req.B}, []ir.Value{a, b})
	if err != nil {
		return nil, missing(req.Party, req.Instance, "computing product: %v", err)
	}

	out := make([]ir.Value, 3)
	for i, part := range []struct {
		name string
		t    ir.Type
		v    ir.Value
	}{{"a", req.A, a}, {"b", req.B, b}, {"c", cType, c}} {
		share, err := shareOf(part.v, part.t, req.Party, req.Parties, stream(domainTriple, d.seed, 1, part.name+"|"+label))
		if err != nil {
			return nil, err
		}
		out[i] = share
	}
	return ir.NewComposite(out...), nil
}

// shareOf returns share i of an additive sharing of v drawn from r. Parties
// below n-1 take consecutive random draws; party n-1 takes the remainder.
func shareOf(v ir.Value, t ir.Type, i, n int, r io.Reader) (ir.Value, error) {
	rest := ir.Clone(v)
	for j := 0; j < n-1; j++ {
		s, err := Fill(r, t)
		if err != nil {
			return nil, err
		}
		if j == i {
			return s, nil
		}
		restLeaves := ir.Leaves(rest)
		for li, leaf := range ir.Leaves(s) {
			mask := leaf.Elem.Mask()
			for k, x := range leaf.Data {
				restLeaves[li].Data[k] = (restLeaves[li].Data[k] - x) & mask
			}
		}
	}
	return rest, nil
}

// Budgeted wraps a TripleSource and refuses requests once a party has
// consumed its allowance.
type Budgeted struct {
	src   TripleSource
	limit int

	mu   sync.Mutex
	used map[int]int
}

// Budget limits every party to n triples from src.
func Budget(src TripleSource, n int) *Budgeted {
	return &Budgeted{src: src, limit: n, used: make(map[int]int)}
}

// Triple implements TripleSource.
func (b *Budgeted) Triple(ctx context.Context, req TripleRequest) (ir.Value, error) {
	b.mu.Lock()
	if b.used[req.Party] >= b.limit {
		b.mu.Unlock()
		return nil, missing(req.Party, req.Instance, "triple budget of %d exhausted", b.limit)
	}
	b.used[req.Party]++
	b.mu.Unlock()
	return b.src.Triple(ctx, req)
}

// Used returns how many triples party has drawn.
func (b *Budgeted) Used(party int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[party]
}
