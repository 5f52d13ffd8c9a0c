package applications

import (
	"fmt"
	"slices"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Params sizes a program. Unused fields are ignored; zero sizes take the
// program's default.
type Params struct {
	Elem ir.ScalarType
	N    int64
	M    int64
	K    int64

	// TransposeA and TransposeB make gemm take its matrix operands
	// transposed.
	TransposeA bool
	TransposeB bool
}

type program struct {
	summary string
	build   func(c *graph.Context, p Params) (*graph.Graph, error)
}

var catalog = map[string]program{
	"millionaires": {
		summary: "alice > bob",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Millionaires(c, p.Elem)
		},
	},
	"matmul": {
		summary: "alice[n,m] x bob[m,k]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Matmul(c, p.Elem, orDefault(p.N, 2), orDefault(p.M, 2), orDefault(p.K, 2))
		},
	},
	"dot": {
		summary: "alice[n] . bob[n]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Dot(c, p.Elem, orDefault(p.N, 4))
		},
	},
	"gemm": {
		summary: "a[n,m] x b[m,k] + c[n,k]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Gemm(c, p.Elem, orDefault(p.N, 2), orDefault(p.M, 2), orDefault(p.K, 2), p.TransposeA, p.TransposeB)
		},
	},
	"minimum": {
		summary: "min of alice[2^n] and bob[2^n]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Minimum(c, p.Elem, int(orDefault(p.N, 2)))
		},
	},
	"sort": {
		summary: "sorted alice[n] ++ bob[n]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Sort(c, p.Elem, orDefault(p.N, 2))
		},
	},
	"intersection": {
		summary: "alice[n] membership in bob[m]",
		build: func(c *graph.Context, p Params) (*graph.Graph, error) {
			return Intersection(c, p.Elem, orDefault(p.N, 4), orDefault(p.M, 4))
		},
	},
}

func orDefault(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

// Names lists the available programs.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Summary describes a program's inputs and output.
func Summary(name string) string {
	return catalog[name].summary
}

// Build creates a context whose main graph is the named program. A zero
// element type defaults to u32.
func Build(name string, p Params) (*graph.Context, error) {
	prog, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown application %q", name)
	}
	if p.Elem == (ir.ScalarType{}) {
		p.Elem = ir.UINT32
	}
	c := graph.NewContext()
	g, err := prog.build(c, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := c.SetMain(g); err != nil {
		return nil, err
	}
	return c, nil
}
