package compiler

import (
	"context"
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
)

// Triple source names accepted by Config.TripleSource.
const (
	TriplesDealer = "dealer"
	TriplesNone   = "none"
)

// Config is the explicit configuration of one compilation.
type Config struct {
	// Parties is the number of parties, at least 2.
	Parties int

	// TripleSource names the source of Beaver triples available at run
	// time. With TriplesNone (or empty) any private multiplication fails
	// MISSING_AUXILIARY_RANDOMNESS.
	TripleSource string

	// SharedInputs names main graph inputs that arrive already split into
	// additive shares, one per party. They are bound by every party and
	// never re-shared.
	SharedInputs []string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Parties < 2 {
		return configError("parties must be at least 2, got %d", c.Parties)
	}
	switch c.TripleSource {
	case "", TriplesNone, TriplesDealer:
	default:
		return configError("unknown triple source %q", c.TripleSource)
	}
	return nil
}

func (c Config) hasTriples() bool {
	return c.TripleSource == TriplesDealer
}

// Compile lowers the main graph of src, and every graph it calls, into a
// new context whose main graph computes shares of the same outputs. src is
// not modified. Compilation is deterministic: it embeds no randomness, so
// equal inputs produce byte-identical contexts.
func Compile(ctx context.Context, src *graph.Context, cfg Config) (*graph.Context, error) {
	out, _, err := CompileWithStats(ctx, src, cfg)
	return out, err
}

// CompileWithStats is Compile that also reports the size of the result.
func CompileWithStats(ctx context.Context, src *graph.Context, cfg Config) (*graph.Context, Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Stats{}, err
	}
	main, err := src.Main()
	if err != nil {
		return nil, Stats{}, configError("source context has no main graph")
	}

	shared, err := sharedInputs(main, cfg.SharedInputs)
	if err != nil {
		return nil, Stats{}, err
	}

	c := &compiler{
		cfg:    cfg,
		src:    src,
		out:    graph.NewContext(),
		memo:   make(map[memoKey]*graph.Graph),
		shared: shared,
	}
	g, err := c.compileGraph(ctx, main, true)
	if err != nil {
		return nil, Stats{}, err
	}
	if err := c.out.SetMain(g); err != nil {
		return nil, Stats{}, err
	}

	stats := computeStats(src, c.out, g)
	logging.FromContext(ctx).Debug("graph compiled",
		"parties", cfg.Parties,
		"nodes_in", stats.NodesIn,
		"nodes_out", stats.NodesOut,
		"graphs", stats.Graphs,
		"sends", stats.Sends,
		"triples", stats.Triples,
		"rounds", stats.Rounds,
	)
	return c.out, stats, nil
}

// memoKey identifies a compiled callee. Callees are compiled once per
// source graph and party count.
type memoKey struct {
	graph   int
	parties int
}

type compiler struct {
	cfg    Config
	src    *graph.Context
	out    *graph.Context
	memo   map[memoKey]*graph.Graph
	shared map[string]bool
}

// sharedInputs resolves Config.SharedInputs against the inputs of main.
func sharedInputs(main *graph.Graph, names []string) (map[string]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	declared := make(map[string]bool)
	for _, n := range main.Inputs() {
		declared[n.Op.Name] = true
	}
	shared := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || !declared[name] {
			return nil, configError("shared input %q is not an input of the main graph", name)
		}
		shared[name] = true
	}
	return shared, nil
}

// compileGraph lowers one source graph. In the main graph input nodes are
// private inputs of their owners and get shared; in callees they are
// parameters bound to shares by the caller.
func (c *compiler) compileGraph(ctx context.Context, src *graph.Graph, main bool) (*graph.Graph, error) {
	key := memoKey{graph: src.ID(), parties: c.cfg.Parties}
	if !main {
		if g, ok := c.memo[key]; ok {
			return g, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !src.Finalized() {
		return nil, &CompileError{
			Code:    ir.ErrCodeGraphNotFinalized,
			Message: fmt.Sprintf("graph %d is not finalized", src.ID()),
			Graph:   src.ID(),
			Node:    ir.NoNode,
		}
	}

	l := &lowering{
		c:      c,
		src:    src,
		out:    c.out.NewGraph(),
		main:   main,
		vals:   make([]val, src.Len()),
		consts: make(map[string]*graph.Node),
	}
	for _, n := range src.Nodes() {
		l.at = nodeRef{graph: src.ID(), node: n.ID, op: n.Op.Kind}
		v, err := l.lower(ctx, n)
		if err == nil {
			err = l.err
		}
		if err != nil {
			return nil, l.wrap(err)
		}
		l.vals[n.ID] = v
	}

	l.at = nodeRef{graph: src.ID(), node: ir.NoNode}
	outs := make([]*graph.Node, 0, len(src.Outputs()))
	for _, id := range src.Outputs() {
		outs = append(outs, l.shared(l.vals[id]))
	}
	if l.err != nil {
		return nil, l.wrap(l.err)
	}
	if err := l.out.FinalizeNodes(outs...); err != nil {
		return nil, l.wrap(err)
	}
	if !main {
		c.memo[key] = l.out
	}
	return l.out, nil
}
