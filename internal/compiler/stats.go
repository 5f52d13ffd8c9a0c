package compiler

import (
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

// Stats describes a compiled context. Sends and Triples count executions:
// the nodes of a callee count once per call.
type Stats struct {
	NodesIn  int `json:"nodes_in"`
	NodesOut int `json:"nodes_out"`
	Graphs   int `json:"graphs"`
	Sends    int `json:"sends"`
	Triples  int `json:"triples"`

	// Rounds is the longest chain of receives from an input to an output,
	// the number of sequential message exchanges an evaluation needs.
	Rounds int `json:"rounds"`
}

func computeStats(src, out *graph.Context, g *graph.Graph) Stats {
	s := Stats{Graphs: len(out.Graphs())}
	for _, sg := range src.Graphs() {
		s.NodesIn += sg.Len()
	}
	for _, og := range out.Graphs() {
		s.NodesOut += og.Len()
	}

	w := &statsWalker{ctx: out, memo: make(map[int]graphStats)}
	gs := w.walk(g)
	s.Sends, s.Triples, s.Rounds = gs.sends, gs.triples, gs.rounds
	return s
}

type graphStats struct {
	sends, triples, rounds int
}

type statsWalker struct {
	ctx  *graph.Context
	memo map[int]graphStats
}

func (w *statsWalker) walk(g *graph.Graph) graphStats {
	if gs, ok := w.memo[g.ID()]; ok {
		return gs
	}
	var gs graphStats
	depth := make([]int, g.Len())
	for _, n := range g.Nodes() {
		d := 0
		for _, in := range n.Inputs {
			d = max(d, depth[in])
		}
		switch n.Op.Kind {
		case ir.OpSend:
			gs.sends++
		case ir.OpReceive:
			d++
		case ir.OpTriple:
			gs.triples++
		case ir.OpCall:
			if callee, err := w.ctx.Graph(n.Op.Graph); err == nil {
				cs := w.walk(callee)
				gs.sends += cs.sends
				gs.triples += cs.triples
				d += cs.rounds
			}
		}
		depth[n.ID] = d
	}
	for _, id := range g.Outputs() {
		gs.rounds = max(gs.rounds, depth[id])
	}
	w.memo[g.ID()] = gs
	return gs
}
