package graph

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// Validate re-checks a context: every graph is finalized, every node only
// consumes preceding nodes and still infers its recorded type, and the call
// graph is acyclic. Contexts built through AddNode always pass; Validate
// guards contexts assembled or mutated by other means.
func (c *Context) Validate() error {
	cg := make(callGraph, len(c.graphs))
	order := make([]int, len(c.graphs))
	for gi, g := range c.graphs {
		order[gi] = gi
		if !g.finalized {
			return ir.NewGraphError(ir.ErrCodeGraphNotFinalized, gi, ir.NoNode, "", "graph %d is not finalized", gi)
		}
		for _, n := range g.nodes {
			if n.Op.Kind == ir.OpCall {
				if _, err := c.Graph(n.Op.Graph); err != nil {
					return ir.NewGraphError(ir.ErrCodeUnknownGraph, gi, n.ID, ir.OpCall, "call to unknown graph %d", n.Op.Graph)
				}
				cg[gi] = append(cg[gi], n.Op.Graph)
			}
		}
	}
	if cycles := findCallCycles(cg, order); len(cycles) > 0 {
		return ir.NewGraphError(ir.ErrCodeCyclicGraphCall, cycles[0].Path[0], ir.NoNode, ir.OpCall,
			"graphs call each other: %s", cycles[0])
	}

	for gi, g := range c.graphs {
		for _, n := range g.nodes {
			types := make([]ir.Type, len(n.Inputs))
			for i, in := range n.Inputs {
				if in < 0 || in >= n.ID {
					return ir.NewGraphError(ir.ErrCodeInvalidInputReference, gi, n.ID, n.Op.Kind,
						"input %d refers to node %d, which does not precede node %d", i, in, n.ID)
				}
				types[i] = g.nodes[in].Type
			}
			t, err := ir.InferType(n.Op, types, c)
			if err != nil {
				return wrapInferError(err, gi, n.ID, n.Op.Kind)
			}
			if !t.Equal(n.Type) {
				return ir.NewGraphError(ir.ErrCodeTypeMismatch, gi, n.ID, n.Op.Kind,
					"recorded type %s differs from inferred type %s", n.Type, t)
			}
		}
		for _, o := range g.outputs {
			if o < 0 || o >= len(g.nodes) {
				return ir.NewGraphError(ir.ErrCodeUnknownNode, gi, o, "", "output %d is not a node of graph %d", o, gi)
			}
		}
		if len(g.outputs) == 0 {
			return ir.NewGraphError(ir.ErrCodeEmptyOutputSet, gi, ir.NoNode, "", "graph %d has no outputs", gi)
		}
	}
	return nil
}
