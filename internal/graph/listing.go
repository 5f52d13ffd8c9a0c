package graph

import (
	"fmt"
	"strings"
)

// Listing renders every graph in a stable, human-readable form:
//
//	graph 0 (main): (u32, u32) -> bit
//	  %0 = input(type=u32, party=0, name="a") : u32
//	  %1 = input(type=u32, party=1, name="b") : u32
//	  %2 = less_than(%0, %1) : bit
//	  outputs: %2
func (c *Context) Listing() string {
	var b strings.Builder
	for i, g := range c.graphs {
		if i > 0 {
			b.WriteByte('\n')
		}
		g.writeListing(&b, i == c.main)
	}
	return b.String()
}

// Listing renders one graph.
func (g *Graph) Listing() string {
	var b strings.Builder
	g.writeListing(&b, g.id == g.ctx.main)
	return b.String()
}

func (g *Graph) writeListing(b *strings.Builder, main bool) {
	fmt.Fprintf(b, "graph %d", g.id)
	if main {
		b.WriteString(" (main)")
	}
	if sig, err := g.Signature(); err == nil {
		ins := make([]string, len(sig.Inputs))
		for i, t := range sig.Inputs {
			ins[i] = t.String()
		}
		fmt.Fprintf(b, ": (%s) -> %s", strings.Join(ins, ", "), sig.Output)
	}
	b.WriteByte('\n')
	for _, n := range g.nodes {
		fmt.Fprintf(b, "  %%%d = %s", n.ID, n.Op)
		if len(n.Inputs) > 0 {
			refs := make([]string, len(n.Inputs))
			for i, in := range n.Inputs {
				refs[i] = fmt.Sprintf("%%%d", in)
			}
			fmt.Fprintf(b, "(%s)", strings.Join(refs, ", "))
		}
		fmt.Fprintf(b, " : %s\n", n.Type)
	}
	outs := make([]string, len(g.outputs))
	for i, o := range g.outputs {
		outs[i] = fmt.Sprintf("%%%d", o)
	}
	fmt.Fprintf(b, "  outputs: %s\n", strings.Join(outs, ", "))
}
