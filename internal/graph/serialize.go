package graph

import (
	"fmt"

	"github.com/roach88/mpcgraph/internal/ir"
)

// ToDoc encodes the context as a tagged-union document. Node types are not
// stored; they are re-derived on load, which re-validates every node.
func (c *Context) ToDoc() (ir.Doc, error) {
	graphs := make(ir.DocArray, len(c.graphs))
	for i, g := range c.graphs {
		d, err := g.ToDoc()
		if err != nil {
			return nil, err
		}
		graphs[i] = d
	}
	obj := ir.DocObject{
		"format_version": ir.DocInt(ir.FormatVersion),
		"graphs":         graphs,
	}
	if c.main >= 0 {
		obj["main"] = ir.DocInt(c.main)
	}
	return obj, nil
}

// ToDoc encodes one finalized graph.
func (g *Graph) ToDoc() (ir.Doc, error) {
	if !g.finalized {
		return nil, ir.NewGraphError(ir.ErrCodeGraphNotFinalized, g.id, ir.NoNode, "", "cannot serialize unfinalized graph %d", g.id)
	}
	nodes := make(ir.DocArray, len(g.nodes))
	for i, n := range g.nodes {
		op, err := ir.EncodeOp(n.Op)
		if err != nil {
			return nil, ir.NewGraphError(ir.ErrCodeInvalidAttribute, g.id, n.ID, n.Op.Kind, "%v", err)
		}
		inputs := make([]int64, len(n.Inputs))
		for j, in := range n.Inputs {
			inputs[j] = int64(in)
		}
		nodes[i] = ir.DocObject{
			"operation": op,
			"inputs":    ir.IntsDoc(inputs),
		}
	}
	outputs := make([]int64, len(g.outputs))
	for i, o := range g.outputs {
		outputs[i] = int64(o)
	}
	return ir.DocObject{
		"nodes":   nodes,
		"outputs": ir.IntsDoc(outputs),
	}, nil
}

// Serialize returns the canonical JSON encoding of the context. Two
// structurally identical contexts serialize to identical bytes.
func (c *Context) Serialize() ([]byte, error) {
	d, err := c.ToDoc()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(d)
}

// Hash returns the content address of the context.
func (c *Context) Hash() (string, error) {
	d, err := c.ToDoc()
	if err != nil {
		return "", err
	}
	return ir.HashDoc(ir.DomainContext, d)
}

// Hash returns the content address of one graph. Graphs that call
// different graph ids hash differently even if the callees are identical.
func (g *Graph) Hash() (string, error) {
	d, err := g.ToDoc()
	if err != nil {
		return "", err
	}
	return ir.HashDoc(ir.DomainGraph, d)
}

type rawNode struct {
	op     ir.Op
	inputs []int
}

type rawGraph struct {
	nodes   []rawNode
	outputs []int
}

// Load parses a serialized context and rebuilds it through the same
// validating construction path as hand-built graphs. Graphs are rebuilt
// callees first; a cyclic call structure fails CYCLIC_GRAPH_CALL.
func Load(data []byte) (*Context, error) {
	d, err := ir.UnmarshalDoc(data)
	if err != nil {
		return nil, err
	}
	return FromDoc(d)
}

// FromDoc rebuilds a context from its document form.
func FromDoc(d ir.Doc) (*Context, error) {
	r := ir.NewDocReader(d, "$")
	version := r.Int("format_version")
	graphDocs := r.Array("graphs")
	hasMain := r.Has("main")
	main := r.OptInt("main")
	if err := r.Err(); err != nil {
		return nil, err
	}
	if version != ir.FormatVersion {
		return nil, &ir.DocumentError{Path: "$.format_version", Message: fmt.Sprintf("unsupported format version %d", version)}
	}

	raws := make([]rawGraph, len(graphDocs))
	cg := make(callGraph, len(graphDocs))
	order := make([]int, len(graphDocs))
	for gi, gd := range graphDocs {
		order[gi] = gi
		raw, err := decodeRawGraph(gd, fmt.Sprintf("$.graphs[%d]", gi))
		if err != nil {
			return nil, err
		}
		for ni, n := range raw.nodes {
			if n.op.Kind != ir.OpCall {
				continue
			}
			if n.op.Graph < 0 || n.op.Graph >= len(graphDocs) {
				return nil, ir.NewGraphError(ir.ErrCodeUnknownGraph, gi, ni, ir.OpCall, "call to unknown graph %d", n.op.Graph)
			}
			cg[gi] = append(cg[gi], n.op.Graph)
		}
		raws[gi] = raw
	}
	if cycles := findCallCycles(cg, order); len(cycles) > 0 {
		return nil, ir.NewGraphError(ir.ErrCodeCyclicGraphCall, cycles[0].Path[0], ir.NoNode, ir.OpCall,
			"graphs call each other: %s", cycles[0])
	}

	c := NewContext()
	for range raws {
		c.NewGraph()
	}
	for _, gi := range topoOrder(cg, order) {
		g := c.graphs[gi]
		for _, n := range raws[gi].nodes {
			if _, err := g.AddNode(n.op, n.inputs...); err != nil {
				return nil, err
			}
		}
		if err := g.Finalize(raws[gi].outputs...); err != nil {
			return nil, err
		}
	}
	if hasMain {
		g, err := c.Graph(int(main))
		if err != nil {
			return nil, err
		}
		if err := c.SetMain(g); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func decodeRawGraph(d ir.Doc, path string) (rawGraph, error) {
	r := ir.NewDocReader(d, path)
	nodeDocs := r.OptArray("nodes")
	outputs := r.Ints("outputs")
	if err := r.Err(); err != nil {
		return rawGraph{}, err
	}
	raw := rawGraph{outputs: toInts(outputs)}
	for i, nd := range nodeDocs {
		npath := fmt.Sprintf("%s.nodes[%d]", path, i)
		nr := ir.NewDocReader(nd, npath)
		opDoc := nr.Raw("operation")
		inputs := nr.Ints("inputs")
		if err := nr.Err(); err != nil {
			return rawGraph{}, err
		}
		op, err := ir.DecodeOp(opDoc, npath+".operation")
		if err != nil {
			return rawGraph{}, err
		}
		raw.nodes = append(raw.nodes, rawNode{op: op, inputs: toInts(inputs)})
	}
	return raw, nil
}

func toInts(xs []int64) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}
