package frontend

import (
	"context"
	"fmt"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
)

// Build constructs a context from def. Graphs are added callees first, in
// declaration order otherwise, so graph ids are deterministic. Every node
// passes through graph.AddNode; its errors are reported as LoadErrors that
// carry the graph and node names.
func Build(ctx context.Context, def *Definition) (*graph.Context, error) {
	logger := logging.FromContext(ctx)

	if len(def.Graphs) == 0 {
		return nil, malformed(Pos{}, "definition has no graphs")
	}
	b := &builder{
		def:     def,
		c:       graph.NewContext(),
		index:   make(map[string]int, len(def.Graphs)),
		built:   make(map[string]*graph.Graph, len(def.Graphs)),
		visited: make(map[string]bool, len(def.Graphs)),
	}
	for i, gd := range def.Graphs {
		if gd.Name == "" {
			return nil, malformed(gd.Pos, "graph %d has no name", i)
		}
		if _, dup := b.index[gd.Name]; dup {
			return nil, malformed(gd.Pos, "duplicate graph %q", gd.Name)
		}
		b.index[gd.Name] = i
	}

	for _, gd := range def.Graphs {
		if _, err := b.graph(gd.Name, nil); err != nil {
			return nil, err
		}
	}

	mainName, err := def.mainName()
	if err != nil {
		return nil, err
	}
	if err := b.c.SetMain(b.built[mainName]); err != nil {
		return nil, err
	}
	logger.Debug("definition built", "name", def.Name, "graphs", len(def.Graphs), "main", mainName)
	return b.c, nil
}

func (def *Definition) mainName() (string, error) {
	if def.Main != "" {
		for _, gd := range def.Graphs {
			if gd.Name == def.Main {
				return def.Main, nil
			}
		}
		return "", &LoadError{Code: ir.ErrCodeUnknownGraph, Message: fmt.Sprintf("main graph %q is not defined", def.Main)}
	}
	if len(def.Graphs) == 1 {
		return def.Graphs[0].Name, nil
	}
	for _, gd := range def.Graphs {
		if gd.Name == "main" {
			return gd.Name, nil
		}
	}
	return "", malformed(Pos{}, "definition has %d graphs and none is marked main", len(def.Graphs))
}

type builder struct {
	def     *Definition
	c       *graph.Context
	index   map[string]int
	built   map[string]*graph.Graph
	visited map[string]bool
}

// graph builds the named graph after its callees. stack holds the names of
// graphs whose calls are being resolved.
func (b *builder) graph(name string, stack []string) (*graph.Graph, error) {
	if g, ok := b.built[name]; ok {
		return g, nil
	}
	gd := &b.def.Graphs[b.index[name]]
	if b.visited[name] {
		return nil, &LoadError{
			Code:    ir.ErrCodeCyclicGraphCall,
			Pos:     gd.Pos,
			Graph:   name,
			Message: fmt.Sprintf("graphs call each other: %s", cyclePath(stack, name)),
		}
	}
	b.visited[name] = true

	for _, nd := range gd.Nodes {
		if nd.Op != string(ir.OpCall) {
			continue
		}
		if _, ok := b.index[nd.Graph]; !ok {
			return nil, b.nodeError(gd, &nd, ir.ErrCodeUnknownGraph, nil, "call to undefined graph %q", nd.Graph)
		}
		if _, err := b.graph(nd.Graph, append(stack, name)); err != nil {
			return nil, err
		}
	}

	g := b.c.NewGraph()
	ids := make(map[string]*graph.Node, len(gd.Nodes))
	for i := range gd.Nodes {
		nd := &gd.Nodes[i]
		if nd.Name == "" {
			return nil, malformed(nd.Pos, "graph %q: node %d has no name", gd.Name, i)
		}
		if _, dup := ids[nd.Name]; dup {
			return nil, b.nodeError(gd, nd, ir.ErrCodeMalformedDocument, nil, "duplicate node name")
		}
		inputs := make([]*graph.Node, len(nd.Inputs))
		for j, in := range nd.Inputs {
			n, ok := ids[in]
			if !ok {
				return nil, b.nodeError(gd, nd, ir.ErrCodeInvalidInputReference, nil,
					"input %d refers to %q, which is not defined before this node", j, in)
			}
			inputs[j] = n
		}
		op, err := b.op(nd)
		if err != nil {
			return nil, b.nodeError(gd, nd, ir.CodeOf(err), err, "%v", err)
		}
		n, err := g.Apply(op, inputs...)
		if err != nil {
			return nil, b.nodeError(gd, nd, ir.CodeOf(err), err, "%s", graphMessage(err))
		}
		ids[nd.Name] = n
	}

	if len(gd.Outputs) == 0 {
		return nil, &LoadError{Code: ir.ErrCodeEmptyOutputSet, Pos: gd.Pos, Graph: gd.Name, Message: "graph has no outputs"}
	}
	outputs := make([]*graph.Node, len(gd.Outputs))
	for i, name := range gd.Outputs {
		n, ok := ids[name]
		if !ok {
			return nil, &LoadError{Code: ir.ErrCodeUnknownNode, Pos: gd.Pos, Graph: gd.Name,
				Message: fmt.Sprintf("output %q is not a node of this graph", name)}
		}
		outputs[i] = n
	}
	if err := g.FinalizeNodes(outputs...); err != nil {
		return nil, &LoadError{Code: ir.CodeOf(err), Pos: gd.Pos, Graph: gd.Name, Message: graphMessage(err), Err: err}
	}
	b.built[name] = g
	return g, nil
}

// op translates a node definition into an ir.Op. Attributes that do not
// belong to the op are carried over so that Op.Validate rejects them.
func (b *builder) op(nd *NodeDef) (ir.Op, error) {
	kind := ir.OpKind(nd.Op)
	if !kind.Known() {
		return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: fmt.Sprintf("unknown op %q", nd.Op)}
	}
	if kind.IsProtocol() {
		return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute,
			Message: fmt.Sprintf("protocol op %q cannot appear in a definition", nd.Op)}
	}
	op := ir.Op{
		Kind:    kind,
		Party:   nd.Party,
		Names:   nd.Names,
		Index:   nd.Index,
		Indices: nd.Indices,
		Axes:    nd.Axes,
		Axis:    nd.Axis,
		Count:   nd.Count,
		Scale:   nd.Scale,
		Name:    nd.Field,
	}
	if nd.Type != "" {
		t, err := ir.ParseType(nd.Type)
		if err != nil {
			return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: fmt.Sprintf("type: %v", err), Err: err}
		}
		op.Type = t
	}
	switch kind {
	case ir.OpInput:
		if nd.Field != "" {
			return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: "input does not accept attribute field"}
		}
		op.Name = nd.Name
	case ir.OpConstant:
		if op.Type == nil || nd.Value == nil {
			return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: "constant requires a type and a value"}
		}
		v, err := ir.ValueFromLiteral(op.Type, nd.Value)
		if err != nil {
			return ir.Op{}, &LoadError{Code: ir.ErrCodeTypeMismatch, Message: fmt.Sprintf("value: %v", err), Err: err}
		}
		op.Value = v
	case ir.OpCall:
		op.Graph = b.built[nd.Graph].ID()
	}
	if kind != ir.OpConstant && nd.Value != nil {
		return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: fmt.Sprintf("%s does not accept attribute value", kind)}
	}
	if kind != ir.OpCall && nd.Graph != "" {
		return ir.Op{}, &LoadError{Code: ir.ErrCodeInvalidAttribute, Message: fmt.Sprintf("%s does not accept attribute graph", kind)}
	}
	return op, nil
}

func (b *builder) nodeError(gd *GraphDef, nd *NodeDef, code ir.ErrorCode, err error, format string, args ...any) *LoadError {
	if le, ok := err.(*LoadError); ok {
		le.Pos, le.Graph, le.Node = nd.Pos, gd.Name, nd.Name
		return le
	}
	return &LoadError{
		Code:    code,
		Pos:     nd.Pos,
		Graph:   gd.Name,
		Node:    nd.Name,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// graphMessage strips the location suffix of a graph error; the load
// error names the graph and node itself.
func graphMessage(err error) string {
	if ge, ok := err.(*ir.GraphError); ok {
		return ge.Message
	}
	return err.Error()
}

func cyclePath(stack []string, name string) string {
	start := 0
	for i, s := range stack {
		if s == name {
			start = i
			break
		}
	}
	path := ""
	for _, s := range stack[start:] {
		path += s + " -> "
	}
	return path + name
}
