package graph

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// Node is one typed operation in a graph.
type Node struct {
	// ID is the node's position in its graph.
	ID int

	// Op is the operation with its attributes.
	Op ir.Op

	// Inputs are the ids of the nodes this node consumes. Every input
	// precedes the node.
	Inputs []int

	// Type is the output type computed by ir.InferType at construction.
	Type ir.Type

	graph *Graph
}

// Graph returns the graph that owns n.
func (n *Node) Graph() *Graph { return n.graph }

// Context owns a set of graphs. Graph ids are positions in the context.
type Context struct {
	graphs []*Graph
	main   int
}

// NewContext creates an empty context without a main graph.
func NewContext() *Context {
	return &Context{main: -1}
}

// NewGraph appends a new, empty graph to the context.
func (c *Context) NewGraph() *Graph {
	g := &Graph{ctx: c, id: len(c.graphs)}
	c.graphs = append(c.graphs, g)
	return g
}

// Graph returns the graph with the given id.
func (c *Context) Graph(id int) (*Graph, error) {
	if id < 0 || id >= len(c.graphs) {
		return nil, ir.NewGraphError(ir.ErrCodeUnknownGraph, id, ir.NoNode, "", "no graph %d in context", id)
	}
	return c.graphs[id], nil
}

// Graphs returns every graph in id order.
func (c *Context) Graphs() []*Graph {
	return append([]*Graph(nil), c.graphs...)
}

// SetMain designates the entry point of the context. The graph must be
// finalized and belong to c.
func (c *Context) SetMain(g *Graph) error {
	if g == nil || g.ctx != c {
		return ir.NewGraphError(ir.ErrCodeUnknownGraph, -1, ir.NoNode, "", "main graph does not belong to this context")
	}
	if !g.finalized {
		return ir.NewGraphError(ir.ErrCodeGraphNotFinalized, g.id, ir.NoNode, "", "main graph must be finalized")
	}
	c.main = g.id
	return nil
}

// Main returns the main graph.
func (c *Context) Main() (*Graph, error) {
	if c.main < 0 {
		return nil, ir.NewGraphError(ir.ErrCodeUnknownGraph, -1, ir.NoNode, "", "context has no main graph")
	}
	return c.graphs[c.main], nil
}

// HasMain reports whether a main graph is set.
func (c *Context) HasMain() bool { return c.main >= 0 }

// Signature implements ir.SignatureResolver for call nodes.
func (c *Context) Signature(id int) (ir.Signature, error) {
	g, err := c.Graph(id)
	if err != nil {
		return ir.Signature{}, err
	}
	return g.Signature()
}

// Graph is an append-only sequence of nodes with a frozen output set once
// finalized.
type Graph struct {
	ctx       *Context
	id        int
	nodes     []*Node
	outputs   []int
	finalized bool
}

// ID returns the graph id within its context.
func (g *Graph) ID() int { return g.id }

// Context returns the owning context.
func (g *Graph) Context() *Context { return g.ctx }

// Nodes returns the nodes in order. The slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given id.
func (g *Graph) Node(id int) (*Node, error) {
	if id < 0 || id >= len(g.nodes) {
		return nil, ir.NewGraphError(ir.ErrCodeUnknownNode, g.id, id, "", "no node %d in graph", id)
	}
	return g.nodes[id], nil
}

// Finalized reports whether the output set is frozen.
func (g *Graph) Finalized() bool { return g.finalized }

// Outputs returns the output node ids.
func (g *Graph) Outputs() []int { return append([]int(nil), g.outputs...) }

// Inputs returns the input nodes in node order. Their position in this list
// is the position of the corresponding binding or call argument.
func (g *Graph) Inputs() []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Op.Kind == ir.OpInput {
			out = append(out, n)
		}
	}
	return out
}

// OutputType is the type a call of g produces: the type of the only output,
// or a tuple of all output types.
func (g *Graph) OutputType() ir.Type {
	if len(g.outputs) == 1 {
		return g.nodes[g.outputs[0]].Type
	}
	elems := make([]ir.Type, len(g.outputs))
	for i, o := range g.outputs {
		elems[i] = g.nodes[o].Type
	}
	return ir.Tuple(elems...)
}

// Signature returns the input and output types of a finalized graph.
func (g *Graph) Signature() (ir.Signature, error) {
	if !g.finalized {
		return ir.Signature{}, ir.NewGraphError(ir.ErrCodeGraphNotFinalized, g.id, ir.NoNode, "", "graph %d is not finalized", g.id)
	}
	inputs := g.Inputs()
	sig := ir.Signature{Inputs: make([]ir.Type, len(inputs)), Output: g.OutputType()}
	for i, n := range inputs {
		sig.Inputs[i] = n.Type
	}
	return sig, nil
}

// Callees returns the distinct graph ids called from g, in first-use order.
func (g *Graph) Callees() []int {
	var out []int
	seen := make(map[int]bool)
	for _, n := range g.nodes {
		if n.Op.Kind == ir.OpCall && !seen[n.Op.Graph] {
			seen[n.Op.Graph] = true
			out = append(out, n.Op.Graph)
		}
	}
	return out
}

// AddNode appends a node applying op to the given inputs.
//
// Every input must be an existing node of g (INVALID_INPUT_REFERENCE); the
// op's arity, attributes and input types must pass ir.InferType; a receive
// must consume the send with the same endpoints; a call must not close a
// cycle of graph calls (CYCLIC_GRAPH_CALL) and its callee must be
// finalized.
func (g *Graph) AddNode(op ir.Op, inputs ...int) (*Node, error) {
	id := len(g.nodes)
	if g.finalized {
		return nil, ir.NewGraphError(ir.ErrCodeGraphFinalized, g.id, id, op.Kind, "graph %d is finalized", g.id)
	}
	types := make([]ir.Type, len(inputs))
	for i, in := range inputs {
		if in < 0 || in >= id {
			return nil, ir.NewGraphError(ir.ErrCodeInvalidInputReference, g.id, id, op.Kind,
				"input %d refers to node %d, which does not precede node %d", i, in, id)
		}
		types[i] = g.nodes[in].Type
	}
	if op.Kind == ir.OpReceive && len(inputs) == 1 {
		src := g.nodes[inputs[0]].Op
		if src.Kind != ir.OpSend || src.From != op.From || src.To != op.To {
			return nil, ir.NewGraphError(ir.ErrCodeInvalidInputReference, g.id, id, op.Kind,
				"receive %d->%d must consume a send with the same endpoints, got %s", op.From, op.To, src)
		}
	}
	if op.Kind == ir.OpCall {
		if err := g.checkCall(op.Graph, id); err != nil {
			return nil, err
		}
	}

	t, err := ir.InferType(op, types, g.ctx)
	if err != nil {
		return nil, wrapInferError(err, g.id, id, op.Kind)
	}
	n := &Node{
		ID:     id,
		Op:     op,
		Inputs: append([]int(nil), inputs...),
		Type:   t,
		graph:  g,
	}
	g.nodes = append(g.nodes, n)
	return n, nil
}

func (g *Graph) checkCall(callee, id int) error {
	target, err := g.ctx.Graph(callee)
	if err != nil {
		return ir.NewGraphError(ir.ErrCodeUnknownGraph, g.id, id, ir.OpCall, "call to unknown graph %d", callee)
	}
	if target == g || g.ctx.reaches(target.id, g.id) {
		return ir.NewGraphError(ir.ErrCodeCyclicGraphCall, g.id, id, ir.OpCall,
			"graph %d calling graph %d would create a cycle", g.id, callee)
	}
	if !target.finalized {
		return ir.NewGraphError(ir.ErrCodeGraphNotFinalized, g.id, id, ir.OpCall, "callee graph %d is not finalized", callee)
	}
	return nil
}

// reaches reports whether graph from transitively calls graph to.
func (c *Context) reaches(from, to int) bool {
	seen := make(map[int]bool)
	stack := []int{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if seen[cur] || cur < 0 || cur >= len(c.graphs) {
			continue
		}
		seen[cur] = true
		stack = append(stack, c.graphs[cur].Callees()...)
	}
	return false
}

func wrapInferError(err error, graphID, node int, kind ir.OpKind) error {
	if te, ok := err.(*ir.TypeError); ok {
		return ir.NewGraphError(te.Code, graphID, node, kind, "%s", te.Message)
	}
	if ge, ok := err.(*ir.GraphError); ok {
		return ir.NewGraphError(ge.Code, graphID, node, kind, "%s", ge.Message)
	}
	return ir.NewGraphError(ir.ErrCodeInvalidAttribute, graphID, node, kind, "%v", err)
}

// Finalize freezes the output set. At least one output is required and every
// id must name a node of g.
func (g *Graph) Finalize(outputs ...int) error {
	if g.finalized {
		return ir.NewGraphError(ir.ErrCodeGraphFinalized, g.id, ir.NoNode, "", "graph %d is already finalized", g.id)
	}
	if len(outputs) == 0 {
		return ir.NewGraphError(ir.ErrCodeEmptyOutputSet, g.id, ir.NoNode, "", "graph %d needs at least one output", g.id)
	}
	for _, o := range outputs {
		if o < 0 || o >= len(g.nodes) {
			return ir.NewGraphError(ir.ErrCodeUnknownNode, g.id, o, "", "output %d is not a node of graph %d", o, g.id)
		}
	}
	g.outputs = append([]int(nil), outputs...)
	g.finalized = true
	return nil
}

// FinalizeNodes is Finalize for node handles.
func (g *Graph) FinalizeNodes(outputs ...*Node) error {
	ids, err := g.ids(outputs)
	if err != nil {
		return err
	}
	return g.Finalize(ids...)
}

// Communicates reports whether evaluating g, including its callees, sends
// or receives messages.
func (g *Graph) Communicates() bool {
	for _, n := range g.nodes {
		if n.Op.Kind.IsCommunication() {
			return true
		}
		if n.Op.Kind == ir.OpCall {
			callee, err := g.ctx.Graph(n.Op.Graph)
			if err == nil && callee.Communicates() {
				return true
			}
		}
	}
	return false
}
