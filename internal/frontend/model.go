package frontend

// Definition is the syntax-independent form of a definition file.
type Definition struct {
	Name   string     `json:"name,omitempty" yaml:"name"`
	Main   string     `json:"main,omitempty" yaml:"main"`
	Graphs []GraphDef `json:"graphs" yaml:"graphs"`
}

// GraphDef describes one graph.
type GraphDef struct {
	Name    string    `json:"name" yaml:"name"`
	Nodes   []NodeDef `json:"nodes" yaml:"nodes"`
	Outputs []string  `json:"outputs" yaml:"outputs"`

	Pos Pos `json:"-" yaml:"-"`
}

// NodeDef describes one node. Only the attributes of its op may be set.
type NodeDef struct {
	Name   string   `json:"name" yaml:"name"`
	Op     string   `json:"op" yaml:"op"`
	Inputs []string `json:"inputs,omitempty" yaml:"inputs"`

	// Type is written in the textual type syntax, e.g. "i32[2,3]".
	Type string `json:"type,omitempty" yaml:"type"`

	// Value is the literal of a constant.
	Value any `json:"value,omitempty" yaml:"value"`

	Party   int      `json:"party,omitempty" yaml:"party"`
	Field   string   `json:"field,omitempty" yaml:"field"`
	Names   []string `json:"names,omitempty" yaml:"names"`
	Index   int64    `json:"index,omitempty" yaml:"index"`
	Indices []int64  `json:"indices,omitempty" yaml:"indices"`
	Axes    []int64  `json:"axes,omitempty" yaml:"axes"`
	Axis    int64    `json:"axis,omitempty" yaml:"axis"`
	Count   int64    `json:"count,omitempty" yaml:"count"`
	Scale   uint64   `json:"scale,omitempty" yaml:"scale"`

	// Graph names the callee of a call.
	Graph string `json:"graph,omitempty" yaml:"graph"`

	Pos Pos `json:"-" yaml:"-"`
}

// Pos locates a definition element in its source file. Zero fields are
// unknown.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) valid() bool { return p.Line > 0 }
