package frontend

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

type hclFile struct {
	Name   string      `hcl:"name,optional"`
	Main   string      `hcl:"main,optional"`
	Graphs []*hclGraph `hcl:"graph,block"`
}

type hclGraph struct {
	Name     string     `hcl:"name,label"`
	Nodes    []*hclNode `hcl:"node,block"`
	Outputs  []string   `hcl:"outputs"`
	DefRange hcl.Range  `hcl:",def_range"`
}

type hclNode struct {
	Name     string         `hcl:"name,label"`
	Op       string         `hcl:"op"`
	Inputs   []string       `hcl:"inputs,optional"`
	Type     string         `hcl:"type,optional"`
	Value    hcl.Expression `hcl:"value,optional"`
	Party    int            `hcl:"party,optional"`
	Field    string         `hcl:"field,optional"`
	Names    []string       `hcl:"names,optional"`
	Index    int64          `hcl:"index,optional"`
	Indices  []int64        `hcl:"indices,optional"`
	Axes     []int64        `hcl:"axes,optional"`
	Axis     int64          `hcl:"axis,optional"`
	Count    int64          `hcl:"count,optional"`
	Scale    uint64         `hcl:"scale,optional"`
	Graph    string         `hcl:"graph,optional"`
	DefRange hcl.Range      `hcl:",def_range"`
}

// ParseHCL decodes an HCL definition. Node values are constant
// expressions; variables and functions are not available.
//
//	graph "main" {
//	  node "a" {
//	    op    = "input"
//	    type  = "u32"
//	    party = 0
//	  }
//	  node "b" {
//	    op    = "input"
//	    type  = "u32"
//	    party = 1
//	  }
//	  node "lt" {
//	    op     = "less_than"
//	    inputs = ["a", "b"]
//	  }
//	  outputs = ["lt"]
//	}
func ParseHCL(data []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, hclError(filename, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, hclError(filename, diags)
	}

	def := &Definition{Name: root.Name, Main: root.Main}
	for _, g := range root.Graphs {
		gd := GraphDef{Name: g.Name, Outputs: g.Outputs, Pos: hclPos(g.DefRange)}
		for _, n := range g.Nodes {
			nd := NodeDef{
				Name:    n.Name,
				Op:      n.Op,
				Inputs:  n.Inputs,
				Type:    n.Type,
				Party:   n.Party,
				Field:   n.Field,
				Names:   n.Names,
				Index:   n.Index,
				Indices: n.Indices,
				Axes:    n.Axes,
				Axis:    n.Axis,
				Count:   n.Count,
				Scale:   n.Scale,
				Graph:   n.Graph,
				Pos:     hclPos(n.DefRange),
			}
			if n.Value != nil {
				val, diags := n.Value.Value(nil)
				if diags.HasErrors() {
					return nil, hclError(filename, diags)
				}
				lit, err := ctyLiteral(val)
				if err != nil {
					le := malformed(hclPos(n.Value.Range()), "value: %v", err)
					le.Graph, le.Node = g.Name, n.Name
					return nil, le
				}
				nd.Value = lit
			}
			gd.Nodes = append(gd.Nodes, nd)
		}
		def.Graphs = append(def.Graphs, gd)
	}
	return def, nil
}

func hclPos(r hcl.Range) Pos {
	return Pos{File: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

func hclError(filename string, diags hcl.Diagnostics) *LoadError {
	le := malformed(Pos{File: filename}, "%s", diags.Error())
	le.Err = diags
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		le.Message = d.Summary
		if d.Detail != "" {
			le.Message += ": " + d.Detail
		}
		if d.Subject != nil {
			le.Pos = hclPos(*d.Subject)
		}
		break
	}
	return le
}

// ctyLiteral converts a constant HCL value into the generic literal form
// accepted by ir.ValueFromLiteral. A null value means the attribute is
// absent.
func ctyLiteral(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	t := v.Type()
	switch {
	case t == cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("non-integer number %s", bf.Text('g', -1))
		}
		n, _ := bf.Int(nil)
		return n, nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.String:
		return v.AsString(), nil
	case t.IsListType() || t.IsTupleType() || t.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			lit, err := ctyLiteral(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, lit)
		}
		return out, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			lit, err := ctyLiteral(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = lit
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", t.FriendlyName())
	}
}
