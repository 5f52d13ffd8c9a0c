package frontend

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML definition. Unknown keys are rejected.
//
//	name: millionaires
//	graphs:
//	  - name: main
//	    nodes:
//	      - {name: a, op: input, type: u32, party: 0}
//	      - {name: b, op: input, type: u32, party: 1}
//	      - {name: lt, op: less_than, inputs: [a, b]}
//	    outputs: [lt]
func ParseYAML(data []byte, filename string) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed(Pos{File: filename}, "empty definition")
		}
		return nil, yamlError(filename, err)
	}

	// A second pass over the node tree recovers positions for error
	// reporting.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		annotateYAML(&root, &def, filename)
	}
	return &def, nil
}

func yamlError(filename string, err error) *LoadError {
	le := malformed(Pos{File: filename}, "%v", err)
	le.Err = err
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		le.Message = te.Errors[0]
	}
	return le
}

func annotateYAML(root *yaml.Node, def *Definition, filename string) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	graphs := mappingValue(doc, "graphs")
	if graphs == nil || graphs.Kind != yaml.SequenceNode {
		return
	}
	for i, gn := range graphs.Content {
		if i >= len(def.Graphs) {
			return
		}
		gd := &def.Graphs[i]
		gd.Pos = Pos{File: filename, Line: gn.Line, Column: gn.Column}
		nodes := mappingValue(gn, "nodes")
		if nodes == nil || nodes.Kind != yaml.SequenceNode {
			continue
		}
		for j, nn := range nodes.Content {
			if j >= len(gd.Nodes) {
				break
			}
			gd.Nodes[j].Pos = Pos{File: filename, Line: nn.Line, Column: nn.Column}
		}
	}
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
