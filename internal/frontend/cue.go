package frontend

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var cueSchema string

// ParseCUE evaluates a CUE definition and checks it against the closed
// #Definition schema, so misspelled fields fail with their position.
//
//	graphs: [{
//		name: "main"
//		nodes: [
//			{name: "a", op: "input", type: "u32", party: 0},
//			{name: "b", op: "input", type: "u32", party: 1},
//			{name: "lt", op: "less_than", inputs: ["a", "b"]},
//		]
//		outputs: ["lt"]
//	}]
func ParseCUE(data []byte, filename string) (*Definition, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(cueSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, cueError(filename, err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(filename, err)
	}
	v = schema.LookupPath(cue.ParsePath("#Definition")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(filename, err)
	}

	var def Definition
	if err := v.Decode(&def); err != nil {
		return nil, cueError(filename, err)
	}
	annotateCUE(v, &def)
	return &def, nil
}

// cueError keeps the first error and its position.
func cueError(filename string, err error) *LoadError {
	le := malformed(Pos{File: filename}, "%v", err)
	le.Err = err
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return le
	}
	first := errs[0]
	le.Message = first.Error()
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = cuePos(positions[0])
	}
	return le
}

func cuePos(p token.Pos) Pos {
	if !p.IsValid() {
		return Pos{}
	}
	return Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

func annotateCUE(v cue.Value, def *Definition) {
	graphs, err := v.LookupPath(cue.ParsePath("graphs")).List()
	if err != nil {
		return
	}
	for i := 0; graphs.Next() && i < len(def.Graphs); i++ {
		gv := graphs.Value()
		gd := &def.Graphs[i]
		gd.Pos = cuePos(gv.Pos())
		nodes, err := gv.LookupPath(cue.ParsePath("nodes")).List()
		if err != nil {
			continue
		}
		for j := 0; nodes.Next() && j < len(gd.Nodes); j++ {
			gd.Nodes[j].Pos = cuePos(nodes.Value().Pos())
		}
	}
}
