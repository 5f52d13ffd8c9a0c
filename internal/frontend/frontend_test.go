package frontend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/ir"
)

func open(t *testing.T, name string) *Source {
	t.Helper()
	src, err := Open(context.Background(), filepath.Join("testdata", name))
	require.NoError(t, err)
	return src
}

func hashOf(t *testing.T, src *Source) string {
	t.Helper()
	h, err := src.Context.Hash()
	require.NoError(t, err)
	return h
}

func TestOpen_SyntaxesAgree(t *testing.T) {
	for _, base := range []string{"millionaires", "dot"} {
		t.Run(base, func(t *testing.T) {
			y := open(t, base+".yaml")
			c := open(t, base+".cue")
			h := open(t, base+".hcl")

			assert.Equal(t, base, y.Name)
			assert.Equal(t, hashOf(t, y), hashOf(t, c), "yaml vs cue")
			assert.Equal(t, hashOf(t, y), hashOf(t, h), "yaml vs hcl")
		})
	}
}

func TestOpen_Millionaires(t *testing.T) {
	src := open(t, "millionaires.yaml")
	main, err := src.Context.Main()
	require.NoError(t, err)

	inputs := main.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "alice", inputs[0].Op.Name)
	assert.Equal(t, 1, inputs[1].Op.Party)
	assert.True(t, ir.BIT.Equal(main.OutputType()))

	lits, err := ReadBindings(filepath.Join("testdata", "bindings.yaml"))
	require.NoError(t, err)
	values, err := Bindings(src.Context, lits)
	require.NoError(t, err)

	res, err := eval.New().Evaluate(context.Background(), src.Context, values)
	require.NoError(t, err)
	assert.True(t, ir.EqualValues(ir.Scalar(ir.BIT, 1), res.Outputs[0]))
}

func TestOpen_CallsBuiltCalleesFirst(t *testing.T) {
	src := open(t, "dot.hcl")
	graphs := src.Context.Graphs()
	require.Len(t, graphs, 2)

	main, err := src.Context.Main()
	require.NoError(t, err)
	assert.Equal(t, 1, main.ID())
	assert.Equal(t, []int{0}, main.Callees())

	values, err := Bindings(src.Context, map[string]any{
		"x": []any{1, 2, 3},
		"y": []any{4, -5, 6},
	})
	require.NoError(t, err)
	res, err := eval.New().Evaluate(context.Background(), src.Context, values)
	require.NoError(t, err)
	// 4 - 10 + 18 - 5
	assert.True(t, ir.EqualValues(ir.SignedScalar(ir.INT32, 7), res.Outputs[0]))
}

func TestOpen_SerializedContext(t *testing.T) {
	src := open(t, "dot.yaml")
	body, err := src.Context.Serialize()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dot.json")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	loaded, err := Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatContext, loaded.Format)
	assert.Equal(t, "dot", loaded.Name)
	assert.Nil(t, loaded.Definition)
	assert.Equal(t, hashOf(t, src), hashOf(t, loaded))
}

func TestOpen_UnknownExtension(t *testing.T) {
	_, err := Open(context.Background(), "graph.toml")
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeMalformedDocument, ir.CodeOf(err))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code ir.ErrorCode
		node string
	}{
		{
			name: "forward reference",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: s, op: add, inputs: [a, a]}
      - {name: a, op: input, type: u8}
    outputs: [s]`,
			code: ir.ErrCodeInvalidInputReference,
			node: "s",
		},
		{
			name: "shape mismatch",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: "u8[2]"}
      - {name: b, op: input, type: "u8[3]"}
      - {name: s, op: add, inputs: [a, b]}
    outputs: [s]`,
			code: ir.ErrCodeShapeMismatch,
			node: "s",
		},
		{
			name: "unknown op",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: divide}
    outputs: [a]`,
			code: ir.ErrCodeInvalidAttribute,
			node: "a",
		},
		{
			name: "protocol op",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: k, op: prf_key, party: 0}
    outputs: [k]`,
			code: ir.ErrCodeInvalidAttribute,
			node: "k",
		},
		{
			name: "stray attribute",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
      - {name: n, op: negate, inputs: [a], scale: 3}
    outputs: [n]`,
			code: ir.ErrCodeInvalidAttribute,
			node: "n",
		},
		{
			name: "constant out of range",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: c, op: constant, type: u8, value: 256}
    outputs: [c]`,
			code: ir.ErrCodeTypeMismatch,
			node: "c",
		},
		{
			name: "no outputs",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
    outputs: []`,
			code: ir.ErrCodeEmptyOutputSet,
		},
		{
			name: "unknown output",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
    outputs: [b]`,
			code: ir.ErrCodeUnknownNode,
		},
		{
			name: "undefined callee",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
      - {name: c, op: call, graph: helper, inputs: [a]}
    outputs: [c]`,
			code: ir.ErrCodeUnknownGraph,
			node: "c",
		},
		{
			name: "mutual recursion",
			yaml: `
main: f
graphs:
  - name: f
    nodes:
      - {name: a, op: input, type: u8}
      - {name: c, op: call, graph: g, inputs: [a]}
    outputs: [c]
  - name: g
    nodes:
      - {name: a, op: input, type: u8}
      - {name: c, op: call, graph: f, inputs: [a]}
    outputs: [c]`,
			code: ir.ErrCodeCyclicGraphCall,
		},
		{
			name: "ambiguous main",
			yaml: `
graphs:
  - name: f
    nodes: [{name: a, op: input, type: u8}]
    outputs: [a]
  - name: g
    nodes: [{name: a, op: input, type: u8}]
    outputs: [a]`,
			code: ir.ErrCodeMalformedDocument,
		},
		{
			name: "duplicate node",
			yaml: `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
      - {name: a, op: input, type: u8}
    outputs: [a]`,
			code: ir.ErrCodeMalformedDocument,
			node: "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseYAML([]byte(tt.yaml), "case.yaml")
			require.NoError(t, err)

			_, err = Build(context.Background(), def)
			require.Error(t, err)
			assert.Equal(t, tt.code, ir.CodeOf(err), err.Error())

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.node, le.Node)
		})
	}
}

func TestBuild_ErrorPositions(t *testing.T) {
	yamlSrc := `
graphs:
  - name: main
    nodes:
      - {name: a, op: input, type: u8}
      - {name: b, op: input, type: u16}
      - {name: s, op: add, inputs: [a, b]}
    outputs: [s]
`
	def, err := ParseYAML([]byte(yamlSrc), "pos.yaml")
	require.NoError(t, err)
	_, err = Build(context.Background(), def)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "pos.yaml:7:9: "), err.Error())
	assert.Equal(t, ir.ErrCodeTypeMismatch, ir.CodeOf(err))
}

func TestParse_StrictSchemas(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		src    string
	}{
		{"yaml unknown key", FormatYAML, "graphs: []\nextra: 1\n"},
		{"yaml unknown node key", FormatYAML, "graphs:\n  - name: main\n    nodes:\n      - {name: a, op: input, typo: u8}\n    outputs: [a]\n"},
		{"yaml empty", FormatYAML, ""},
		{"cue unknown field", FormatCUE, `graphs: [{name: "main", nodes: [{name: "a", op: "input", typo: "u8"}], outputs: ["a"]}]`},
		{"cue no graphs", FormatCUE, `graphs: []`},
		{"cue syntax", FormatCUE, `graphs: [`},
		{"hcl unknown attribute", FormatHCL, "graph \"main\" {\n  typo = 1\n  outputs = []\n}\n"},
		{"hcl syntax", FormatHCL, "graph \"main\" {\n"},
		{"hcl fractional value", FormatHCL, "graph \"main\" {\n  node \"c\" {\n    op = \"constant\"\n    type = \"u8\"\n    value = 1.5\n  }\n  outputs = [\"c\"]\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), tt.format, "case")
			require.Error(t, err)
			assert.Equal(t, ir.ErrCodeMalformedDocument, ir.CodeOf(err), err.Error())
		})
	}
}

func TestParseHCL_CompositeConstant(t *testing.T) {
	src := `
graph "main" {
  node "c" {
    op    = "constant"
    type  = "{lo: u8, hi: i8[2]}"
    value = { lo = 255, hi = [-1, 2] }
  }
  outputs = ["c"]
}
`
	def, err := ParseHCL([]byte(src), "c.hcl")
	require.NoError(t, err)
	c, err := Build(context.Background(), def)
	require.NoError(t, err)

	res, err := eval.New().Evaluate(context.Background(), c, nil)
	require.NoError(t, err)
	want := ir.NewComposite(ir.Scalar(ir.UINT8, 255), ir.ArrayOf(ir.INT8, []int64{2}, -1, 2))
	assert.True(t, ir.EqualValues(want, res.Outputs[0]))
}

func TestBindings_Errors(t *testing.T) {
	src := open(t, "millionaires.yaml")

	_, err := Bindings(src.Context, map[string]any{"carol": 1})
	assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))

	_, err = Bindings(src.Context, map[string]any{"alice": []any{1, 2}})
	assert.Equal(t, ir.ErrCodeTypeMismatch, ir.CodeOf(err))

	values, err := Bindings(src.Context, map[string]any{"bob": 3})
	require.NoError(t, err)
	assert.Nil(t, values[0])
	_, err = eval.New().Evaluate(context.Background(), src.Context, values)
	assert.Equal(t, ir.ErrCodeMissingInputBinding, ir.CodeOf(err))
}
