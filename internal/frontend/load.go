package frontend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
)

// Format is the syntax of a definition file.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatHCL  Format = "hcl"
	FormatYAML Format = "yaml"

	// FormatContext is a serialized context as written by
	// graph.Context.Serialize.
	FormatContext Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".hcl":
		return FormatHCL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatContext, nil
	default:
		return "", malformed(Pos{File: path}, "unrecognized file extension %q (want .cue, .hcl, .yaml or .json)", filepath.Ext(path))
	}
}

// Parse decodes a definition in one of the definition syntaxes.
func Parse(data []byte, format Format, filename string) (*Definition, error) {
	switch format {
	case FormatCUE:
		return ParseCUE(data, filename)
	case FormatHCL:
		return ParseHCL(data, filename)
	case FormatYAML:
		return ParseYAML(data, filename)
	default:
		return nil, malformed(Pos{File: filename}, "format %q is not a definition syntax", format)
	}
}

// Source is a loaded file: the context it describes and, for definition
// files, the definition it was built from.
type Source struct {
	Path       string
	Format     Format
	Name       string
	Definition *Definition
	Context    *graph.Context
}

// Open reads a definition file or a serialized context and returns the
// validated context.
func Open(ctx context.Context, path string) (*Source, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ir.ErrCodeMalformedDocument, Pos: Pos{File: path}, Message: "cannot read file", Err: err}
	}
	logging.FromContext(ctx).Debug("loading definition", "path", path, "format", format)

	src := &Source{Path: path, Format: format}
	if format == FormatContext {
		c, err := graph.Load(data)
		if err != nil {
			return nil, &LoadError{Code: codeOr(err, ir.ErrCodeMalformedDocument), Pos: Pos{File: path}, Message: err.Error(), Err: err}
		}
		if err := c.Validate(); err != nil {
			return nil, &LoadError{Code: codeOr(err, ir.ErrCodeMalformedDocument), Pos: Pos{File: path}, Message: err.Error(), Err: err}
		}
		src.Context = c
		src.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return src, nil
	}

	def, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	c, err := Build(ctx, def)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Pos.File == "" {
			le.Pos.File = path
		}
		return nil, err
	}
	src.Definition = def
	src.Context = c
	src.Name = def.Name
	if src.Name == "" {
		src.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return src, nil
}

func codeOr(err error, fallback ir.ErrorCode) ir.ErrorCode {
	if code := ir.CodeOf(err); code != "" {
		return code
	}
	return fallback
}

// Bindings converts literals keyed by input name into positional input
// values for the main graph of c. Inputs without a literal stay nil, which
// the evaluator reports as MISSING_INPUT_BINDING. Keys that name no input
// are rejected.
func Bindings(c *graph.Context, literals map[string]any) ([]ir.Value, error) {
	main, err := c.Main()
	if err != nil {
		return nil, err
	}
	inputs := main.Inputs()
	values := make([]ir.Value, len(inputs))
	used := make(map[string]bool, len(literals))
	for i, n := range inputs {
		lit, ok := literals[n.Op.Name]
		if !ok {
			continue
		}
		used[n.Op.Name] = true
		v, err := ir.ValueFromLiteral(n.Type, lit)
		if err != nil {
			return nil, &LoadError{Code: ir.ErrCodeTypeMismatch, Message: fmt.Sprintf("input %q: %v", n.Op.Name, err), Err: err}
		}
		values[i] = v
	}
	for name := range literals {
		if !used[name] {
			return nil, &LoadError{Code: ir.ErrCodeInvalidConfiguration, Message: fmt.Sprintf("binding %q names no input of the main graph", name)}
		}
	}
	return values, nil
}

// ReadBindings decodes a YAML map from input names to literals.
func ReadBindings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ir.ErrCodeMalformedDocument, Pos: Pos{File: path}, Message: "cannot read bindings", Err: err}
	}
	return ParseBindings(data, path)
}

// ParseBindings decodes YAML bindings.
func ParseBindings(data []byte, filename string) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, yamlError(filename, err)
	}
	return out, nil
}
