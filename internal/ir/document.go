package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Doc is a sealed interface for the tree every serialized artifact is built
// from. Only DocString, DocInt, DocBool, DocArray and DocObject implement it.
// There is no float and no null: graphs must round-trip bit-for-bit.
type Doc interface {
	doc() // Sealed
}

// DocString is a string node.
type DocString string

// DocInt is an integer node. Always int64, never float64.
type DocInt int64

// DocBool is a boolean node.
type DocBool bool

// DocArray is an ordered list of nodes.
type DocArray []Doc

// DocObject maps keys to nodes. Use SortedKeys for deterministic iteration.
type DocObject map[string]Doc

func (DocString) doc() {}
func (DocInt) doc()    {}
func (DocBool) doc()   {}
func (DocArray) doc()  {}
func (DocObject) doc() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj DocObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as RFC 8785
// requires.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// UnmarshalDoc parses JSON into a Doc with strict validation: floats and
// nulls are rejected.
func UnmarshalDoc(data []byte) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, docErrorf("", "invalid JSON: %v", err)
	}
	if dec.More() {
		return nil, docErrorf("", "trailing data after JSON document")
	}
	return convertToDoc(raw, "$")
}

func convertToDoc(v any, path string) (Doc, error) {
	switch val := v.(type) {
	case nil:
		return nil, docErrorf(path, "null is forbidden")
	case bool:
		return DocBool(val), nil
	case string:
		return DocString(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, docErrorf(path, "floats are forbidden: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, docErrorf(path, "number out of int64 range: %s", s)
		}
		return DocInt(n), nil
	case []any:
		arr := make(DocArray, len(val))
		for i, elem := range val {
			d, err := convertToDoc(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = d
		}
		return arr, nil
	case map[string]any:
		obj := make(DocObject, len(val))
		for k, elem := range val {
			d, err := convertToDoc(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = d
		}
		return obj, nil
	default:
		return nil, docErrorf(path, "unsupported JSON value %T", v)
	}
}

// docReader extracts typed fields from a DocObject, recording the first
// failure with its path so decoders can read many fields and check once.
type docReader struct {
	obj  DocObject
	path string
	err  error
}

func newDocReader(d Doc, path string) *docReader {
	obj, ok := d.(DocObject)
	if !ok {
		return &docReader{path: path, err: docErrorf(path, "expected object, got %T", d)}
	}
	return &docReader{obj: obj, path: path}
}

func (r *docReader) fail(key, format string, args ...any) {
	if r.err == nil {
		r.err = docErrorf(r.path+"."+key, format, args...)
	}
}

func (r *docReader) has(key string) bool {
	if r.err != nil {
		return false
	}
	_, ok := r.obj[key]
	return ok
}

func (r *docReader) str(key string, required bool) string {
	if r.err != nil {
		return ""
	}
	d, ok := r.obj[key]
	if !ok {
		if required {
			r.fail(key, "missing")
		}
		return ""
	}
	s, ok := d.(DocString)
	if !ok {
		r.fail(key, "expected string, got %T", d)
		return ""
	}
	return string(s)
}

func (r *docReader) int(key string, required bool) int64 {
	if r.err != nil {
		return 0
	}
	d, ok := r.obj[key]
	if !ok {
		if required {
			r.fail(key, "missing")
		}
		return 0
	}
	n, ok := d.(DocInt)
	if !ok {
		r.fail(key, "expected integer, got %T", d)
		return 0
	}
	return int64(n)
}

func (r *docReader) bool(key string) bool {
	if r.err != nil {
		return false
	}
	d, ok := r.obj[key]
	if !ok {
		return false
	}
	b, ok := d.(DocBool)
	if !ok {
		r.fail(key, "expected bool, got %T", d)
		return false
	}
	return bool(b)
}

func (r *docReader) array(key string, required bool) DocArray {
	if r.err != nil {
		return nil
	}
	d, ok := r.obj[key]
	if !ok {
		if required {
			r.fail(key, "missing")
		}
		return nil
	}
	a, ok := d.(DocArray)
	if !ok {
		r.fail(key, "expected array, got %T", d)
		return nil
	}
	return a
}

func (r *docReader) ints(key string) []int64 {
	arr := r.array(key, false)
	if len(arr) == 0 {
		return nil
	}
	out := make([]int64, len(arr))
	for i, d := range arr {
		n, ok := d.(DocInt)
		if !ok {
			r.fail(key, "element %d: expected integer, got %T", i, d)
			return nil
		}
		out[i] = int64(n)
	}
	return out
}

func (r *docReader) strs(key string) []string {
	arr := r.array(key, false)
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, len(arr))
	for i, d := range arr {
		s, ok := d.(DocString)
		if !ok {
			r.fail(key, "element %d: expected string, got %T", i, d)
			return nil
		}
		out[i] = string(s)
	}
	return out
}

func (r *docReader) raw(key string, required bool) Doc {
	if r.err != nil {
		return nil
	}
	d, ok := r.obj[key]
	if !ok && required {
		r.fail(key, "missing")
	}
	return d
}

// DocReader exposes the typed field reader to other packages that decode
// their own documents on top of the ir encodings.
type DocReader struct{ r *docReader }

// NewDocReader wraps a Doc expected to be an object.
func NewDocReader(d Doc, path string) DocReader {
	return DocReader{r: newDocReader(d, path)}
}

func (d DocReader) Str(key string) string        { return d.r.str(key, true) }
func (d DocReader) OptStr(key string) string     { return d.r.str(key, false) }
func (d DocReader) Int(key string) int64         { return d.r.int(key, true) }
func (d DocReader) OptInt(key string) int64      { return d.r.int(key, false) }
func (d DocReader) Ints(key string) []int64      { return d.r.ints(key) }
func (d DocReader) Array(key string) DocArray    { return d.r.array(key, true) }
func (d DocReader) OptArray(key string) DocArray { return d.r.array(key, false) }
func (d DocReader) Raw(key string) Doc           { return d.r.raw(key, true) }
func (d DocReader) Has(key string) bool          { return d.r.has(key) }
func (d DocReader) Err() error                   { return d.r.err }
func (d DocReader) Fail(key, msg string)         { d.r.fail(key, "%s", msg) }
