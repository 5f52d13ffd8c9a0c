package ir

import (
	"fmt"
	"strings"
)

// Kind discriminates the variants of Type.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindVector
	KindTuple
	KindNamedTuple
)

// Type is a sealed interface describing the static type of a node.
// Only ScalarType, ArrayType, VectorType, TupleType and NamedTupleType
// implement it. Type equality is structural.
type Type interface {
	Kind() Kind
	Equal(other Type) bool
	String() string
	irType() // Sealed
}

// ScalarType is an integer in the ring Z/2^Bits. Signed only changes how
// values are interpreted by comparisons, truncation and widening casts.
type ScalarType struct {
	Bits   int
	Signed bool
}

// ArrayType is a dense tensor of scalars. Every dimension is positive.
type ArrayType struct {
	Shape []int64
	Elem  ScalarType
}

// VectorType is a homogeneous sequence whose elements may be composite.
type VectorType struct {
	Len  int64
	Elem Type
}

// TupleType is an ordered heterogeneous product.
type TupleType struct {
	Elems []Type
}

// Field is one named component of a NamedTupleType.
type Field struct {
	Name string
	Type Type
}

// NamedTupleType is a product with unique, ordered field names.
type NamedTupleType struct {
	Fields []Field
}

func (ScalarType) irType()     {}
func (ArrayType) irType()      {}
func (VectorType) irType()     {}
func (TupleType) irType()      {}
func (NamedTupleType) irType() {}

func (ScalarType) Kind() Kind     { return KindScalar }
func (ArrayType) Kind() Kind      { return KindArray }
func (VectorType) Kind() Kind     { return KindVector }
func (TupleType) Kind() Kind      { return KindTuple }
func (NamedTupleType) Kind() Kind { return KindNamedTuple }

// Predefined scalar types.
var (
	BIT    = ScalarType{Bits: 1}
	UINT8  = ScalarType{Bits: 8}
	UINT16 = ScalarType{Bits: 16}
	UINT32 = ScalarType{Bits: 32}
	UINT64 = ScalarType{Bits: 64}
	INT8   = ScalarType{Bits: 8, Signed: true}
	INT16  = ScalarType{Bits: 16, Signed: true}
	INT32  = ScalarType{Bits: 32, Signed: true}
	INT64  = ScalarType{Bits: 64, Signed: true}
)

// Array returns an array type with a copy of shape.
func Array(elem ScalarType, shape ...int64) ArrayType {
	return ArrayType{Shape: append([]int64(nil), shape...), Elem: elem}
}

// Vector returns a vector type.
func Vector(n int64, elem Type) VectorType {
	return VectorType{Len: n, Elem: elem}
}

// Tuple returns a tuple type.
func Tuple(elems ...Type) TupleType {
	return TupleType{Elems: append([]Type(nil), elems...)}
}

// NamedTuple returns a named tuple type.
func NamedTuple(fields ...Field) NamedTupleType {
	return NamedTupleType{Fields: append([]Field(nil), fields...)}
}

// Mask returns the bit mask of the scalar's ring.
func (s ScalarType) Mask() uint64 {
	if s.Bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(s.Bits)) - 1
}

// Equal implements Type.
func (s ScalarType) Equal(other Type) bool {
	o, ok := other.(ScalarType)
	return ok && o == s
}

func (s ScalarType) String() string {
	if s.Bits == 1 {
		return "bit"
	}
	if s.Signed {
		return fmt.Sprintf("i%d", s.Bits)
	}
	return fmt.Sprintf("u%d", s.Bits)
}

// Equal implements Type.
func (a ArrayType) Equal(other Type) bool {
	o, ok := other.(ArrayType)
	return ok && o.Elem == a.Elem && shapesEqual(o.Shape, a.Shape)
}

func (a ArrayType) String() string {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s[%s]", a.Elem, strings.Join(dims, ","))
}

// Equal implements Type.
func (v VectorType) Equal(other Type) bool {
	o, ok := other.(VectorType)
	return ok && o.Len == v.Len && o.Elem.Equal(v.Elem)
}

func (v VectorType) String() string {
	return fmt.Sprintf("vec(%d, %s)", v.Len, v.Elem)
}

// Equal implements Type.
func (t TupleType) Equal(other Type) bool {
	o, ok := other.(TupleType)
	if !ok || len(o.Elems) != len(t.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (t TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Equal implements Type.
func (n NamedTupleType) Equal(other Type) bool {
	o, ok := other.(NamedTupleType)
	if !ok || len(o.Fields) != len(n.Fields) {
		return false
	}
	for i := range n.Fields {
		if n.Fields[i].Name != o.Fields[i].Name || !n.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

func (n NamedTupleType) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FieldIndex returns the position of the named field, or -1.
func (n NamedTupleType) FieldIndex(name string) int {
	for i, f := range n.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// IsTensor reports whether t is a scalar or an array.
func IsTensor(t Type) bool {
	k := t.Kind()
	return k == KindScalar || k == KindArray
}

// TensorParts splits a scalar or array type into its shape and element type.
// Scalars have an empty shape.
func TensorParts(t Type) ([]int64, ScalarType, bool) {
	switch tt := t.(type) {
	case ScalarType:
		return nil, tt, true
	case ArrayType:
		return tt.Shape, tt.Elem, true
	default:
		return nil, ScalarType{}, false
	}
}

// TensorOf builds a scalar type for an empty shape and an array type otherwise.
func TensorOf(shape []int64, elem ScalarType) Type {
	if len(shape) == 0 {
		return elem
	}
	return Array(elem, shape...)
}

// Children returns the component types of a composite type in order.
// Vectors report their element type once per position.
func Children(t Type) []Type {
	switch tt := t.(type) {
	case TupleType:
		return tt.Elems
	case NamedTupleType:
		out := make([]Type, len(tt.Fields))
		for i, f := range tt.Fields {
			out[i] = f.Type
		}
		return out
	case VectorType:
		out := make([]Type, tt.Len)
		for i := range out {
			out[i] = tt.Elem
		}
		return out
	default:
		return nil
	}
}

// ValidateType checks bit widths, dimensions and field names recursively.
func ValidateType(t Type) error {
	switch tt := t.(type) {
	case nil:
		return fmt.Errorf("missing type")
	case ScalarType:
		switch tt.Bits {
		case 1:
			if tt.Signed {
				return fmt.Errorf("bit type cannot be signed")
			}
		case 8, 16, 32, 64:
		default:
			return fmt.Errorf("unsupported bit width %d", tt.Bits)
		}
		return nil
	case ArrayType:
		if len(tt.Shape) == 0 {
			return fmt.Errorf("array type needs at least one dimension")
		}
		for _, d := range tt.Shape {
			if d <= 0 {
				return fmt.Errorf("array dimensions must be positive, got %v", tt.Shape)
			}
		}
		return ValidateType(tt.Elem)
	case VectorType:
		if tt.Len < 0 {
			return fmt.Errorf("vector length must be non-negative, got %d", tt.Len)
		}
		return ValidateType(tt.Elem)
	case TupleType:
		for i, e := range tt.Elems {
			if err := ValidateType(e); err != nil {
				return fmt.Errorf("tuple element %d: %w", i, err)
			}
		}
		return nil
	case NamedTupleType:
		seen := make(map[string]bool, len(tt.Fields))
		for _, f := range tt.Fields {
			if f.Name == "" {
				return fmt.Errorf("named tuple field names must be non-empty")
			}
			if seen[f.Name] {
				return fmt.Errorf("duplicate named tuple field %q", f.Name)
			}
			seen[f.Name] = true
			if err := ValidateType(f.Type); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown type %T", t)
	}
}

// NumElements returns the number of scalars in a shape.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func shapesEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ShapesEqual reports whether two shapes are identical.
func ShapesEqual(a, b []int64) bool { return shapesEqual(a, b) }
