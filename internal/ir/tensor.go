package ir

import (
	"fmt"
	"strings"
)

// Value is a sealed interface for runtime values assigned to nodes.
// Scalars and arrays are Tensor; vectors, tuples and named tuples are
// Composite. A Value carries no type of its own beyond what a Tensor needs
// to interpret its data; CheckValue ties a value to a Type.
type Value interface {
	irRuntimeValue() // Sealed
}

// Tensor holds a scalar (empty Shape) or an array in row-major order.
// Every element of Data is already reduced modulo 2^Elem.Bits.
type Tensor struct {
	Shape []int64
	Elem  ScalarType
	Data  []uint64
}

// Composite holds the components of a vector, tuple or named tuple.
type Composite struct {
	Elems []Value
}

func (*Tensor) irRuntimeValue()    {}
func (*Composite) irRuntimeValue() {}

// NewTensor builds a tensor, reducing every element into the ring.
// The data slice is copied.
func NewTensor(shape []int64, elem ScalarType, data []uint64) (*Tensor, error) {
	if int64(len(data)) != NumElements(shape) {
		return nil, fmt.Errorf("tensor of shape %v needs %d elements, got %d", shape, NumElements(shape), len(data))
	}
	mask := elem.Mask()
	out := make([]uint64, len(data))
	for i, d := range data {
		out[i] = d & mask
	}
	return &Tensor{Shape: append([]int64(nil), shape...), Elem: elem, Data: out}, nil
}

// MustTensor is like NewTensor but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTensor(shape []int64, elem ScalarType, data []uint64) *Tensor {
	t, err := NewTensor(shape, elem, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Scalar builds a scalar tensor.
func Scalar(elem ScalarType, v uint64) *Tensor {
	return &Tensor{Elem: elem, Data: []uint64{v & elem.Mask()}}
}

// SignedScalar builds a scalar tensor from a signed integer.
func SignedScalar(elem ScalarType, v int64) *Tensor {
	return Scalar(elem, uint64(v))
}

// ArrayOf builds an array tensor from signed integers (two's complement).
func ArrayOf(elem ScalarType, shape []int64, data ...int64) *Tensor {
	raw := make([]uint64, len(data))
	for i, d := range data {
		raw[i] = uint64(d)
	}
	return MustTensor(shape, elem, raw)
}

// NewComposite builds a composite value.
func NewComposite(elems ...Value) *Composite {
	return &Composite{Elems: append([]Value(nil), elems...)}
}

// Type returns the scalar or array type of the tensor.
func (t *Tensor) Type() Type {
	return TensorOf(t.Shape, t.Elem)
}

// IsScalar reports whether the tensor has rank zero.
func (t *Tensor) IsScalar() bool {
	return len(t.Shape) == 0
}

// Int returns element i interpreted according to the element signedness.
func (t *Tensor) Int(i int) int64 {
	return Interpret(t.Elem, t.Data[i])
}

// Interpret converts a ring element into a Go integer, sign-extending
// signed types.
func Interpret(elem ScalarType, raw uint64) int64 {
	raw &= elem.Mask()
	if elem.Signed && elem.Bits < 64 && raw>>(uint(elem.Bits)-1)&1 == 1 {
		return int64(raw | ^elem.Mask())
	}
	return int64(raw)
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch vv := v.(type) {
	case *Tensor:
		return &Tensor{
			Shape: append([]int64(nil), vv.Shape...),
			Elem:  vv.Elem,
			Data:  append([]uint64(nil), vv.Data...),
		}
	case *Composite:
		elems := make([]Value, len(vv.Elems))
		for i, e := range vv.Elems {
			elems[i] = Clone(e)
		}
		return &Composite{Elems: elems}
	default:
		return nil
	}
}

// Zero returns the all-zero value of type t. It is the placeholder a party
// presents for another party's private input.
func Zero(t Type) Value {
	switch tt := t.(type) {
	case ScalarType:
		return &Tensor{Elem: tt, Data: []uint64{0}}
	case ArrayType:
		return &Tensor{
			Shape: append([]int64(nil), tt.Shape...),
			Elem:  tt.Elem,
			Data:  make([]uint64, NumElements(tt.Shape)),
		}
	default:
		children := Children(t)
		elems := make([]Value, len(children))
		for i, c := range children {
			elems[i] = Zero(c)
		}
		return &Composite{Elems: elems}
	}
}

// CheckValue verifies that v is a well-formed value of type t.
func CheckValue(t Type, v Value) error {
	return checkValue(t, v, "value")
}

func checkValue(t Type, v Value, path string) error {
	if IsTensor(t) {
		tv, ok := v.(*Tensor)
		if !ok || tv == nil {
			return fmt.Errorf("%s: expected tensor of type %s, got %T", path, t, v)
		}
		shape, elem, _ := TensorParts(t)
		if tv.Elem != elem {
			return fmt.Errorf("%s: expected element type %s, got %s", path, elem, tv.Elem)
		}
		if !shapesEqual(tv.Shape, shape) {
			return fmt.Errorf("%s: expected shape %v, got %v", path, shape, tv.Shape)
		}
		if int64(len(tv.Data)) != NumElements(shape) {
			return fmt.Errorf("%s: expected %d elements, got %d", path, NumElements(shape), len(tv.Data))
		}
		mask := elem.Mask()
		for i, d := range tv.Data {
			if d&^mask != 0 {
				return fmt.Errorf("%s: element %d out of range for %s", path, i, elem)
			}
		}
		return nil
	}
	cv, ok := v.(*Composite)
	if !ok || cv == nil {
		return fmt.Errorf("%s: expected composite of type %s, got %T", path, t, v)
	}
	children := Children(t)
	if len(children) != len(cv.Elems) {
		return fmt.Errorf("%s: expected %d components, got %d", path, len(children), len(cv.Elems))
	}
	for i, c := range children {
		if err := checkValue(c, cv.Elems[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// EqualValues reports whether two values are structurally identical.
func EqualValues(a, b Value) bool {
	switch av := a.(type) {
	case *Tensor:
		bv, ok := b.(*Tensor)
		if !ok || av.Elem != bv.Elem || !shapesEqual(av.Shape, bv.Shape) || len(av.Data) != len(bv.Data) {
			return false
		}
		for i := range av.Data {
			if av.Data[i] != bv.Data[i] {
				return false
			}
		}
		return true
	case *Composite:
		bv, ok := b.(*Composite)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !EqualValues(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Leaves flattens a value into its tensors in depth-first order.
func Leaves(v Value) []*Tensor {
	var out []*Tensor
	var walk func(Value)
	walk = func(v Value) {
		switch vv := v.(type) {
		case *Tensor:
			out = append(out, vv)
		case *Composite:
			for _, e := range vv.Elems {
				walk(e)
			}
		}
	}
	walk(v)
	return out
}

// LeafTypes flattens a type into its tensor types in depth-first order,
// matching Leaves.
func LeafTypes(t Type) []Type {
	if IsTensor(t) {
		return []Type{t}
	}
	var out []Type
	for _, c := range Children(t) {
		out = append(out, LeafTypes(c)...)
	}
	return out
}

// FormatValue renders a value for listings and CLI output. Elements are
// printed with their signed interpretation where applicable.
func FormatValue(v Value) string {
	var b strings.Builder
	formatValue(&b, v)
	return b.String()
}

func formatValue(b *strings.Builder, v Value) {
	switch vv := v.(type) {
	case *Tensor:
		if vv.IsScalar() {
			fmt.Fprintf(b, "%d", vv.Int(0))
			return
		}
		formatTensor(b, vv, 0, 0)
	case *Composite:
		b.WriteByte('(')
		for i, e := range vv.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			formatValue(b, e)
		}
		b.WriteByte(')')
	default:
		b.WriteString("<nil>")
	}
}

func formatTensor(b *strings.Builder, t *Tensor, dim int, offset int64) {
	stride := NumElements(t.Shape[dim+1:])
	b.WriteByte('[')
	for i := int64(0); i < t.Shape[dim]; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if dim == len(t.Shape)-1 {
			fmt.Fprintf(b, "%d", t.Int(int(offset+i)))
		} else {
			formatTensor(b, t, dim+1, offset+i*stride)
		}
	}
	b.WriteByte(']')
}
