package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// ValueFromLiteral converts a generic literal, as decoded from YAML, JSON,
// CUE or HCL, into a value of type t.
//
// Scalars accept any integer (negative numbers wrap into the ring), arrays
// accept nested lists matching the shape or a single integer that is
// broadcast, tuples and vectors accept lists, and named tuples accept maps.
func ValueFromLiteral(t Type, lit any) (Value, error) {
	return valueFromLiteral(t, lit, "$")
}

func valueFromLiteral(t Type, lit any, path string) (Value, error) {
	switch tt := t.(type) {
	case ScalarType:
		x, err := literalInt(tt, lit, path)
		if err != nil {
			return nil, err
		}
		return Scalar(tt, x), nil

	case ArrayType:
		n := NumElements(tt.Shape)
		data := make([]uint64, 0, n)
		if _, isList := lit.([]any); !isList {
			x, err := literalInt(tt.Elem, lit, path)
			if err != nil {
				return nil, err
			}
			for i := int64(0); i < n; i++ {
				data = append(data, x)
			}
			return &Tensor{Shape: append([]int64(nil), tt.Shape...), Elem: tt.Elem, Data: data}, nil
		}
		data, err := flattenLiteral(tt.Elem, tt.Shape, lit, path, data)
		if err != nil {
			return nil, err
		}
		return &Tensor{Shape: append([]int64(nil), tt.Shape...), Elem: tt.Elem, Data: data}, nil

	case NamedTupleType:
		m, ok := lit.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected map for %s, got %T", path, t, lit)
		}
		if len(m) != len(tt.Fields) {
			return nil, fmt.Errorf("%s: expected %d fields, got %d", path, len(tt.Fields), len(m))
		}
		elems := make([]Value, len(tt.Fields))
		for i, f := range tt.Fields {
			sub, ok := m[f.Name]
			if !ok {
				return nil, fmt.Errorf("%s: missing field %q", path, f.Name)
			}
			v, err := valueFromLiteral(f.Type, sub, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Composite{Elems: elems}, nil

	default:
		list, ok := lit.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected list for %s, got %T", path, t, lit)
		}
		children := Children(t)
		if len(list) != len(children) {
			return nil, fmt.Errorf("%s: expected %d components, got %d", path, len(children), len(list))
		}
		elems := make([]Value, len(children))
		for i, c := range children {
			v, err := valueFromLiteral(c, list[i], fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Composite{Elems: elems}, nil
	}
}

func flattenLiteral(elem ScalarType, shape []int64, lit any, path string, out []uint64) ([]uint64, error) {
	if len(shape) == 0 {
		x, err := literalInt(elem, lit, path)
		if err != nil {
			return nil, err
		}
		return append(out, x), nil
	}
	list, ok := lit.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected list of length %d, got %T", path, shape[0], lit)
	}
	if int64(len(list)) != shape[0] {
		return nil, fmt.Errorf("%s: expected list of length %d, got %d", path, shape[0], len(list))
	}
	var err error
	for i, sub := range list {
		out, err = flattenLiteral(elem, shape[1:], sub, fmt.Sprintf("%s[%d]", path, i), out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// literalInt accepts the integer representations produced by the decoders
// used across mpcgraph and reduces them into the scalar's ring.
func literalInt(elem ScalarType, lit any, path string) (uint64, error) {
	var n *big.Int
	switch x := lit.(type) {
	case int:
		n = big.NewInt(int64(x))
	case int8:
		n = big.NewInt(int64(x))
	case int16:
		n = big.NewInt(int64(x))
	case int32:
		n = big.NewInt(int64(x))
	case int64:
		n = big.NewInt(x)
	case uint:
		n = new(big.Int).SetUint64(uint64(x))
	case uint8:
		n = new(big.Int).SetUint64(uint64(x))
	case uint16:
		n = new(big.Int).SetUint64(uint64(x))
	case uint32:
		n = new(big.Int).SetUint64(uint64(x))
	case uint64:
		n = new(big.Int).SetUint64(x)
	case bool:
		n = big.NewInt(0)
		if x {
			n = big.NewInt(1)
		}
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%s: non-integer number %v", path, x)
		}
		n, _ = new(big.Float).SetFloat64(x).Int(nil)
	case json.Number:
		var ok bool
		n, ok = new(big.Int).SetString(string(x), 10)
		if !ok {
			return 0, fmt.Errorf("%s: non-integer number %s", path, x)
		}
	case *big.Int:
		n = x
	case string:
		var ok bool
		n, ok = new(big.Int).SetString(x, 0)
		if !ok {
			return 0, fmt.Errorf("%s: cannot parse %q as integer", path, x)
		}
	default:
		return 0, fmt.Errorf("%s: expected integer, got %T", path, lit)
	}

	// Accept [-2^(bits-1), 2^bits) so both signed and unsigned spellings work.
	lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(elem.Bits-1)))
	if elem.Bits == 1 {
		lo = big.NewInt(0)
	}
	hi := new(big.Int).Lsh(big.NewInt(1), uint(elem.Bits))
	if n.Cmp(lo) < 0 || n.Cmp(hi) >= 0 {
		return 0, fmt.Errorf("%s: %s out of range for %s", path, n, elem)
	}
	if n.Sign() < 0 {
		n = new(big.Int).Add(n, hi)
	}
	return n.Uint64() & elem.Mask(), nil
}

// ValueToLiteral converts a value of type t into a generic literal suitable
// for YAML or JSON output. Signed elements become int64, unsigned become
// uint64.
func ValueToLiteral(t Type, v Value) (any, error) {
	if err := CheckValue(t, v); err != nil {
		return nil, err
	}
	return valueToLiteral(t, v), nil
}

func valueToLiteral(t Type, v Value) any {
	switch tt := t.(type) {
	case ScalarType:
		return scalarLiteral(tt, v.(*Tensor).Data[0])
	case ArrayType:
		tv := v.(*Tensor)
		pos := 0
		return nestLiteral(tt.Elem, tt.Shape, tv.Data, &pos)
	case NamedTupleType:
		cv := v.(*Composite)
		out := make(map[string]any, len(tt.Fields))
		for i, f := range tt.Fields {
			out[f.Name] = valueToLiteral(f.Type, cv.Elems[i])
		}
		return out
	default:
		cv := v.(*Composite)
		children := Children(t)
		out := make([]any, len(children))
		for i, c := range children {
			out[i] = valueToLiteral(c, cv.Elems[i])
		}
		return out
	}
}

func scalarLiteral(elem ScalarType, raw uint64) any {
	if elem.Signed {
		return Interpret(elem, raw)
	}
	return raw
}

func nestLiteral(elem ScalarType, shape []int64, data []uint64, pos *int) any {
	if len(shape) == 0 {
		x := scalarLiteral(elem, data[*pos])
		*pos++
		return x
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i] = nestLiteral(elem, shape[1:], data, pos)
	}
	return out
}

// FormatScalarLiteral renders a raw ring element the way ValueToLiteral would.
func FormatScalarLiteral(elem ScalarType, raw uint64) string {
	if elem.Signed {
		return strconv.FormatInt(Interpret(elem, raw), 10)
	}
	return strconv.FormatUint(raw&elem.Mask(), 10)
}
