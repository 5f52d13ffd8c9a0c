package ir

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Type documents are tagged unions keyed by "kind".
const (
	typeKindScalar     = "scalar"
	typeKindArray      = "array"
	typeKindVector     = "vector"
	typeKindTuple      = "tuple"
	typeKindNamedTuple = "named_tuple"
)

// EncodeType converts a type into its tagged-union document.
func EncodeType(t Type) Doc {
	switch tt := t.(type) {
	case ScalarType:
		return DocObject{
			"kind":   DocString(typeKindScalar),
			"bits":   DocInt(tt.Bits),
			"signed": DocBool(tt.Signed),
		}
	case ArrayType:
		return DocObject{
			"kind":  DocString(typeKindArray),
			"shape": intsDoc(tt.Shape),
			"elem":  EncodeType(tt.Elem),
		}
	case VectorType:
		return DocObject{
			"kind": DocString(typeKindVector),
			"len":  DocInt(tt.Len),
			"elem": EncodeType(tt.Elem),
		}
	case TupleType:
		elems := make(DocArray, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = EncodeType(e)
		}
		return DocObject{
			"kind":  DocString(typeKindTuple),
			"elems": elems,
		}
	case NamedTupleType:
		fields := make(DocArray, len(tt.Fields))
		for i, f := range tt.Fields {
			fields[i] = DocObject{
				"name": DocString(f.Name),
				"type": EncodeType(f.Type),
			}
		}
		return DocObject{
			"kind":   DocString(typeKindNamedTuple),
			"fields": fields,
		}
	default:
		panic(fmt.Sprintf("EncodeType: unknown type %T", t))
	}
}

// DecodeType parses a type document.
func DecodeType(d Doc) (Type, error) {
	t, err := decodeType(d, "$.type")
	if err != nil {
		return nil, err
	}
	if err := ValidateType(t); err != nil {
		return nil, docErrorf("", "%v", err)
	}
	return t, nil
}

func decodeType(d Doc, path string) (Type, error) {
	r := newDocReader(d, path)
	kind := r.str("kind", true)
	if r.err != nil {
		return nil, r.err
	}
	switch kind {
	case typeKindScalar:
		t := ScalarType{Bits: int(r.int("bits", true)), Signed: r.bool("signed")}
		return t, r.err
	case typeKindArray:
		shape := r.ints("shape")
		elemDoc := r.raw("elem", true)
		if r.err != nil {
			return nil, r.err
		}
		elem, err := decodeType(elemDoc, path+".elem")
		if err != nil {
			return nil, err
		}
		st, ok := elem.(ScalarType)
		if !ok {
			return nil, docErrorf(path+".elem", "array elements must be scalars")
		}
		return ArrayType{Shape: shape, Elem: st}, nil
	case typeKindVector:
		n := r.int("len", true)
		elemDoc := r.raw("elem", true)
		if r.err != nil {
			return nil, r.err
		}
		elem, err := decodeType(elemDoc, path+".elem")
		if err != nil {
			return nil, err
		}
		return VectorType{Len: n, Elem: elem}, nil
	case typeKindTuple:
		arr := r.array("elems", true)
		if r.err != nil {
			return nil, r.err
		}
		elems := make([]Type, len(arr))
		for i, e := range arr {
			t, err := decodeType(e, fmt.Sprintf("%s.elems[%d]", path, i))
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return TupleType{Elems: elems}, nil
	case typeKindNamedTuple:
		arr := r.array("fields", true)
		if r.err != nil {
			return nil, r.err
		}
		fields := make([]Field, len(arr))
		for i, f := range arr {
			fpath := fmt.Sprintf("%s.fields[%d]", path, i)
			fr := newDocReader(f, fpath)
			name := fr.str("name", true)
			typeDoc := fr.raw("type", true)
			if fr.err != nil {
				return nil, fr.err
			}
			t, err := decodeType(typeDoc, fpath+".type")
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: name, Type: t}
		}
		return NamedTupleType{Fields: fields}, nil
	default:
		return nil, docErrorf(path+".kind", "unknown type kind %q", kind)
	}
}

// EncodeValue converts a value of type t into a document. Tensor data is
// base64 of little-endian u64 words so every ring element survives the
// int64-only document model.
func EncodeValue(t Type, v Value) (Doc, error) {
	if err := CheckValue(t, v); err != nil {
		return nil, err
	}
	return encodeValue(v), nil
}

func encodeValue(v Value) Doc {
	switch vv := v.(type) {
	case *Tensor:
		buf := make([]byte, 8*len(vv.Data))
		for i, d := range vv.Data {
			binary.LittleEndian.PutUint64(buf[8*i:], d)
		}
		return DocObject{"data": DocString(base64.StdEncoding.EncodeToString(buf))}
	case *Composite:
		elems := make(DocArray, len(vv.Elems))
		for i, e := range vv.Elems {
			elems[i] = encodeValue(e)
		}
		return DocObject{"elems": elems}
	default:
		panic(fmt.Sprintf("encodeValue: unknown value %T", v))
	}
}

// DecodeValue parses a value document against its type.
func DecodeValue(t Type, d Doc) (Value, error) {
	v, err := decodeValue(t, d, "$.value")
	if err != nil {
		return nil, err
	}
	if err := CheckValue(t, v); err != nil {
		return nil, docErrorf("", "%v", err)
	}
	return v, nil
}

func decodeValue(t Type, d Doc, path string) (Value, error) {
	r := newDocReader(d, path)
	if shape, elem, ok := TensorParts(t); ok {
		s := r.str("data", true)
		if r.err != nil {
			return nil, r.err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, docErrorf(path+".data", "invalid base64: %v", err)
		}
		if int64(len(raw)) != 8*NumElements(shape) {
			return nil, docErrorf(path+".data", "expected %d bytes, got %d", 8*NumElements(shape), len(raw))
		}
		data := make([]uint64, len(raw)/8)
		for i := range data {
			data[i] = binary.LittleEndian.Uint64(raw[8*i:])
		}
		return &Tensor{Shape: append([]int64(nil), shape...), Elem: elem, Data: data}, nil
	}
	arr := r.array("elems", true)
	if r.err != nil {
		return nil, r.err
	}
	children := Children(t)
	if len(arr) != len(children) {
		return nil, docErrorf(path+".elems", "expected %d components, got %d", len(children), len(arr))
	}
	elems := make([]Value, len(arr))
	for i, c := range children {
		v, err := decodeValue(c, arr[i], fmt.Sprintf("%s.elems[%d]", path, i))
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &Composite{Elems: elems}, nil
}

// EncodeOp converts an op into its tagged-union document. Exactly the
// attributes of the op's schema are emitted, zero values included, so the
// encoding of a kind never varies in shape.
func EncodeOp(op Op) (Doc, error) {
	s, ok := opSchemas[op.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown op kind %q", op.Kind)
	}
	obj := DocObject{"op": DocString(op.Kind)}
	if s.attrs&attrType != 0 {
		obj["type"] = EncodeType(op.Type)
	}
	if s.attrs&attrValue != 0 {
		v, err := EncodeValue(op.Type, op.Value)
		if err != nil {
			return nil, fmt.Errorf("%s value: %w", op.Kind, err)
		}
		obj["value"] = v
	}
	if s.attrs&attrParty != 0 {
		obj["party"] = DocInt(op.Party)
	}
	if s.attrs&attrFromTo != 0 {
		obj["from"] = DocInt(op.From)
		obj["to"] = DocInt(op.To)
	}
	if s.attrs&attrName != 0 {
		obj["name"] = DocString(op.Name)
	}
	if s.attrs&attrNames != 0 {
		names := make(DocArray, len(op.Names))
		for i, n := range op.Names {
			names[i] = DocString(n)
		}
		obj["names"] = names
	}
	if s.attrs&attrIndex != 0 {
		obj["index"] = DocInt(op.Index)
	}
	if s.attrs&attrIndices != 0 {
		obj["indices"] = intsDoc(op.Indices)
	}
	if s.attrs&attrAxes != 0 {
		obj["axes"] = intsDoc(op.Axes)
	}
	if s.attrs&attrAxis != 0 {
		obj["axis"] = DocInt(op.Axis)
	}
	if s.attrs&attrCount != 0 {
		obj["count"] = DocInt(op.Count)
	}
	if s.attrs&attrScale != 0 {
		// Scales above 2^63 are meaningless for 64-bit rings; the int64
		// conversion is lossless for every valid graph.
		obj["scale"] = DocInt(int64(op.Scale))
	}
	if s.attrs&attrGraph != 0 {
		obj["graph"] = DocInt(op.Graph)
	}
	if s.attrs&attrTriple != 0 {
		types := make(DocArray, len(op.Types))
		for i, t := range op.Types {
			types[i] = EncodeType(t)
		}
		obj["bilinear"] = DocString(op.Bilinear)
		obj["types"] = types
	}
	return obj, nil
}

// DecodeOp parses an op document. Keys outside the kind's schema are
// rejected.
func DecodeOp(d Doc, path string) (Op, error) {
	r := newDocReader(d, path)
	kind := OpKind(r.str("op", true))
	if r.err != nil {
		return Op{}, r.err
	}
	s, ok := opSchemas[kind]
	if !ok {
		return Op{}, docErrorf(path+".op", "unknown op kind %q", kind)
	}
	allowed := map[string]bool{"op": true}
	op := Op{Kind: kind}

	if s.attrs&attrType != 0 {
		allowed["type"] = true
		td := r.raw("type", true)
		if r.err != nil {
			return Op{}, r.err
		}
		t, err := decodeType(td, path+".type")
		if err != nil {
			return Op{}, err
		}
		op.Type = t
	}
	if s.attrs&attrValue != 0 {
		allowed["value"] = true
		vd := r.raw("value", true)
		if r.err != nil {
			return Op{}, r.err
		}
		if err := ValidateType(op.Type); err != nil {
			return Op{}, docErrorf(path+".type", "%v", err)
		}
		v, err := decodeValue(op.Type, vd, path+".value")
		if err != nil {
			return Op{}, err
		}
		op.Value = v
	}
	if s.attrs&attrParty != 0 {
		allowed["party"] = true
		op.Party = int(r.int("party", true))
	}
	if s.attrs&attrFromTo != 0 {
		allowed["from"], allowed["to"] = true, true
		op.From = int(r.int("from", true))
		op.To = int(r.int("to", true))
	}
	if s.attrs&attrName != 0 {
		allowed["name"] = true
		op.Name = r.str("name", true)
	}
	if s.attrs&attrNames != 0 {
		allowed["names"] = true
		op.Names = r.strs("names")
	}
	if s.attrs&attrIndex != 0 {
		allowed["index"] = true
		op.Index = r.int("index", true)
	}
	if s.attrs&attrIndices != 0 {
		allowed["indices"] = true
		op.Indices = r.ints("indices")
	}
	if s.attrs&attrAxes != 0 {
		allowed["axes"] = true
		op.Axes = r.ints("axes")
	}
	if s.attrs&attrAxis != 0 {
		allowed["axis"] = true
		op.Axis = r.int("axis", true)
	}
	if s.attrs&attrCount != 0 {
		allowed["count"] = true
		op.Count = r.int("count", true)
	}
	if s.attrs&attrScale != 0 {
		allowed["scale"] = true
		scale := r.int("scale", true)
		if scale <= 0 && r.err == nil {
			r.fail("scale", "must be positive")
		}
		op.Scale = uint64(scale)
	}
	if s.attrs&attrGraph != 0 {
		allowed["graph"] = true
		op.Graph = int(r.int("graph", true))
	}
	if s.attrs&attrTriple != 0 {
		allowed["bilinear"], allowed["types"] = true, true
		op.Bilinear = OpKind(r.str("bilinear", true))
		arr := r.array("types", true)
		if r.err != nil {
			return Op{}, r.err
		}
		op.Types = make([]Type, len(arr))
		for i, td := range arr {
			t, err := decodeType(td, fmt.Sprintf("%s.types[%d]", path, i))
			if err != nil {
				return Op{}, err
			}
			op.Types[i] = t
		}
	}
	if r.err != nil {
		return Op{}, r.err
	}
	for k := range r.obj {
		if !allowed[k] {
			return Op{}, docErrorf(path+"."+k, "attribute not allowed for %s", kind)
		}
	}
	return op, nil
}

func intsDoc(xs []int64) DocArray {
	out := make(DocArray, len(xs))
	for i, x := range xs {
		out[i] = DocInt(x)
	}
	return out
}

// IntsDoc encodes a list of integers.
func IntsDoc(xs []int64) DocArray { return intsDoc(xs) }
