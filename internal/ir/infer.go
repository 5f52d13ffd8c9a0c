package ir

import (
	"fmt"
	"slices"
)

// Signature describes a finalized graph as seen by a caller.
type Signature struct {
	Inputs []Type
	Output Type
}

// SignatureResolver looks up callee signatures for call nodes.
type SignatureResolver interface {
	Signature(graph int) (Signature, error)
}

type inferFunc func(op Op, in []Type, r SignatureResolver) (Type, error)

var inferTable map[OpKind]inferFunc

func init() {
	inferTable = map[OpKind]inferFunc{
		OpInput:    inferDeclared,
		OpConstant: inferDeclared,
		OpZeros:    inferDeclared,

		OpAdd:           inferArith,
		OpSubtract:      inferArith,
		OpMultiply:      inferArith,
		OpMixedMultiply: inferMixedMultiply,
		OpNegate:        inferUnaryTensor,
		OpMatmul:        inferMatmul,
		OpSum:           inferSum,
		OpTruncate:      inferUnaryTensor,

		OpEqual:            inferCompare,
		OpNotEqual:         inferCompare,
		OpLessThan:         inferCompare,
		OpLessThanEqual:    inferCompare,
		OpGreaterThan:      inferCompare,
		OpGreaterThanEqual: inferCompare,

		OpNot:    inferNot,
		OpAnd:    inferLogic,
		OpOr:     inferLogic,
		OpXor:    inferLogic,
		OpSelect: inferSelect,

		OpCast:     inferCast,
		OpToBits:   inferToBits,
		OpFromBits: inferFromBits,

		OpReshape:     inferReshape,
		OpPermuteAxes: inferPermuteAxes,
		OpGet:         inferGet,
		OpGather:      inferGather,
		OpScatter:     inferScatter,
		OpStack:       inferStack,

		OpCreateTuple:      inferCreateTuple,
		OpCreateNamedTuple: inferCreateNamedTuple,
		OpTupleGet:         inferTupleGet,
		OpNamedTupleGet:    inferNamedTupleGet,

		OpCreateVector:  inferCreateVector,
		OpVectorGet:     inferVectorGet,
		OpZip:           inferZip,
		OpRepeat:        inferRepeat,
		OpArrayToVector: inferArrayToVector,
		OpVectorToArray: inferVectorToArray,

		OpCall: inferCall,

		OpSend:      inferPassThrough,
		OpReceive:   inferPassThrough,
		OpPRFKey:    inferPRFKey,
		OpMask:      inferMask,
		OpTriple:    inferTriple,
		OpPartyGate: inferPassThrough,
	}
}

// PRFKeyType is the type of prf_key outputs: a 128-bit key.
var PRFKeyType = Array(UINT64, 2)

// InferType returns the output type of op applied to inputs of the given
// types. Failures are *TypeError values carrying TYPE_MISMATCH,
// SHAPE_MISMATCH, UNKNOWN_FIELD or INVALID_ATTRIBUTE. The resolver is only
// consulted for call nodes and may be nil otherwise.
func InferType(op Op, in []Type, r SignatureResolver) (Type, error) {
	if err := op.Kind.CheckArity(len(in)); err != nil {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "%v", err)
	}
	if err := op.Validate(); err != nil {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "%v", err)
	}
	fn, ok := inferTable[op.Kind]
	if !ok {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "no type rule")
	}
	return fn(op, in, r)
}

func tensorArg(op Op, t Type, pos int) ([]int64, ScalarType, error) {
	shape, elem, ok := TensorParts(t)
	if !ok {
		return nil, ScalarType{}, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input %d must be a scalar or array, got %s", pos, t)
	}
	return shape, elem, nil
}

func arrayArg(op Op, t Type, pos int) (ArrayType, error) {
	a, ok := t.(ArrayType)
	if !ok {
		return ArrayType{}, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input %d must be an array, got %s", pos, t)
	}
	return a, nil
}

func broadcast(op Op, shapes ...[]int64) ([]int64, error) {
	out, err := BroadcastShapes(shapes...)
	if err != nil {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "%v", err)
	}
	return out, nil
}

func inferDeclared(op Op, _ []Type, _ SignatureResolver) (Type, error) {
	return op.Type, nil
}

func inferPassThrough(_ Op, in []Type, _ SignatureResolver) (Type, error) {
	return in[0], nil
}

func inferArith(op Op, in []Type, _ SignatureResolver) (Type, error) {
	s0, e0, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	s1, e1, err := tensorArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	if e0 != e1 {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "element types differ: %s vs %s", e0, e1)
	}
	shape, err := broadcast(op, s0, s1)
	if err != nil {
		return nil, err
	}
	return TensorOf(shape, e0), nil
}

func inferMixedMultiply(op Op, in []Type, _ SignatureResolver) (Type, error) {
	s0, e0, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	s1, e1, err := tensorArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	if e1 != BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "second input must be bits, got %s", e1)
	}
	shape, err := broadcast(op, s0, s1)
	if err != nil {
		return nil, err
	}
	return TensorOf(shape, e0), nil
}

func inferUnaryTensor(op Op, in []Type, _ SignatureResolver) (Type, error) {
	if _, _, err := tensorArg(op, in[0], 0); err != nil {
		return nil, err
	}
	return in[0], nil
}

func inferMatmul(op Op, in []Type, _ SignatureResolver) (Type, error) {
	s0, e0, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	s1, e1, err := tensorArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	if e0 != e1 {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "element types differ: %s vs %s", e0, e1)
	}
	shape, err := MatmulShape(s0, s1)
	if err != nil {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "%v", err)
	}
	return TensorOf(shape, e0), nil
}

func checkAxes(op Op, axes []int64, rank int, permutation bool) error {
	seen := make(map[int64]bool, len(axes))
	for _, a := range axes {
		if a < 0 || a >= int64(rank) {
			return typeErrorf(ErrCodeShapeMismatch, op.Kind, "axis %d out of range for rank %d", a, rank)
		}
		if seen[a] {
			return typeErrorf(ErrCodeShapeMismatch, op.Kind, "axis %d repeated", a)
		}
		seen[a] = true
	}
	if permutation && len(axes) != 0 && len(axes) != rank {
		return typeErrorf(ErrCodeShapeMismatch, op.Kind, "permutation %v does not cover rank %d", axes, rank)
	}
	return nil
}

// SumAxes returns the axes a sum node reduces: all of them when none are given.
func SumAxes(op Op, rank int) []int64 {
	if len(op.Axes) > 0 {
		return op.Axes
	}
	all := make([]int64, rank)
	for i := range all {
		all[i] = int64(i)
	}
	return all
}

func inferSum(op Op, in []Type, _ SignatureResolver) (Type, error) {
	shape, elem, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if err := checkAxes(op, op.Axes, len(shape), false); err != nil {
		return nil, err
	}
	axes := SumAxes(op, len(shape))
	var out []int64
	for i, d := range shape {
		if !slices.Contains(axes, int64(i)) {
			out = append(out, d)
		}
	}
	return TensorOf(out, elem), nil
}

func inferCompare(op Op, in []Type, r SignatureResolver) (Type, error) {
	t, err := inferArith(op, in, r)
	if err != nil {
		return nil, err
	}
	shape, _, _ := TensorParts(t)
	return TensorOf(shape, BIT), nil
}

func inferNot(op Op, in []Type, _ SignatureResolver) (Type, error) {
	_, elem, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if elem != BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be bits, got %s", elem)
	}
	return in[0], nil
}

func inferLogic(op Op, in []Type, r SignatureResolver) (Type, error) {
	t, err := inferArith(op, in, r)
	if err != nil {
		return nil, err
	}
	if _, elem, _ := TensorParts(t); elem != BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "inputs must be bits, got %s", elem)
	}
	return t, nil
}

func inferSelect(op Op, in []Type, _ SignatureResolver) (Type, error) {
	sc, ec, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if ec != BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "condition must be bits, got %s", ec)
	}
	s1, e1, err := tensorArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	s2, e2, err := tensorArg(op, in[2], 2)
	if err != nil {
		return nil, err
	}
	if e1 != e2 {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "branch element types differ: %s vs %s", e1, e2)
	}
	shape, err := broadcast(op, sc, s1, s2)
	if err != nil {
		return nil, err
	}
	return TensorOf(shape, e1), nil
}

func scalarAttr(op Op) (ScalarType, error) {
	st, ok := op.Type.(ScalarType)
	if !ok {
		return ScalarType{}, typeErrorf(ErrCodeTypeMismatch, op.Kind, "target must be a scalar type, got %s", op.Type)
	}
	return st, nil
}

func inferCast(op Op, in []Type, _ SignatureResolver) (Type, error) {
	shape, _, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	st, err := scalarAttr(op)
	if err != nil {
		return nil, err
	}
	return TensorOf(shape, st), nil
}

func inferToBits(op Op, in []Type, _ SignatureResolver) (Type, error) {
	shape, elem, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	out := append(append([]int64(nil), shape...), int64(elem.Bits))
	return Array(BIT, out...), nil
}

func inferFromBits(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if a.Elem != BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be bits, got %s", a.Elem)
	}
	st, err := scalarAttr(op)
	if err != nil {
		return nil, err
	}
	if a.Shape[len(a.Shape)-1] != int64(st.Bits) {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "last dimension %d does not match %s", a.Shape[len(a.Shape)-1], st)
	}
	return TensorOf(a.Shape[:len(a.Shape)-1], st), nil
}

func inferReshape(op Op, in []Type, _ SignatureResolver) (Type, error) {
	shape, elem, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	toShape, toElem, ok := TensorParts(op.Type)
	if !ok {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "target must be a scalar or array, got %s", op.Type)
	}
	if toElem != elem {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "reshape cannot change element type %s to %s", elem, toElem)
	}
	if NumElements(shape) != NumElements(toShape) {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "cannot reshape %v into %v", shape, toShape)
	}
	return op.Type, nil
}

// PermutationAxes returns the permutation a permute_axes node applies:
// the reversal of all axes when none are given.
func PermutationAxes(op Op, rank int) []int64 {
	if len(op.Axes) > 0 {
		return op.Axes
	}
	rev := make([]int64, rank)
	for i := range rev {
		rev[i] = int64(rank - 1 - i)
	}
	return rev
}

func inferPermuteAxes(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if err := checkAxes(op, op.Axes, len(a.Shape), true); err != nil {
		return nil, err
	}
	perm := PermutationAxes(op, len(a.Shape))
	out := make([]int64, len(perm))
	for i, p := range perm {
		out[i] = a.Shape[p]
	}
	return Array(a.Elem, out...), nil
}

func inferGet(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	if len(op.Indices) == 0 || len(op.Indices) > len(a.Shape) {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "index %v invalid for shape %v", op.Indices, a.Shape)
	}
	for i, idx := range op.Indices {
		if idx < 0 || idx >= a.Shape[i] {
			return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "index %v out of range for shape %v", op.Indices, a.Shape)
		}
	}
	return TensorOf(a.Shape[len(op.Indices):], a.Elem), nil
}

func indexArg(op Op, t Type, pos int) ([]int64, error) {
	shape, elem, err := tensorArg(op, t, pos)
	if err != nil {
		return nil, err
	}
	if elem == BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "indices must be integers, got %s", elem)
	}
	return shape, nil
}

func inferGather(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	idx, err := indexArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	if op.Axis < 0 || op.Axis >= int64(len(a.Shape)) {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "axis %d out of range for rank %d", op.Axis, len(a.Shape))
	}
	out := append([]int64(nil), a.Shape[:op.Axis]...)
	out = append(out, idx...)
	out = append(out, a.Shape[op.Axis+1:]...)
	return TensorOf(out, a.Elem), nil
}

func inferScatter(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	idx, err := indexArg(op, in[1], 1)
	if err != nil {
		return nil, err
	}
	if op.Axis < 0 || op.Axis >= int64(len(a.Shape)) {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "axis %d out of range for rank %d", op.Axis, len(a.Shape))
	}
	if len(idx) != 1 || idx[0] != a.Shape[op.Axis] {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "indices must be 1-D of length %d, got %v", a.Shape[op.Axis], idx)
	}
	if op.Count <= 0 {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "count must be positive")
	}
	out := append([]int64(nil), a.Shape...)
	out[op.Axis] = op.Count
	return Array(a.Elem, out...), nil
}

func inferStack(op Op, in []Type, _ SignatureResolver) (Type, error) {
	shape, elem, err := tensorArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	for i, t := range in[1:] {
		if !t.Equal(in[0]) {
			return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input %d has type %s, expected %s", i+1, t, in[0])
		}
	}
	out := append([]int64{int64(len(in))}, shape...)
	return Array(elem, out...), nil
}

func inferCreateTuple(_ Op, in []Type, _ SignatureResolver) (Type, error) {
	return Tuple(in...), nil
}

func inferCreateNamedTuple(op Op, in []Type, _ SignatureResolver) (Type, error) {
	if len(op.Names) != len(in) {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "%d names for %d inputs", len(op.Names), len(in))
	}
	fields := make([]Field, len(in))
	for i, t := range in {
		fields[i] = Field{Name: op.Names[i], Type: t}
	}
	nt := NamedTuple(fields...)
	if err := ValidateType(nt); err != nil {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "%v", err)
	}
	return nt, nil
}

func inferTupleGet(op Op, in []Type, _ SignatureResolver) (Type, error) {
	var elems []Type
	switch t := in[0].(type) {
	case TupleType:
		elems = t.Elems
	case NamedTupleType:
		elems = Children(t)
	default:
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be a tuple, got %s", in[0])
	}
	if op.Index < 0 || op.Index >= int64(len(elems)) {
		return nil, typeErrorf(ErrCodeUnknownField, op.Kind, "index %d out of range for %s", op.Index, in[0])
	}
	return elems[op.Index], nil
}

func inferNamedTupleGet(op Op, in []Type, _ SignatureResolver) (Type, error) {
	nt, ok := in[0].(NamedTupleType)
	if !ok {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be a named tuple, got %s", in[0])
	}
	i := nt.FieldIndex(op.Name)
	if i < 0 {
		return nil, typeErrorf(ErrCodeUnknownField, op.Kind, "no field %q in %s", op.Name, nt)
	}
	return nt.Fields[i].Type, nil
}

func inferCreateVector(op Op, in []Type, _ SignatureResolver) (Type, error) {
	for i, t := range in {
		if !t.Equal(op.Type) {
			return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "element %d has type %s, expected %s", i, t, op.Type)
		}
	}
	return Vector(int64(len(in)), op.Type), nil
}

func inferVectorGet(op Op, in []Type, _ SignatureResolver) (Type, error) {
	v, ok := in[0].(VectorType)
	if !ok {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be a vector, got %s", in[0])
	}
	st, ok := in[1].(ScalarType)
	if !ok || st == BIT {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "index must be an integer scalar, got %s", in[1])
	}
	return v.Elem, nil
}

func inferZip(op Op, in []Type, _ SignatureResolver) (Type, error) {
	var n int64 = -1
	elems := make([]Type, len(in))
	for i, t := range in {
		v, ok := t.(VectorType)
		if !ok {
			return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input %d must be a vector, got %s", i, t)
		}
		if n >= 0 && v.Len != n {
			return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "vector lengths differ: %d vs %d", n, v.Len)
		}
		n = v.Len
		elems[i] = v.Elem
	}
	return Vector(n, Tuple(elems...)), nil
}

func inferRepeat(op Op, in []Type, _ SignatureResolver) (Type, error) {
	if op.Count < 0 {
		return nil, typeErrorf(ErrCodeInvalidAttribute, op.Kind, "count must be non-negative")
	}
	return Vector(op.Count, in[0]), nil
}

func inferArrayToVector(op Op, in []Type, _ SignatureResolver) (Type, error) {
	a, err := arrayArg(op, in[0], 0)
	if err != nil {
		return nil, err
	}
	return Vector(a.Shape[0], TensorOf(a.Shape[1:], a.Elem)), nil
}

func inferVectorToArray(op Op, in []Type, _ SignatureResolver) (Type, error) {
	v, ok := in[0].(VectorType)
	if !ok {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "input must be a vector, got %s", in[0])
	}
	shape, elem, ok := TensorParts(v.Elem)
	if !ok {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "vector elements must be scalars or arrays, got %s", v.Elem)
	}
	if v.Len == 0 {
		return nil, typeErrorf(ErrCodeShapeMismatch, op.Kind, "cannot convert an empty vector")
	}
	return Array(elem, append([]int64{v.Len}, shape...)...), nil
}

func inferCall(op Op, in []Type, r SignatureResolver) (Type, error) {
	if r == nil {
		return nil, typeErrorf(ErrCodeUnknownGraph, op.Kind, "no graph resolver")
	}
	sig, err := r.Signature(op.Graph)
	if err != nil {
		return nil, err
	}
	if len(sig.Inputs) != len(in) {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "graph %d takes %d inputs, got %d", op.Graph, len(sig.Inputs), len(in))
	}
	for i, t := range in {
		if !t.Equal(sig.Inputs[i]) {
			return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "argument %d has type %s, graph %d expects %s", i, t, op.Graph, sig.Inputs[i])
		}
	}
	return sig.Output, nil
}

func inferPRFKey(_ Op, _ []Type, _ SignatureResolver) (Type, error) {
	return PRFKeyType, nil
}

func inferMask(op Op, in []Type, _ SignatureResolver) (Type, error) {
	if !in[0].Equal(PRFKeyType) {
		return nil, typeErrorf(ErrCodeTypeMismatch, op.Kind, "key must be %s, got %s", PRFKeyType, in[0])
	}
	return op.Type, nil
}

// TripleOutput returns the product type c of a triple over (a, b).
func TripleOutput(bilinear OpKind, a, b Type) (Type, error) {
	return InferType(Op{Kind: bilinear}, []Type{a, b}, nil)
}

func inferTriple(op Op, _ []Type, _ SignatureResolver) (Type, error) {
	c, err := TripleOutput(op.Bilinear, op.Types[0], op.Types[1])
	if err != nil {
		return nil, fmt.Errorf("triple operands: %w", err)
	}
	return Tuple(op.Types[0], op.Types[1], c), nil
}
