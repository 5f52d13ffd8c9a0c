package ir

import (
	"fmt"
	"slices"
)

// OpKind identifies the operation a node performs. The set is closed:
// every kind has an entry in the schema table below, in the type
// inference table, and in the evaluator's kernel table.
type OpKind string

const (
	// Sources.
	OpInput    OpKind = "input"
	OpConstant OpKind = "constant"
	OpZeros    OpKind = "zeros"

	// Arithmetic.
	OpAdd           OpKind = "add"
	OpSubtract      OpKind = "subtract"
	OpMultiply      OpKind = "multiply"
	OpMixedMultiply OpKind = "mixed_multiply"
	OpNegate        OpKind = "negate"
	OpMatmul        OpKind = "matmul"
	OpSum           OpKind = "sum"
	OpTruncate      OpKind = "truncate"

	// Comparison.
	OpEqual            OpKind = "equal"
	OpNotEqual         OpKind = "not_equal"
	OpLessThan         OpKind = "less_than"
	OpLessThanEqual    OpKind = "less_than_equal"
	OpGreaterThan      OpKind = "greater_than"
	OpGreaterThanEqual OpKind = "greater_than_equal"

	// Logic.
	OpNot    OpKind = "not"
	OpAnd    OpKind = "and"
	OpOr     OpKind = "or"
	OpXor    OpKind = "xor"
	OpSelect OpKind = "select"

	// Conversion.
	OpCast     OpKind = "cast"
	OpToBits   OpKind = "to_bits"
	OpFromBits OpKind = "from_bits"

	// Shape.
	OpReshape     OpKind = "reshape"
	OpPermuteAxes OpKind = "permute_axes"
	OpGet         OpKind = "get"
	OpGather      OpKind = "gather"
	OpScatter     OpKind = "scatter"
	OpStack       OpKind = "stack"

	// Tuples.
	OpCreateTuple      OpKind = "create_tuple"
	OpCreateNamedTuple OpKind = "create_named_tuple"
	OpTupleGet         OpKind = "tuple_get"
	OpNamedTupleGet    OpKind = "named_tuple_get"

	// Vectors.
	OpCreateVector  OpKind = "create_vector"
	OpVectorGet     OpKind = "vector_get"
	OpZip           OpKind = "zip"
	OpRepeat        OpKind = "repeat"
	OpArrayToVector OpKind = "array_to_vector"
	OpVectorToArray OpKind = "vector_to_array"

	// Composition.
	OpCall OpKind = "call"

	// Protocol ops, present only in compiled graphs.
	OpSend      OpKind = "send"
	OpReceive   OpKind = "receive"
	OpPRFKey    OpKind = "prf_key"
	OpMask      OpKind = "mask"
	OpTriple    OpKind = "triple"
	OpPartyGate OpKind = "party_gate"
)

// Op is a node's operation: a kind plus the attributes its schema allows.
// Attributes a kind does not use must stay at their zero value.
type Op struct {
	Kind OpKind

	// Type is the declared type of input, constant, zeros, mask and
	// reshape nodes, the target scalar of cast and from_bits, and the
	// element type of create_vector.
	Type Type

	// Value is the payload of a constant.
	Value Value

	// Party is the owner of an input or prf_key, or the gated party.
	Party int

	// From and To are the endpoints of send and receive.
	From, To int

	// Name is an input's label or the field of named_tuple_get.
	Name string

	// Names are the fields of create_named_tuple.
	Names []string

	// Index selects a tuple_get component.
	Index int64

	// Indices is the index prefix of get.
	Indices []int64

	// Axes are the summed axes of sum or the permutation of permute_axes.
	Axes []int64

	// Axis is the indexed axis of gather and scatter.
	Axis int64

	// Count is the repeat count or the scatter output dimension.
	Count int64

	// Scale is the divisor of truncate.
	Scale uint64

	// Graph is the callee of call.
	Graph int

	// Bilinear and Types describe a triple: Types holds the operand types
	// A and B and Bilinear is multiply or matmul.
	Bilinear OpKind
	Types    []Type
}

type attr uint32

const (
	attrType attr = 1 << iota
	attrValue
	attrParty
	attrFromTo
	attrName
	attrNames
	attrIndex
	attrIndices
	attrAxes
	attrAxis
	attrCount
	attrScale
	attrGraph
	attrTriple
)

const variadic = -1

type opSchema struct {
	arity    int // exact input count, or variadic
	minArity int // for variadic ops
	attrs    attr
	protocol bool
}

var opSchemas = map[OpKind]opSchema{
	OpInput:    {arity: 0, attrs: attrType | attrParty | attrName},
	OpConstant: {arity: 0, attrs: attrType | attrValue},
	OpZeros:    {arity: 0, attrs: attrType},

	OpAdd:           {arity: 2},
	OpSubtract:      {arity: 2},
	OpMultiply:      {arity: 2},
	OpMixedMultiply: {arity: 2},
	OpNegate:        {arity: 1},
	OpMatmul:        {arity: 2},
	OpSum:           {arity: 1, attrs: attrAxes},
	OpTruncate:      {arity: 1, attrs: attrScale},

	OpEqual:            {arity: 2},
	OpNotEqual:         {arity: 2},
	OpLessThan:         {arity: 2},
	OpLessThanEqual:    {arity: 2},
	OpGreaterThan:      {arity: 2},
	OpGreaterThanEqual: {arity: 2},

	OpNot:    {arity: 1},
	OpAnd:    {arity: 2},
	OpOr:     {arity: 2},
	OpXor:    {arity: 2},
	OpSelect: {arity: 3},

	OpCast:     {arity: 1, attrs: attrType},
	OpToBits:   {arity: 1},
	OpFromBits: {arity: 1, attrs: attrType},

	OpReshape:     {arity: 1, attrs: attrType},
	OpPermuteAxes: {arity: 1, attrs: attrAxes},
	OpGet:         {arity: 1, attrs: attrIndices},
	OpGather:      {arity: 2, attrs: attrAxis},
	OpScatter:     {arity: 2, attrs: attrAxis | attrCount},
	OpStack:       {arity: variadic, minArity: 1},

	OpCreateTuple:      {arity: variadic},
	OpCreateNamedTuple: {arity: variadic, attrs: attrNames},
	OpTupleGet:         {arity: 1, attrs: attrIndex},
	OpNamedTupleGet:    {arity: 1, attrs: attrName},

	OpCreateVector:  {arity: variadic, attrs: attrType},
	OpVectorGet:     {arity: 2},
	OpZip:           {arity: variadic, minArity: 1},
	OpRepeat:        {arity: 1, attrs: attrCount},
	OpArrayToVector: {arity: 1},
	OpVectorToArray: {arity: 1},

	OpCall: {arity: variadic, attrs: attrGraph},

	OpSend:      {arity: 1, attrs: attrFromTo, protocol: true},
	OpReceive:   {arity: 1, attrs: attrFromTo, protocol: true},
	OpPRFKey:    {arity: 0, attrs: attrParty, protocol: true},
	OpMask:      {arity: 1, attrs: attrType, protocol: true},
	OpTriple:    {arity: 0, attrs: attrTriple, protocol: true},
	OpPartyGate: {arity: 1, attrs: attrParty, protocol: true},
}

// OpKinds returns every op kind in a stable order.
func OpKinds() []OpKind {
	kinds := make([]OpKind, 0, len(opSchemas))
	for k := range opSchemas {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Known reports whether k is a member of the closed op set.
func (k OpKind) Known() bool {
	_, ok := opSchemas[k]
	return ok
}

// IsProtocol reports whether k only appears in compiled graphs.
func (k OpKind) IsProtocol() bool {
	return opSchemas[k].protocol
}

// IsCommunication reports whether k moves data between parties.
func (k OpKind) IsCommunication() bool {
	return k == OpSend || k == OpReceive
}

// UsesParty reports whether k carries a party attribute that must name a
// valid party index.
func (k OpKind) UsesParty() bool {
	return opSchemas[k].attrs&attrParty != 0
}

// CheckArity validates the number of inputs for k.
func (k OpKind) CheckArity(n int) error {
	s, ok := opSchemas[k]
	if !ok {
		return fmt.Errorf("unknown op kind %q", k)
	}
	if s.arity == variadic {
		if n < s.minArity {
			return fmt.Errorf("%s takes at least %d inputs, got %d", k, s.minArity, n)
		}
		return nil
	}
	if n != s.arity {
		return fmt.Errorf("%s takes %d inputs, got %d", k, s.arity, n)
	}
	return nil
}

// Validate checks that op only sets attributes its kind allows and that the
// required attributes are present and well formed. Relationships between
// attributes and input types are checked by InferType.
func (op Op) Validate() error {
	s, ok := opSchemas[op.Kind]
	if !ok {
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
	present := op.presentAttrs()
	if extra := present &^ s.attrs; extra != 0 {
		return fmt.Errorf("%s does not accept attributes %s", op.Kind, attrList(extra))
	}
	if s.attrs&attrType != 0 {
		if op.Type == nil {
			return fmt.Errorf("%s requires a type", op.Kind)
		}
		if err := ValidateType(op.Type); err != nil {
			return fmt.Errorf("%s: %w", op.Kind, err)
		}
	}
	if s.attrs&attrValue != 0 {
		if op.Value == nil {
			return fmt.Errorf("%s requires a value", op.Kind)
		}
		if err := CheckValue(op.Type, op.Value); err != nil {
			return fmt.Errorf("%s: %w", op.Kind, err)
		}
	}
	if op.Party < 0 {
		return fmt.Errorf("%s: party must be non-negative, got %d", op.Kind, op.Party)
	}
	if s.attrs&attrFromTo != 0 {
		if op.From < 0 || op.To < 0 || op.From == op.To {
			return fmt.Errorf("%s: invalid endpoints %d -> %d", op.Kind, op.From, op.To)
		}
	}
	if s.attrs&attrScale != 0 && op.Scale == 0 {
		return fmt.Errorf("%s: scale must be positive", op.Kind)
	}
	if s.attrs&attrTriple != 0 {
		if op.Bilinear != OpMultiply && op.Bilinear != OpMatmul && op.Bilinear != OpAnd {
			return fmt.Errorf("%s: bilinear op must be multiply, matmul or and, got %q", op.Kind, op.Bilinear)
		}
		if len(op.Types) != 2 {
			return fmt.Errorf("%s: needs exactly two operand types", op.Kind)
		}
		for _, t := range op.Types {
			if err := ValidateType(t); err != nil {
				return fmt.Errorf("%s: %w", op.Kind, err)
			}
		}
	}
	if op.Kind == OpNamedTupleGet && op.Name == "" {
		return fmt.Errorf("%s requires a field name", op.Kind)
	}
	if op.Graph < 0 {
		return fmt.Errorf("%s: graph id must be non-negative", op.Kind)
	}
	return nil
}

func (op Op) presentAttrs() attr {
	var a attr
	if op.Type != nil {
		a |= attrType
	}
	if op.Value != nil {
		a |= attrValue
	}
	if op.Party != 0 {
		a |= attrParty
	}
	if op.From != 0 || op.To != 0 {
		a |= attrFromTo
	}
	if op.Name != "" {
		a |= attrName
	}
	if op.Names != nil {
		a |= attrNames
	}
	if op.Index != 0 {
		a |= attrIndex
	}
	if op.Indices != nil {
		a |= attrIndices
	}
	if op.Axes != nil {
		a |= attrAxes
	}
	if op.Axis != 0 {
		a |= attrAxis
	}
	if op.Count != 0 {
		a |= attrCount
	}
	if op.Scale != 0 {
		a |= attrScale
	}
	if op.Graph != 0 {
		a |= attrGraph
	}
	if op.Bilinear != "" || op.Types != nil {
		a |= attrTriple
	}
	return a
}

var attrLabels = []struct {
	a    attr
	name string
}{
	{attrType, "type"}, {attrValue, "value"}, {attrParty, "party"},
	{attrFromTo, "from/to"}, {attrName, "name"}, {attrNames, "names"},
	{attrIndex, "index"}, {attrIndices, "indices"}, {attrAxes, "axes"},
	{attrAxis, "axis"}, {attrCount, "count"}, {attrScale, "scale"},
	{attrGraph, "graph"}, {attrTriple, "bilinear/types"},
}

func attrList(a attr) string {
	var names []string
	for _, l := range attrLabels {
		if a&l.a != 0 {
			names = append(names, l.name)
		}
	}
	return fmt.Sprintf("%v", names)
}

// String renders the op with its non-zero attributes for listings.
func (op Op) String() string {
	s := string(op.Kind)
	var parts []string
	if op.Type != nil {
		parts = append(parts, "type="+op.Type.String())
	}
	if op.Value != nil {
		parts = append(parts, "value="+FormatValue(op.Value))
	}
	if op.Party != 0 || op.Kind.UsesParty() {
		parts = append(parts, fmt.Sprintf("party=%d", op.Party))
	}
	if op.Kind.IsCommunication() {
		parts = append(parts, fmt.Sprintf("%d->%d", op.From, op.To))
	}
	if op.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", op.Name))
	}
	if len(op.Names) > 0 {
		parts = append(parts, fmt.Sprintf("names=%v", op.Names))
	}
	if op.Index != 0 || op.Kind == OpTupleGet {
		parts = append(parts, fmt.Sprintf("index=%d", op.Index))
	}
	if len(op.Indices) > 0 {
		parts = append(parts, fmt.Sprintf("indices=%v", op.Indices))
	}
	if len(op.Axes) > 0 {
		parts = append(parts, fmt.Sprintf("axes=%v", op.Axes))
	}
	if op.Axis != 0 || op.Kind == OpGather || op.Kind == OpScatter {
		parts = append(parts, fmt.Sprintf("axis=%d", op.Axis))
	}
	if op.Count != 0 {
		parts = append(parts, fmt.Sprintf("count=%d", op.Count))
	}
	if op.Scale != 0 {
		parts = append(parts, fmt.Sprintf("scale=%d", op.Scale))
	}
	if op.Kind == OpCall {
		parts = append(parts, fmt.Sprintf("graph=%d", op.Graph))
	}
	if op.Bilinear != "" {
		parts = append(parts, fmt.Sprintf("bilinear=%s", op.Bilinear))
	}
	for i, t := range op.Types {
		parts = append(parts, fmt.Sprintf("t%d=%s", i, t))
	}
	if len(parts) == 0 {
		return s
	}
	out := s + "("
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out + ")"
}
