package kernel

import (
	"github.com/roach88/mpcgraph/internal/ir"
)

// kernelFunc evaluates one op given its input types and values.
type kernelFunc func(op ir.Op, types []ir.Type, in []ir.Value) (ir.Value, error)

var kernels map[ir.OpKind]kernelFunc

func init() {
	kernels = map[ir.OpKind]kernelFunc{
		ir.OpConstant: func(op ir.Op, _ []ir.Type, _ []ir.Value) (ir.Value, error) {
			return ir.Clone(op.Value), nil
		},
		ir.OpZeros: func(op ir.Op, _ []ir.Type, _ []ir.Value) (ir.Value, error) {
			return ir.Zero(op.Type), nil
		},

		ir.OpAdd:           binaryKernel(Add),
		ir.OpSubtract:      binaryKernel(Subtract),
		ir.OpMultiply:      binaryKernel(Multiply),
		ir.OpMixedMultiply: binaryKernel(MixedMultiply),
		ir.OpMatmul:        binaryKernel(Matmul),
		ir.OpAnd:           binaryKernel(And),
		ir.OpOr:            binaryKernel(Or),
		ir.OpXor:           binaryKernel(Xor),
		ir.OpNegate:        unaryKernel(Negate),
		ir.OpNot:           unaryKernel(Not),
		ir.OpToBits:        unaryKernel(ToBits),

		ir.OpEqual:            compareKernel,
		ir.OpNotEqual:         compareKernel,
		ir.OpLessThan:         compareKernel,
		ir.OpLessThanEqual:    compareKernel,
		ir.OpGreaterThan:      compareKernel,
		ir.OpGreaterThanEqual: compareKernel,

		ir.OpSum:      tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) { return Sum(a, op.Axes), nil }),
		ir.OpTruncate: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) { return Truncate(a, op.Scale) }),
		ir.OpCast: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) {
			return Cast(a, op.Type.(ir.ScalarType)), nil
		}),
		ir.OpFromBits: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) {
			return FromBits(a, op.Type.(ir.ScalarType))
		}),
		ir.OpReshape: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) {
			shape, _, _ := ir.TensorParts(op.Type)
			return Reshape(a, shape)
		}),
		ir.OpPermuteAxes: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) {
			return PermuteAxes(a, ir.PermutationAxes(op, len(a.Shape)))
		}),
		ir.OpGet: tensorKernel(func(op ir.Op, a *ir.Tensor) (ir.Value, error) { return Get(a, op.Indices) }),
		ir.OpArrayToVector: tensorKernel(func(_ ir.Op, a *ir.Tensor) (ir.Value, error) {
			return ArrayToVector(a)
		}),

		ir.OpSelect:  selectKernel,
		ir.OpGather:  gatherKernel,
		ir.OpScatter: scatterKernel,
		ir.OpStack:   stackKernel,

		ir.OpCreateTuple:      composeKernel,
		ir.OpCreateNamedTuple: composeKernel,
		ir.OpCreateVector:     composeKernel,
		ir.OpTupleGet: func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
			return TupleGet(in[0], op.Index)
		},
		ir.OpNamedTupleGet: namedTupleGetKernel,
		ir.OpVectorGet: func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
			idx, err := asTensor(op.Kind, in[1])
			if err != nil {
				return nil, err
			}
			return VectorGet(in[0], idx)
		},
		ir.OpZip: func(_ ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) { return Zip(in) },
		ir.OpRepeat: func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
			return Repeat(in[0], op.Count), nil
		},
		ir.OpVectorToArray: func(_ ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
			return VectorToArray(in[0])
		},
	}
}

// Has reports whether op kind has a plaintext kernel. Inputs, calls and
// protocol ops need evaluator state and are handled there.
func Has(kind ir.OpKind) bool {
	_, ok := kernels[kind]
	return ok
}

// Apply evaluates op on concrete inputs. types are the static input types,
// as recorded on the graph.
func Apply(op ir.Op, types []ir.Type, in []ir.Value) (ir.Value, error) {
	fn, ok := kernels[op.Kind]
	if !ok {
		return nil, errorf(ir.ErrCodeInvalidAttribute, op.Kind, "no plaintext kernel")
	}
	return fn(op, types, in)
}

func tensorArgs(op ir.OpKind, in []ir.Value) ([]*ir.Tensor, error) {
	out := make([]*ir.Tensor, len(in))
	for i, v := range in {
		t, err := asTensor(op, v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func binaryKernel(f func(a, b *ir.Tensor) (*ir.Tensor, error)) kernelFunc {
	return func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
		ts, err := tensorArgs(op.Kind, in)
		if err != nil {
			return nil, err
		}
		return f(ts[0], ts[1])
	}
}

func unaryKernel(f func(a *ir.Tensor) *ir.Tensor) kernelFunc {
	return func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
		a, err := asTensor(op.Kind, in[0])
		if err != nil {
			return nil, err
		}
		return f(a), nil
	}
}

func tensorKernel(f func(op ir.Op, a *ir.Tensor) (ir.Value, error)) kernelFunc {
	return func(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
		a, err := asTensor(op.Kind, in[0])
		if err != nil {
			return nil, err
		}
		return f(op, a)
	}
}

func compareKernel(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	ts, err := tensorArgs(op.Kind, in)
	if err != nil {
		return nil, err
	}
	return Compare(op.Kind, ts[0], ts[1])
}

func selectKernel(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	ts, err := tensorArgs(op.Kind, in)
	if err != nil {
		return nil, err
	}
	return Select(ts[0], ts[1], ts[2])
}

func gatherKernel(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	ts, err := tensorArgs(op.Kind, in)
	if err != nil {
		return nil, err
	}
	return Gather(ts[0], ts[1], op.Axis)
}

func scatterKernel(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	ts, err := tensorArgs(op.Kind, in)
	if err != nil {
		return nil, err
	}
	return Scatter(ts[0], ts[1], op.Axis, op.Count)
}

func stackKernel(op ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	ts, err := tensorArgs(op.Kind, in)
	if err != nil {
		return nil, err
	}
	return Stack(ts)
}

func composeKernel(_ ir.Op, _ []ir.Type, in []ir.Value) (ir.Value, error) {
	return ir.NewComposite(in...), nil
}

func namedTupleGetKernel(op ir.Op, types []ir.Type, in []ir.Value) (ir.Value, error) {
	nt, ok := types[0].(ir.NamedTupleType)
	if !ok {
		return nil, errorf(ir.ErrCodeTypeMismatch, op.Kind, "input must be a named tuple, got %s", types[0])
	}
	i := nt.FieldIndex(op.Name)
	if i < 0 {
		return nil, errorf(ir.ErrCodeUnknownField, op.Kind, "no field %q in %s", op.Name, nt)
	}
	return TupleGet(in[0], int64(i))
}
