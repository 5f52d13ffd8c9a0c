package eval

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/logging"
	"github.com/roach88/mpcgraph/internal/randomness"
	"github.com/roach88/mpcgraph/internal/transport"
)

// program builds a single-graph context from build, which returns the
// graph's outputs.
func program(t *testing.T, build func(g *graph.Graph) []*graph.Node) *graph.Context {
	t.Helper()
	c := graph.NewContext()
	g := c.NewGraph()
	outs := build(g)
	require.NoError(t, g.FinalizeNodes(outs...))
	require.NoError(t, c.SetMain(g))
	return c
}

func must(t *testing.T) func(*graph.Node, error) *graph.Node {
	return func(n *graph.Node, err error) *graph.Node {
		t.Helper()
		require.NoError(t, err)
		return n
	}
}

// binary builds main(a: party 0, b: party 1) = kind(a, b).
func binary(t *testing.T, elem ir.ScalarType, kind ir.OpKind) *graph.Context {
	m := must(t)
	return program(t, func(g *graph.Graph) []*graph.Node {
		a := m(g.Input(elem, 0, "a"))
		b := m(g.Input(elem, 1, "b"))
		return []*graph.Node{m(g.Apply(ir.Op{Kind: kind}, a, b))}
	})
}

func seeded(opts ...Option) *Evaluator {
	base := []Option{
		WithRandomness(randomness.NewSeededSource([]byte("keys"))),
		WithTriples(randomness.NewDealer([]byte("dealer"))),
	}
	return New(append(base, opts...)...)
}

func compile(t *testing.T, src *graph.Context, parties int) *graph.Context {
	t.Helper()
	out, err := compiler.Compile(context.Background(), src, compiler.Config{Parties: parties, TripleSource: compiler.TriplesDealer})
	require.NoError(t, err)
	return out
}

// checkEquivalent evaluates src in plaintext, then compiles and simulates
// it, and requires the reconstructed outputs to match bit for bit.
func checkEquivalent(t *testing.T, ev *Evaluator, src *graph.Context, parties int, inputs []ir.Value) []ir.Value {
	t.Helper()
	ctx := context.Background()

	plain, err := ev.Evaluate(ctx, src, inputs)
	require.NoError(t, err)

	sim, err := ev.Simulate(ctx, compile(t, src, parties), parties, inputs)
	require.NoError(t, err)
	got, err := sim.Reconstruct()
	require.NoError(t, err)

	require.Len(t, got, len(plain.Outputs))
	for i := range got {
		assert.True(t, ir.EqualValues(plain.Outputs[i], got[i]),
			"output %d: plaintext %s, reconstructed %s", i, ir.FormatValue(plain.Outputs[i]), ir.FormatValue(got[i]))
	}
	return got
}

func assertValue(t *testing.T, want, got ir.Value) {
	t.Helper()
	assert.True(t, ir.EqualValues(want, got), "want %s, got %s", ir.FormatValue(want), ir.FormatValue(got))
}

func TestEvaluate_Plaintext(t *testing.T) {
	res, err := New().Evaluate(context.Background(), binary(t, ir.UINT32, ir.OpLessThan),
		[]ir.Value{ir.Scalar(ir.UINT32, 17), ir.Scalar(ir.UINT32, 42)})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assertValue(t, ir.Scalar(ir.BIT, 1), res.Outputs[0])
	assert.Equal(t, []ir.Type{ir.BIT}, res.Types)
	assert.Equal(t, int64(3), res.Nodes)
	assert.NotEmpty(t, res.RunID)
}

func TestEvaluate_LogsRedactOutputs(t *testing.T) {
	tests := []struct {
		name string
		run  func(ev *Evaluator) error
	}{
		{"plaintext", func(ev *Evaluator) error {
			_, err := ev.Evaluate(context.Background(), binary(t, ir.UINT32, ir.OpAdd),
				[]ir.Value{ir.Scalar(ir.UINT32, 12345), ir.Scalar(ir.UINT32, 67890)})
			return err
		}},
		{"simulated", func(ev *Evaluator) error {
			_, err := ev.Simulate(context.Background(), compile(t, binary(t, ir.UINT32, ir.OpAdd), 2), 2,
				[]ir.Value{ir.Scalar(ir.UINT32, 12345), ir.Scalar(ir.UINT32, 67890)})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.run(seeded(WithLogger(logging.New(&buf, slog.LevelDebug)), WithRunIDs(NewFixedGenerator("run-1")))))

			out := buf.String()
			assert.Contains(t, out, "output ready")
			assert.Contains(t, out, "type=u32")
			assert.Contains(t, out, "value="+logging.RedactedValue)
			assert.NotContains(t, out, "=80235")
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	ctx := context.Background()
	src := binary(t, ir.UINT32, ir.OpAdd)
	ev := New()

	t.Run("missing binding", func(t *testing.T) {
		_, err := ev.Evaluate(ctx, src, []ir.Value{ir.Scalar(ir.UINT32, 1)})
		require.Error(t, err)
		assert.True(t, IsMissingInput(err))
		var re *RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 1, re.Node)
	})

	t.Run("mistyped binding", func(t *testing.T) {
		_, err := ev.Evaluate(ctx, src, []ir.Value{ir.Scalar(ir.UINT32, 1), ir.Scalar(ir.UINT8, 2)})
		assert.Equal(t, ir.ErrCodeTypeMismatch, ir.CodeOf(err))
	})

	t.Run("too many bindings", func(t *testing.T) {
		one := ir.Scalar(ir.UINT32, 1)
		_, err := ev.Evaluate(ctx, src, []ir.Value{one, one, one})
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})

	t.Run("protocol op", func(t *testing.T) {
		compiled := compile(t, src, 2)
		_, err := ev.Evaluate(ctx, compiled, []ir.Value{ir.Scalar(ir.UINT32, 1), ir.Scalar(ir.UINT32, 2)})
		require.Error(t, err)
		var re *RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, re.Code)
		assert.Equal(t, ir.OpPRFKey, re.Op)
	})

	t.Run("kernel failure", func(t *testing.T) {
		m := must(t)
		c := program(t, func(g *graph.Graph) []*graph.Node {
			v := m(g.Input(ir.Vector(2, ir.UINT8), 0, "v"))
			i := m(g.Input(ir.UINT8, 0, "i"))
			return []*graph.Node{m(g.VectorGet(v, i))}
		})
		vec := ir.NewComposite(ir.Scalar(ir.UINT8, 1), ir.Scalar(ir.UINT8, 2))
		_, err := ev.Evaluate(ctx, c, []ir.Value{vec, ir.Scalar(ir.UINT8, 5)})
		var re *RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Node)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ev.Evaluate(cctx, src, []ir.Value{ir.Scalar(ir.UINT32, 1), ir.Scalar(ir.UINT32, 2)})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSimulate_ComparisonScenario(t *testing.T) {
	got := checkEquivalent(t, seeded(), binary(t, ir.UINT32, ir.OpLessThan), 2,
		[]ir.Value{ir.Scalar(ir.UINT32, 17), ir.Scalar(ir.UINT32, 42)})
	assertValue(t, ir.Scalar(ir.BIT, 1), got[0])
}

func TestSimulate_MatmulScenario(t *testing.T) {
	m := must(t)
	src := program(t, func(g *graph.Graph) []*graph.Node {
		a := m(g.Input(ir.Array(ir.INT32, 2, 2), 0, "a"))
		b := m(g.Input(ir.Array(ir.INT32, 2, 2), 1, "b"))
		return []*graph.Node{m(g.Matmul(a, b))}
	})
	a := ir.ArrayOf(ir.INT32, []int64{2, 2}, 1, 2, 3, 4)
	b := ir.ArrayOf(ir.INT32, []int64{2, 2}, 5, -6, 7, 8)
	got := checkEquivalent(t, seeded(), src, 2, []ir.Value{a, b})

	want := ir.ArrayOf(ir.INT32, []int64{2, 2}, 19, 10, 43, 14)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("matmul mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulate_BinaryOps(t *testing.T) {
	kinds := []ir.OpKind{
		ir.OpAdd, ir.OpSubtract, ir.OpMultiply,
		ir.OpLessThan, ir.OpLessThanEqual, ir.OpGreaterThan, ir.OpGreaterThanEqual,
		ir.OpEqual, ir.OpNotEqual,
	}
	pairs := [][2]int64{{-5, 3}, {7, 7}, {100, -100}, {-128, 127}, {0, -1}}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			for _, elem := range []ir.ScalarType{ir.INT8, ir.UINT16} {
				src := binary(t, elem, kind)
				for _, p := range pairs {
					inputs := []ir.Value{ir.SignedScalar(elem, p[0]), ir.SignedScalar(elem, p[1])}
					checkEquivalent(t, seeded(), src, 2, inputs)
					checkEquivalent(t, seeded(), src, 3, inputs)
				}
			}
		})
	}
}

func TestSimulate_BitOps(t *testing.T) {
	for _, kind := range []ir.OpKind{ir.OpAnd, ir.OpOr, ir.OpXor} {
		t.Run(string(kind), func(t *testing.T) {
			src := binary(t, ir.BIT, kind)
			for a := uint64(0); a < 2; a++ {
				for b := uint64(0); b < 2; b++ {
					checkEquivalent(t, seeded(), src, 3, []ir.Value{ir.Scalar(ir.BIT, a), ir.Scalar(ir.BIT, b)})
				}
			}
		})
	}
}

func TestSimulate_Conversions(t *testing.T) {
	m := must(t)
	src := program(t, func(g *graph.Graph) []*graph.Node {
		x := m(g.Input(ir.Array(ir.INT8, 3), 0, "x"))
		c := m(g.Input(ir.Array(ir.BIT, 3), 1, "c"))
		y := m(g.Input(ir.Array(ir.INT8, 3), 1, "y"))

		wide := m(g.Cast(x, ir.INT32))
		narrow := m(g.Cast(wide, ir.UINT8))
		bits := m(g.ToBits(x))
		back := m(g.FromBits(bits, ir.INT8))
		fromBit := m(g.Cast(c, ir.UINT16))
		mixed := m(g.MixedMultiply(y, c))
		sel := m(g.Select(c, x, y))
		notC := m(g.Not(c))
		return []*graph.Node{wide, narrow, back, fromBit, mixed, sel, notC}
	})
	inputs := []ir.Value{
		ir.ArrayOf(ir.INT8, []int64{3}, -7, 0, 120),
		ir.ArrayOf(ir.BIT, []int64{3}, 1, 0, 1),
		ir.ArrayOf(ir.INT8, []int64{3}, 9, -9, -128),
	}
	got := checkEquivalent(t, seeded(), src, 2, inputs)
	assertValue(t, ir.ArrayOf(ir.INT32, []int64{3}, -7, 0, 120), got[0])
}

func TestSimulate_PublicOperands(t *testing.T) {
	m := must(t)
	src := program(t, func(g *graph.Graph) []*graph.Node {
		x := m(g.Input(ir.UINT32, 0, "x"))
		k := m(g.Constant(ir.UINT32, ir.Scalar(ir.UINT32, 40)))
		lt := m(g.LessThan(x, k))
		eq := m(g.Equal(k, x))
		sum := m(g.Add(x, k))
		prod := m(g.Multiply(k, x))
		return []*graph.Node{lt, eq, sum, prod}
	})
	for _, x := range []uint64{39, 40, 41} {
		checkEquivalent(t, seeded(), src, 2, []ir.Value{ir.Scalar(ir.UINT32, x)})
	}
}

func TestSimulate_CallsAndComposites(t *testing.T) {
	c := graph.NewContext()
	m := must(t)

	sq := c.NewGraph()
	x := m(sq.Input(ir.UINT16, 0, "x"))
	xx := m(sq.Multiply(x, x))
	require.NoError(t, sq.FinalizeNodes(xx, x))

	pt := ir.NamedTuple(ir.Field{Name: "a", Type: ir.UINT16}, ir.Field{Name: "b", Type: ir.UINT16})
	main := c.NewGraph()
	p := m(main.Input(pt, 0, "p"))
	q := m(main.Input(ir.UINT16, 1, "q"))
	a := m(main.NamedTupleGet(p, "a"))
	b := m(main.NamedTupleGet(p, "b"))
	r1 := m(main.Call(sq, a))
	r2 := m(main.Call(sq, q))
	s1 := m(main.TupleGet(r1, 0))
	s2 := m(main.TupleGet(r2, 0))
	sum := m(main.Add(s1, s2))
	pair := m(main.CreateTuple(sum, b))
	require.NoError(t, main.FinalizeNodes(pair))
	require.NoError(t, c.SetMain(main))

	in := ir.NewComposite(ir.Scalar(ir.UINT16, 300), ir.Scalar(ir.UINT16, 7))
	got := checkEquivalent(t, seeded(), c, 2, []ir.Value{in, ir.Scalar(ir.UINT16, 5)})
	want := ir.NewComposite(ir.Scalar(ir.UINT16, (300*300+25)&0xffff), ir.Scalar(ir.UINT16, 7))
	assert.True(t, ir.EqualValues(want, got[0]))
}

func TestSimulate_Deterministic(t *testing.T) {
	compiled := compile(t, binary(t, ir.UINT32, ir.OpMultiply), 3)
	inputs := []ir.Value{ir.Scalar(ir.UINT32, 6), ir.Scalar(ir.UINT32, 7)}

	a, err := seeded().Simulate(context.Background(), compiled, 3, inputs)
	require.NoError(t, err)
	b, err := seeded().Simulate(context.Background(), compiled, 3, inputs)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Shares, b.Shares); diff != "" {
		t.Errorf("seeded simulations differ (-first +second):\n%s", diff)
	}
}

func TestSimulate_Errors(t *testing.T) {
	ctx := context.Background()
	compiled := compile(t, binary(t, ir.UINT32, ir.OpMultiply), 2)
	inputs := []ir.Value{ir.Scalar(ir.UINT32, 6), ir.Scalar(ir.UINT32, 7)}

	t.Run("no triples", func(t *testing.T) {
		ev := New(WithRandomness(randomness.NewSeededSource(nil)))
		_, err := ev.Simulate(ctx, compiled, 2, inputs)
		var re *RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ir.ErrCodeMissingAuxiliaryRandomness, re.Code)
		assert.Equal(t, ir.OpTriple, re.Op)
		assert.Equal(t, 0, re.Party)
	})

	t.Run("triple budget", func(t *testing.T) {
		ev := New(WithTriples(randomness.Budget(randomness.NewDealer(nil), 0)))
		_, err := ev.Simulate(ctx, compiled, 2, inputs)
		assert.Equal(t, ir.ErrCodeMissingAuxiliaryRandomness, ir.CodeOf(err))
	})

	t.Run("party count", func(t *testing.T) {
		_, err := seeded().Simulate(ctx, compile(t, binary(t, ir.UINT32, ir.OpAdd), 3), 2, inputs)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
		_, err = seeded().Simulate(ctx, compiled, 1, inputs)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})
}

func TestRunParties_MatchesSimulation(t *testing.T) {
	ctx := context.Background()
	src := binary(t, ir.INT16, ir.OpGreaterThanEqual)
	compiled := compile(t, src, 3)
	inputs := []ir.Value{ir.SignedScalar(ir.INT16, -300), ir.SignedScalar(ir.INT16, -299)}

	sim, err := seeded().Simulate(ctx, compiled, 3, inputs)
	require.NoError(t, err)
	want, err := sim.Reconstruct()
	require.NoError(t, err)

	for _, workers := range []int{1, 4} {
		net := transport.NewMockNetwork(3)
		res, err := seeded(WithParallelism(workers)).RunParties(ctx, compiled, 3, inputs, net)
		require.NoError(t, err, "parallelism %d", workers)
		got, err := res.Reconstruct()
		require.NoError(t, err)
		assert.True(t, ir.EqualValues(want[0], got[0]), "parallelism %d", workers)
		assertValue(t, ir.Scalar(ir.BIT, 0), got[0])
		assert.Zero(t, net.Pending(), "every message consumed")
	}
}

func TestEvaluateParty_OwnInputsOnly(t *testing.T) {
	compiled := compile(t, binary(t, ir.UINT32, ir.OpAdd), 2)
	net := transport.NewMockNetwork(2)
	ctx := context.Background()

	results := make([]*Result, 2)
	errs := make(chan error, 2)
	for p := 0; p < 2; p++ {
		go func() {
			// Each party binds only its own input.
			inputs := make([]ir.Value, 2)
			inputs[p] = ir.Scalar(ir.UINT32, uint64(10*(p+1)))
			res, err := seeded().EvaluateParty(ctx, compiled, p, 2, inputs, net)
			results[p] = res
			errs <- err
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	sim := &SimulationResult{Types: results[0].Types, Shares: [][]ir.Value{results[0].Outputs, results[1].Outputs}}
	got, err := sim.Reconstruct()
	require.NoError(t, err)
	assertValue(t, ir.Scalar(ir.UINT32, 30), got[0])
}

func TestEvaluateParty_Errors(t *testing.T) {
	ctx := context.Background()
	compiled := compile(t, binary(t, ir.UINT32, ir.OpMultiply), 2)
	inputs := []ir.Value{ir.Scalar(ir.UINT32, 6), ir.Scalar(ir.UINT32, 7)}

	t.Run("transport failure", func(t *testing.T) {
		net := transport.NewFaulty(transport.NewMockNetwork(2), 1)
		_, err := seeded().RunParties(ctx, compiled, 2, inputs, net)
		require.Error(t, err)
		assert.True(t, IsCommunicationFailure(err))
		var re *RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ir.OpSend, re.Op)
		assert.NotEqual(t, NoParty, re.Party)
		assert.Equal(t, 1, strings.Count(err.Error(), string(ir.ErrCodeCommunicationFailure)), err.Error())
		assert.True(t, strings.HasPrefix(re.Message, "injected failure"), re.Message)
		assert.Contains(t, re.Message, "(from=")
	})

	t.Run("missing own input", func(t *testing.T) {
		_, err := seeded().EvaluateParty(ctx, compiled, 1, 2, []ir.Value{inputs[0]}, transport.NewMockNetwork(2))
		assert.True(t, IsMissingInput(err))
	})

	t.Run("bad party", func(t *testing.T) {
		_, err := seeded().EvaluateParty(ctx, compiled, 2, 2, inputs, transport.NewMockNetwork(2))
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})

	t.Run("no transport", func(t *testing.T) {
		_, err := seeded().EvaluateParty(ctx, compiled, 0, 2, inputs, nil)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	m := must(t)
	src := program(t, func(g *graph.Graph) []*graph.Node {
		x := m(g.Input(ir.Array(ir.UINT32, 4), 0, "x"))
		outs := []*graph.Node{x}
		for i := 0; i < 8; i++ {
			k := m(g.Constant(ir.UINT32, ir.Scalar(ir.UINT32, uint64(i+1))))
			outs = append(outs, m(g.Multiply(outs[len(outs)-1], k)))
		}
		return []*graph.Node{m(g.Sum(outs[len(outs)-1]))}
	})
	inputs := []ir.Value{ir.ArrayOf(ir.UINT32, []int64{4}, 1, 2, 3, 4)}

	seq, err := New().Evaluate(context.Background(), src, inputs)
	require.NoError(t, err)
	par, err := New(WithParallelism(8)).Evaluate(context.Background(), src, inputs)
	require.NoError(t, err)
	assert.True(t, ir.EqualValues(seq.Outputs[0], par.Outputs[0]))
	assertValue(t, ir.Scalar(ir.UINT32, 40320*10), seq.Outputs[0])
	assert.Equal(t, seq.Nodes, par.Nodes)
}

func TestZeroInput(t *testing.T) {
	z := ir.Zero(ir.Array(ir.UINT32, 3, 4))
	want := ir.MustTensor([]int64{3, 4}, ir.UINT32, make([]uint64, 12))
	if diff := cmp.Diff(ir.Value(want), z); diff != "" {
		t.Errorf("zero input mismatch (-want +got):\n%s", diff)
	}
}

func TestRunIDs(t *testing.T) {
	ev := New(WithRunIDs(NewFixedGenerator("run-1", "run-2")))
	src := binary(t, ir.UINT8, ir.OpAdd)
	inputs := []ir.Value{ir.Scalar(ir.UINT8, 1), ir.Scalar(ir.UINT8, 2)}

	a, err := ev.Evaluate(context.Background(), src, inputs)
	require.NoError(t, err)
	b, err := ev.Evaluate(context.Background(), src, inputs)
	require.NoError(t, err)
	assert.Equal(t, "run-1", a.RunID)
	assert.Equal(t, "run-2", b.RunID)

	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
}
