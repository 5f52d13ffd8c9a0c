package compiler

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
)

var dealer = Config{Parties: 2, TripleSource: TriplesDealer}

// binary builds main(a: party 0, b: party 1) = kind(a, b).
func binary(t *testing.T, elem ir.ScalarType, kind ir.OpKind) *graph.Context {
	t.Helper()
	c := graph.NewContext()
	g := c.NewGraph()
	a, err := g.Input(elem, 0, "a")
	require.NoError(t, err)
	b, err := g.Input(elem, 1, "b")
	require.NoError(t, err)
	out, err := g.Apply(ir.Op{Kind: kind}, a, b)
	require.NoError(t, err)
	require.NoError(t, g.FinalizeNodes(out))
	require.NoError(t, c.SetMain(g))
	return c
}

func compile(t *testing.T, src *graph.Context, cfg Config) (*graph.Context, Stats) {
	t.Helper()
	out, stats, err := CompileWithStats(context.Background(), src, cfg)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out, stats
}

func countOps(c *graph.Context, kind ir.OpKind) int {
	n := 0
	for _, g := range c.Graphs() {
		for _, node := range g.Nodes() {
			if node.Op.Kind == kind {
				n++
			}
		}
	}
	return n
}

func TestCompile_PrivateAddListing(t *testing.T) {
	out, stats := compile(t, binary(t, ir.UINT32, ir.OpAdd), Config{Parties: 2})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "private_add", []byte(out.Listing()))

	assert.Equal(t, 2, stats.Sends)
	assert.Equal(t, 0, stats.Triples)
	assert.Equal(t, 1, stats.Rounds)
	assert.Equal(t, 3, stats.NodesIn)
	assert.Equal(t, 17, stats.NodesOut)
}

func TestCompile_Deterministic(t *testing.T) {
	src := binary(t, ir.INT32, ir.OpLessThan)
	a, _ := compile(t, src, dealer)
	b, _ := compile(t, src, dealer)

	ab, err := a.Serialize()
	require.NoError(t, err)
	bb, err := b.Serialize()
	require.NoError(t, err)
	assert.Equal(t, ab, bb)
}

func TestCompile_LeavesSourceUntouched(t *testing.T) {
	src := binary(t, ir.UINT32, ir.OpMultiply)
	before, err := src.Hash()
	require.NoError(t, err)

	compile(t, src, dealer)

	after, err := src.Hash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompile_Multiply(t *testing.T) {
	out, stats := compile(t, binary(t, ir.UINT32, ir.OpMultiply), dealer)

	assert.Equal(t, 1, stats.Triples)
	// Two input masks plus two openings of one value per direction.
	assert.Equal(t, 6, stats.Sends)
	assert.Equal(t, 2, stats.Rounds)
	assert.Equal(t, 1, countOps(out, ir.OpTriple))
	assert.Equal(t, 3, countOps(out, ir.OpMultiply), "d*b, a*e and d*e")
}

func TestCompile_PublicWorkIsCopied(t *testing.T) {
	c := graph.NewContext()
	g := c.NewGraph()
	x, err := g.Input(ir.UINT8, 0, "x")
	require.NoError(t, err)
	k1, err := g.Constant(ir.UINT8, ir.Scalar(ir.UINT8, 3))
	require.NoError(t, err)
	k2, err := g.Constant(ir.UINT8, ir.Scalar(ir.UINT8, 4))
	require.NoError(t, err)
	k, err := g.Multiply(k1, k2)
	require.NoError(t, err)
	y, err := g.Multiply(x, k)
	require.NoError(t, err)
	require.NoError(t, g.FinalizeNodes(y))
	require.NoError(t, c.SetMain(g))

	out, stats := compile(t, c, Config{Parties: 3})
	assert.Equal(t, 0, stats.Triples, "public operand multiplies locally")
	assert.Equal(t, 2, stats.Sends)
	assert.Equal(t, 2, countOps(out, ir.OpMultiply))
}

func TestCompile_Comparisons(t *testing.T) {
	for _, kind := range []ir.OpKind{
		ir.OpLessThan, ir.OpLessThanEqual, ir.OpGreaterThan,
		ir.OpGreaterThanEqual, ir.OpEqual, ir.OpNotEqual,
	} {
		t.Run(string(kind), func(t *testing.T) {
			out, stats := compile(t, binary(t, ir.INT16, kind), dealer)
			main, err := out.Main()
			require.NoError(t, err)
			sig, err := main.Signature()
			require.NoError(t, err)
			assert.Equal(t, ir.BIT, sig.Output)
			assert.Positive(t, stats.Triples)
			assert.Zero(t, countOps(out, kind), "comparison must be lowered")
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("too few parties", func(t *testing.T) {
		_, err := Compile(ctx, binary(t, ir.UINT32, ir.OpAdd), Config{Parties: 1})
		require.Error(t, err)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})

	t.Run("unknown triple source", func(t *testing.T) {
		_, err := Compile(ctx, binary(t, ir.UINT32, ir.OpAdd), Config{Parties: 2, TripleSource: "oracle"})
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
	})

	t.Run("input owner out of range", func(t *testing.T) {
		c := graph.NewContext()
		g := c.NewGraph()
		x, err := g.Input(ir.UINT32, 3, "x")
		require.NoError(t, err)
		require.NoError(t, g.FinalizeNodes(x))
		require.NoError(t, c.SetMain(g))

		_, err = Compile(ctx, c, Config{Parties: 2})
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ir.ErrCodeInvalidConfiguration, ce.Code)
		assert.Equal(t, 0, ce.Node)
	})

	t.Run("multiply without triples", func(t *testing.T) {
		_, err := Compile(ctx, binary(t, ir.UINT32, ir.OpMultiply), Config{Parties: 2})
		require.Error(t, err)
		assert.True(t, IsMissingRandomness(err))
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 2, ce.Node)
		assert.Equal(t, ir.OpMultiply, ce.Op)
	})

	t.Run("truncate", func(t *testing.T) {
		c := graph.NewContext()
		g := c.NewGraph()
		x, err := g.Input(ir.UINT32, 0, "x")
		require.NoError(t, err)
		y, err := g.Truncate(x, 4)
		require.NoError(t, err)
		require.NoError(t, g.FinalizeNodes(y))
		require.NoError(t, c.SetMain(g))

		_, err = Compile(ctx, c, dealer)
		assert.True(t, IsUnsupported(err))
	})

	t.Run("private index", func(t *testing.T) {
		c := graph.NewContext()
		g := c.NewGraph()
		v, err := g.Input(ir.Vector(3, ir.UINT32), 0, "v")
		require.NoError(t, err)
		i, err := g.Input(ir.UINT64, 1, "i")
		require.NoError(t, err)
		e, err := g.VectorGet(v, i)
		require.NoError(t, err)
		require.NoError(t, g.FinalizeNodes(e))
		require.NoError(t, c.SetMain(g))

		_, err = Compile(ctx, c, dealer)
		assert.True(t, IsUnsupported(err))
	})

	t.Run("protocol op in source", func(t *testing.T) {
		c := graph.NewContext()
		g := c.NewGraph()
		x, err := g.Input(ir.UINT32, 0, "x")
		require.NoError(t, err)
		s, err := g.Apply(ir.Op{Kind: ir.OpSend, From: 0, To: 1}, x)
		require.NoError(t, err)
		require.NoError(t, g.FinalizeNodes(s))
		require.NoError(t, c.SetMain(g))

		_, err = Compile(ctx, c, dealer)
		assert.True(t, IsUnsupported(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Compile(cctx, binary(t, ir.UINT32, ir.OpAdd), dealer)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCompile_SharedInputs(t *testing.T) {
	tests := []struct {
		name    string
		shared  []string
		keys    int
		sends   int
		wantErr bool
	}{
		{name: "none shared", keys: 2, sends: 2},
		{name: "a shared", shared: []string{"a"}, keys: 1, sends: 1},
		{name: "both shared", shared: []string{"a", "b"}, keys: 0, sends: 0},
		{name: "unknown input", shared: []string{"c"}, wantErr: true},
		{name: "empty name", shared: []string{""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Parties: 2, SharedInputs: tt.shared}
			if tt.wantErr {
				_, err := Compile(context.Background(), binary(t, ir.UINT32, ir.OpAdd), cfg)
				require.Error(t, err)
				assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
				return
			}
			out, stats := compile(t, binary(t, ir.UINT32, ir.OpAdd), cfg)
			assert.Equal(t, tt.keys, countOps(out, ir.OpPRFKey))
			assert.Equal(t, tt.sends, stats.Sends)
			main, err := out.Main()
			require.NoError(t, err)
			assert.Len(t, main.Inputs(), 2)
		})
	}
}

func TestCompile_CalleeCompiledOnce(t *testing.T) {
	c := graph.NewContext()
	sq := c.NewGraph()
	x, err := sq.Input(ir.UINT32, 0, "x")
	require.NoError(t, err)
	xx, err := sq.Multiply(x, x)
	require.NoError(t, err)
	require.NoError(t, sq.FinalizeNodes(xx))

	main := c.NewGraph()
	a, err := main.Input(ir.UINT32, 0, "a")
	require.NoError(t, err)
	b, err := main.Input(ir.UINT32, 1, "b")
	require.NoError(t, err)
	sa, err := main.Call(sq, a)
	require.NoError(t, err)
	sb, err := main.Call(sq, b)
	require.NoError(t, err)
	sum, err := main.Add(sa, sb)
	require.NoError(t, err)
	require.NoError(t, main.FinalizeNodes(sum))
	require.NoError(t, c.SetMain(main))

	out, stats := compile(t, c, dealer)
	assert.Len(t, out.Graphs(), 2)
	assert.Equal(t, 2, stats.Graphs)
	assert.Equal(t, 2, stats.Triples, "one triple per call")
	assert.Equal(t, 2, countOps(out, ir.OpCall))
	assert.Equal(t, 1, countOps(out, ir.OpTriple))

	m, err := out.Main()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.Callees())
}

func TestCompile_CompositeInput(t *testing.T) {
	c := graph.NewContext()
	g := c.NewGraph()
	pt := ir.NamedTuple(ir.Field{Name: "x", Type: ir.UINT16}, ir.Field{Name: "ys", Type: ir.Vector(2, ir.Array(ir.UINT16, 3))})
	p, err := g.Input(pt, 0, "p")
	require.NoError(t, err)
	require.NoError(t, g.FinalizeNodes(p))
	require.NoError(t, c.SetMain(g))

	out, stats := compile(t, c, Config{Parties: 3})
	m, err := out.Main()
	require.NoError(t, err)
	sig, err := m.Signature()
	require.NoError(t, err)
	assert.True(t, pt.Equal(sig.Output))
	assert.Equal(t, 2, stats.Sends, "one composite mask per other party")
	assert.Equal(t, 2, countOps(out, ir.OpCreateNamedTuple), "masked value and share")
}
