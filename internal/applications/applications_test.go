package applications

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/graph"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/randomness"
)

// run evaluates c in plaintext and, compiled for parties, in simulation,
// and checks that both agree before returning the plaintext outputs.
func run(t *testing.T, c *graph.Context, parties int, inputs ...ir.Value) []ir.Value {
	t.Helper()
	ctx := context.Background()

	plain, err := eval.New().Evaluate(ctx, c, inputs)
	require.NoError(t, err)

	compiled, err := compiler.Compile(ctx, c, compiler.Config{Parties: parties, TripleSource: compiler.TriplesDealer})
	require.NoError(t, err)

	seed := []byte("applications")
	ev := eval.New(
		eval.WithRandomness(randomness.NewSeededSource(seed)),
		eval.WithTriples(randomness.NewDealer(seed)),
	)
	sim, err := ev.Simulate(ctx, compiled, parties, inputs)
	require.NoError(t, err)
	got, err := sim.Reconstruct()
	require.NoError(t, err)

	require.Len(t, got, len(plain.Outputs))
	for i := range got {
		assert.True(t, ir.EqualValues(plain.Outputs[i], got[i]),
			"output %d: plaintext %v, reconstructed %v", i, plain.Outputs[i], got[i])
	}
	return plain.Outputs
}

func ints(t *testing.T, v ir.Value) []int64 {
	t.Helper()
	tv, ok := v.(*ir.Tensor)
	require.True(t, ok, "expected tensor, got %T", v)
	out := make([]int64, len(tv.Data))
	for i := range tv.Data {
		out[i] = tv.Int(i)
	}
	return out
}

func TestMillionaires(t *testing.T) {
	tests := []struct {
		alice, bob int64
		want       int64
	}{
		{alice: 5_000_000, bob: 3_000_000, want: 1},
		{alice: 3_000_000, bob: 5_000_000, want: 0},
		{alice: 7, bob: 7, want: 0},
	}
	for _, tt := range tests {
		c, err := Build("millionaires", Params{})
		require.NoError(t, err)
		out := run(t, c, 2, ir.Scalar(ir.UINT32, uint64(tt.alice)), ir.Scalar(ir.UINT32, uint64(tt.bob)))
		assert.Equal(t, []int64{tt.want}, ints(t, out[0]), "%d vs %d", tt.alice, tt.bob)
	}
}

func TestMillionaires_ThreeParties(t *testing.T) {
	c, err := Build("millionaires", Params{Elem: ir.INT16})
	require.NoError(t, err)
	out := run(t, c, 3, ir.SignedScalar(ir.INT16, -4), ir.SignedScalar(ir.INT16, -9))
	assert.Equal(t, []int64{1}, ints(t, out[0]))
}

func TestMatmul(t *testing.T) {
	c, err := Build("matmul", Params{Elem: ir.INT32, N: 2, M: 3, K: 1})
	require.NoError(t, err)
	out := run(t, c, 2,
		ir.ArrayOf(ir.INT32, []int64{2, 3}, 1, 2, 3, -4, 5, -6),
		ir.ArrayOf(ir.INT32, []int64{3, 1}, 7, 8, 9),
	)
	if diff := cmp.Diff([]int64{50, -42}, ints(t, out[0])); diff != "" {
		t.Errorf("matmul mismatch (-want +got):\n%s", diff)
	}
}

func TestDot(t *testing.T) {
	tests := []struct {
		name    string
		parties int
		x, y    []int64
		want    int64
	}{
		{"two parties", 2, []int64{1, 2, 3, -4}, []int64{5, -6, 7, 8}, -18},
		{"three parties", 3, []int64{7, 0, -1, 2}, []int64{3, 9, 4, -5}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Build("dot", Params{Elem: ir.INT32})
			require.NoError(t, err)
			out := run(t, c, tt.parties,
				ir.ArrayOf(ir.INT32, []int64{4}, tt.x...),
				ir.ArrayOf(ir.INT32, []int64{4}, tt.y...),
			)
			assert.Equal(t, []int64{tt.want}, ints(t, out[0]))
		})
	}
}

func TestGemm(t *testing.T) {
	// A is 2 x 3, B is 3 x 1; A x B + C = [8, 18].
	a := ir.ArrayOf(ir.INT32, []int64{2, 3}, 1, 2, 3, 4, 5, 6)
	aT := ir.ArrayOf(ir.INT32, []int64{3, 2}, 1, 4, 2, 5, 3, 6)
	b := ir.ArrayOf(ir.INT32, []int64{3, 1}, 1, 0, -1)
	bT := ir.ArrayOf(ir.INT32, []int64{1, 3}, 1, 0, -1)
	bias := ir.ArrayOf(ir.INT32, []int64{2, 1}, 10, 20)

	tests := []struct {
		name   string
		transA bool
		transB bool
		a, b   ir.Value
	}{
		{"plain", false, false, a, b},
		{"transposed a", true, false, aT, b},
		{"transposed b", false, true, a, bT},
		{"both transposed", true, true, aT, bT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Build("gemm", Params{Elem: ir.INT32, N: 2, M: 3, K: 1, TransposeA: tt.transA, TransposeB: tt.transB})
			require.NoError(t, err)
			out := run(t, c, 2, tt.a, tt.b, bias)
			if diff := cmp.Diff([]int64{8, 18}, ints(t, out[0])); diff != "" {
				t.Errorf("gemm mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, []int64{2, 1}, out[0].(*ir.Tensor).Shape)
		})
	}
}

func TestDotAndGemm_InvalidSizes(t *testing.T) {
	_, err := Dot(graph.NewContext(), ir.UINT32, 0)
	assert.Error(t, err)
	_, err = Gemm(graph.NewContext(), ir.UINT32, 2, 0, 2, false, false)
	assert.Error(t, err)
}

func TestMinimum(t *testing.T) {
	c, err := Build("minimum", Params{Elem: ir.INT32, N: 1})
	require.NoError(t, err)
	out := run(t, c, 2,
		ir.ArrayOf(ir.INT32, []int64{2}, 4, -1),
		ir.ArrayOf(ir.INT32, []int64{2}, 9, -3),
	)
	assert.Equal(t, []int64{-3}, ints(t, out[0]))
}

func TestMinimum_Plaintext(t *testing.T) {
	c, err := Build("minimum", Params{N: 3})
	require.NoError(t, err)
	res, err := eval.New().Evaluate(context.Background(), c, []ir.Value{
		ir.ArrayOf(ir.UINT32, []int64{8}, 10, 11, 12, 13, 14, 15, 16, 17),
		ir.ArrayOf(ir.UINT32, []int64{8}, 30, 20, 9, 40, 50, 60, 70, 80),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ints(t, res.Outputs[0]))
}

func TestSort(t *testing.T) {
	c, err := Build("sort", Params{Elem: ir.INT8, N: 2})
	require.NoError(t, err)
	out := run(t, c, 2,
		ir.ArrayOf(ir.INT8, []int64{2}, 5, -2),
		ir.ArrayOf(ir.INT8, []int64{2}, 7, 0),
	)
	assert.Equal(t, []int64{-2, 0, 5, 7}, ints(t, out[0]))
}

func TestSort_Plaintext(t *testing.T) {
	c, err := Build("sort", Params{N: 5})
	require.NoError(t, err)
	res, err := eval.New().Evaluate(context.Background(), c, []ir.Value{
		ir.ArrayOf(ir.UINT32, []int64{5}, 9, 1, 8, 2, 7),
		ir.ArrayOf(ir.UINT32, []int64{5}, 3, 6, 4, 5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ints(t, res.Outputs[0]))
}

func TestIntersection(t *testing.T) {
	c, err := Build("intersection", Params{Elem: ir.UINT16, N: 3, M: 2})
	require.NoError(t, err)
	out := run(t, c, 2,
		ir.ArrayOf(ir.UINT16, []int64{3}, 4, 8, 15),
		ir.ArrayOf(ir.UINT16, []int64{2}, 15, 4),
	)
	assert.Equal(t, []int64{1, 0, 1}, ints(t, out[0]))
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build("auction", Params{})
	assert.ErrorContains(t, err, "unknown application")

	_, err = Build("minimum", Params{N: 17})
	assert.Error(t, err)

	_, err = Build("sort", Params{N: -1})
	assert.Error(t, err)

	_, err = Build("matmul", Params{N: -1})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"dot", "gemm", "intersection", "matmul", "millionaires", "minimum", "sort"}, Names())
	for _, name := range Names() {
		assert.NotEmpty(t, Summary(name))
	}
}
