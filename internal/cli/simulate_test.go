package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/compiler"
	"github.com/roach88/mpcgraph/internal/config"
	"github.com/roach88/mpcgraph/internal/eval"
	"github.com/roach88/mpcgraph/internal/ir"
	"github.com/roach88/mpcgraph/internal/store"
)

func TestSimulateText(t *testing.T) {
	out, err := execute(t, "simulate", millionairesCUE, "--inputs", bindingsYAML, "--seed", "cli")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Simulated millionaires with 2 parties (simulate")
	assert.Contains(t, out, "out[0] : bit = 1")
	assert.NotContains(t, out, "plaintext:")
}

func TestSimulateModes(t *testing.T) {
	inputs := writeFile(t, "inputs.yaml", "x: [1, 2, 3]\ny: [4, 5, 6]\n")

	tests := []struct {
		name    string
		args    []string
		mode    string
		parties int
	}{
		{"lockstep", nil, "simulate", 2},
		{"lockstep three parties", []string{"--parties", "3"}, "simulate", 3},
		{"delegated", []string{"--delegated"}, "delegated", 2},
		{"delegated three parties", []string{"--delegated", "--parties", "3"}, "delegated", 3},
		{"parallel", []string{"--parallelism", "4"}, "simulate", 2},
		{"unseeded", []string{"--seed", ""}, "simulate", 2},
		{"x dealt as shares", []string{"--shared", "x"}, "simulate", 2},
		{"both dealt as shares delegated", []string{"--shared", "x,y", "--delegated", "--parties", "3"}, "delegated", 3},
		{"shares unseeded", []string{"--shared", "y", "--seed", ""}, "simulate", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "simulate", dotCUE, "--inputs", inputs, "--seed", "cli"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			var res SimulateResult
			decodeData(t, decode(t, out), &res)
			assert.True(t, res.Match)
			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, tt.parties, res.Parties)
			assert.Greater(t, res.Stats.Triples, 0)
			require.Len(t, res.Outputs, 1)
			assert.InDelta(t, 27, res.Outputs[0].Value, 0)
			assert.Equal(t, res.Plaintext, res.Outputs)
		})
	}
}

func TestSimulateRecordsRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "simulate", millionairesCUE, "--inputs", bindingsYAML, "--store", db, "--parties", "3")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "plaintext", runs[0].Mode)
	assert.Equal(t, "simulate", runs[1].Mode)
	assert.Equal(t, 3, runs[1].Parties)
	assert.NotEqual(t, runs[0].ContextHash, runs[1].ContextHash)

	// Equal outputs hash equally whether computed in plaintext or
	// reconstructed from shares.
	assert.Equal(t, runs[0].OutputHashes, runs[1].OutputHashes)
}

func TestSimulateSharedInputsSkipInputSharing(t *testing.T) {
	inputs := writeFile(t, "inputs.yaml", "x: [1, 2, 3]\ny: [4, 5, 6]\n")

	sends := func(extra ...string) int {
		args := append([]string{"--format", "json", "simulate", dotCUE, "--inputs", inputs, "--seed", "cli"}, extra...)
		out, err := execute(t, args...)
		require.NoError(t, err)
		var res SimulateResult
		decodeData(t, decode(t, out), &res)
		require.True(t, res.Match)
		return res.Stats.Sends
	}

	owned := sends()
	one := sends("--shared", "x")
	both := sends("--shared", "x,y")
	assert.Less(t, one, owned)
	assert.Less(t, both, one)
}

func TestSimulateErrors(t *testing.T) {
	inputs := writeFile(t, "inputs.yaml", "x: [1, 2, 3]\ny: [4, 5, 6]\n")

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"no triples", []string{dotCUE, "--inputs", inputs, "--triples", "none"}, "MISSING_AUXILIARY_RANDOMNESS"},
		{"missing inputs", []string{dotCUE}, "MISSING_INPUT_BINDING"},
		{"bad triple source", []string{dotCUE, "--inputs", inputs, "--triples", "ot"}, "INVALID_CONFIGURATION"},
		{"unknown shared input", []string{dotCUE, "--inputs", inputs, "--shared", "z"}, "INVALID_CONFIGURATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json", "simulate"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, tt.wantCode, decode(t, out).Error.Code)
		})
	}
}

func TestReportMismatch(t *testing.T) {
	buf := &bytes.Buffer{}
	e := &env{
		cfg: config.Default(),
		out: &OutputFormatter{Format: "json", Writer: buf},
	}
	types := []ir.Type{ir.UINT32}
	sim := &eval.SimulationResult{RunID: "sim", Types: types}
	plain := &eval.Result{RunID: "plain", Types: types, Outputs: []ir.Value{ir.Scalar(ir.UINT32, 7)}}

	err := e.report("prog", modeSimulate, "hash", compiler.Stats{}, sim, []ir.Value{ir.Scalar(ir.UINT32, 8)}, plain)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeMismatch)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	var res SimulateResult
	decodeData(t, resp, &res)
	assert.False(t, res.Match)
	assert.InDelta(t, 8, res.Outputs[0].Value, 0)
	assert.InDelta(t, 7, res.Plaintext[0].Value, 0)
}
