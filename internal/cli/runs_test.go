package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/store"
)

func TestRunsListsRecordedRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "simulate", millionairesCUE, "--inputs", bindingsYAML, "--store", db, "--delegated")
	require.NoError(t, err)
	_, err = execute(t, "evaluate", millionairesCUE, "--inputs", bindingsYAML, "--store", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "runs", "--store", db, "--contexts")
	require.NoError(t, err)

	var res RunsResult
	decodeData(t, decode(t, out), &res)
	require.Len(t, res.Runs, 3)
	assert.Equal(t, "plaintext", res.Runs[0].Mode)
	assert.Equal(t, "delegated", res.Runs[1].Mode)
	assert.Equal(t, "plaintext", res.Runs[2].Mode)
	assert.Equal(t, res.Runs[0].ContextHash, res.Runs[2].ContextHash)
	require.Len(t, res.Contexts, 2)
	assert.Equal(t, store.Summary{SchemaVersion: store.SchemaVersion, Contexts: 2, Compiled: 1, Runs: 3}, res.Summary)

	// Filtered to the compiled context.
	out, err = execute(t, "--format", "json", "runs", "--store", db, "--context", res.Runs[1].ContextHash)
	require.NoError(t, err)
	var filtered RunsResult
	decodeData(t, decode(t, out), &filtered)
	require.Len(t, filtered.Runs, 1)
	assert.Equal(t, res.Runs[1].ID, filtered.Runs[0].ID)
	assert.Empty(t, filtered.Contexts)
}

func TestRunsText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "runs", "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = execute(t, "evaluate", millionairesCUE, "--inputs", bindingsYAML, "--store", db)
	require.NoError(t, err)

	out, err = execute(t, "runs", "--store", db, "--contexts")
	require.NoError(t, err)
	assert.Contains(t, out, "millionaires (source")
	assert.Contains(t, out, "plaintext")
	assert.Contains(t, out, " ok")
	assert.Contains(t, out, "1 runs over 1 contexts (0 compiled)")
}

func TestRunsSummarizesFailures(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	missing := writeFile(t, "inputs.yaml", "alice: 17\n")
	_, err := execute(t, "evaluate", millionairesCUE, "--inputs", missing, "--store", db)
	require.Error(t, err)
	_, err = execute(t, "evaluate", millionairesCUE, "--inputs", bindingsYAML, "--store", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "runs", "--store", db)
	require.NoError(t, err)
	var res RunsResult
	decodeData(t, decode(t, out), &res)
	assert.Equal(t, 2, res.Summary.Runs)
	assert.Equal(t, map[string]int{"MISSING_INPUT_BINDING": 1}, res.Summary.Failures)

	out, err = execute(t, "runs", "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "  MISSING_INPUT_BINDING x1\n")
}

func TestRunsStoreFromConfig(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	cfg := writeFile(t, "mpcgraph.yaml", "store: "+db+"\n")

	_, err := execute(t, "--config", cfg, "evaluate", millionairesCUE, "--inputs", bindingsYAML)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "--format", "json", "runs")
	require.NoError(t, err)
	var res RunsResult
	decodeData(t, decode(t, out), &res)
	assert.Len(t, res.Runs, 1)
}

func TestRunsRequiresStore(t *testing.T) {
	out, err := execute(t, "--format", "json", "runs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "INVALID_CONFIGURATION", decode(t, out).Error.Code)
}
