package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sortScenario = `name: sort_small
description: sorting network over two parties
program:
  application: sort
  type: u8
  n: 2
seed: cli
parties: 2
inputs:
  alice: [5, 1]
  bob: [3, 2]
assertions:
  - type: equivalent
  - type: output
    value: [1, 2, 3, 5]
`

// scenarioDir lays out <root>/scenarios/<name>.yaml and returns root.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return root
}

func TestTestHarnessScenarios(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenariosDir)
	require.NoError(t, err)

	var res TestResult
	decodeData(t, decode(t, out), &res)
	assert.Equal(t, 13, res.Total)
	assert.Equal(t, res.Total, res.Passed)
	assert.Zero(t, res.Failed)

	golden := map[string]string{}
	for _, s := range res.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
		golden[s.Name] = s.Golden
	}
	assert.Equal(t, "match", golden["comparison"])
	assert.Equal(t, "match", golden["missing_input"])
	assert.Empty(t, golden["sort"])
}

func TestTestFilter(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--filter", "comparison*")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ comparison\n")
	assert.Contains(t, out, "✓ comparison_delegated\n")
	assert.NotContains(t, out, "matmul")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestSingleFile(t *testing.T) {
	out, err := execute(t, "test", filepath.Join(scenariosDir, "matmul.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestUpdateGolden(t *testing.T) {
	root := scenarioDir(t, map[string]string{"sort_small.yaml": sortScenario})

	out, err := execute(t, "test", filepath.Join(root, "scenarios"), "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sort_small (golden updated)")

	golden := filepath.Join(root, "golden", "sort_small.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outputs":[[1,2,3,5]]`)

	// A second run compares against the file just written.
	out, err = execute(t, "--format", "json", "test", filepath.Join(root, "scenarios"))
	require.NoError(t, err)
	var res TestResult
	decodeData(t, decode(t, out), &res)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "match", res.Scenarios[0].Golden)

	// A stale golden file fails the scenario.
	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario":"sort_small","trace":[]}`), 0o644))
	out, err = execute(t, "test", filepath.Join(root, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestFailingScenario(t *testing.T) {
	wrong := sortScenario
	wrong = wrong[:len(wrong)-len("    value: [1, 2, 3, 5]\n")] + "    value: [5, 3, 2, 1]\n"
	root := scenarioDir(t, map[string]string{
		"sort_small.yaml": wrong,
		"broken.yaml":     "name: broken\n",
	})

	out, err := execute(t, "--format", "json", "test", filepath.Join(root, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res TestResult
	decodeData(t, decode(t, out), &res)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Failed)
	for _, s := range res.Scenarios {
		assert.False(t, s.Pass)
		assert.NotEmpty(t, s.Errors)
	}
}

func TestTestErrors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("bad filter", func(t *testing.T) {
		_, err := execute(t, "test", scenariosDir, "--filter", "[")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("empty directory", func(t *testing.T) {
		root := scenarioDir(t, nil)
		out, err := execute(t, "test", filepath.Join(root, "scenarios"))
		require.NoError(t, err)
		assert.Contains(t, out, "No scenarios found.")
	})
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("testdata", "scenarios", "matmul.yaml"), "matmul")
	assert.Equal(t, filepath.Join("testdata", "golden", "matmul.golden"), got)
}
