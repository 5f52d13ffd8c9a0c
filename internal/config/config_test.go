package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mpcgraph/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Parties)
	assert.Equal(t, "dealer", cfg.TripleSource)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Seed)
	assert.Empty(t, cfg.Store)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
parties: 3
seed: fixture
parallelism: 4
store: runs.db
log_level: debug
shared_inputs: [alice]
`))
	require.NoError(t, err)

	want := Default()
	want.SharedInputs = []string{"alice"}
	want.Parties = 3
	want.Seed = "fixture"
	want.Parallelism = 4
	want.Store = "runs.db"
	want.LogLevel = "debug"
	assert.Equal(t, want, cfg)
	assert.Equal(t, []string{"alice"}, cfg.Compiler().SharedInputs)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "partys: 3"},
		{"one party", "parties: 1"},
		{"bad triple source", "triple_source: oracle"},
		{"zero parallelism", "parallelism: 0"},
		{"bad log level", "log_level: loud"},
		{"not yaml", "parties: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpcgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("triple_source: none\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.TripleSource)
	assert.Equal(t, 2, cfg.Compiler().Parties)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parties: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ir.ErrCodeInvalidConfiguration, ir.CodeOf(err))
}
