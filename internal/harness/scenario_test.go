package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: inline
description: "inline scenario"
program:
  application: millionaires
parties: 2
seed: inline
inputs:
  alice: 3
  bob: 2
assertions:
  - type: equivalent
`

func TestLoadScenario_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSuffix(filepath.Base(path), ".yaml"), s.Name)
			if s.Program.File != "" {
				assert.FileExists(t, s.ProgramPath())
			}
		})
	}
}

func TestLoadScenario_ResolvesProgramRelativeToScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/comparison.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "programs", "comparison.yaml"), s.ProgramPath())
}

func TestLoadScenario_MissingProgramFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	data := strings.Replace(validScenario, "application: millionaires", "file: nowhere.yaml", 1)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program file not found")
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "millionaires", s.Program.Application)
	assert.Equal(t, ModeSimulate, s.mode())
	assert.Equal(t, "dealer", s.tripleSource())
	assert.Equal(t, "", s.ProgramPath())
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr string
	}{
		{"missing name", "name: inline", "", "name is required"},
		{"missing description", `description: "inline scenario"`, "", "description is required"},
		{"missing seed", "seed: inline", "", "seed is required"},
		{"one party", "parties: 2", "parties: 1", "parties must be at least 2"},
		{"no program", "application: millionaires", "", "program needs a file or an application"},
		{"both sources", "application: millionaires", "application: millionaires\n  file: x.yaml", "both a file and an application"},
		{"unknown application", "application: millionaires", "application: auction", `unknown application "auction"`},
		{"non-scalar element", "application: millionaires", "application: millionaires\n  type: \"u8[2]\"", "is not a scalar"},
		{"bad element type", "application: millionaires", "application: millionaires\n  type: u7", "program:"},
		{"sizes on file", "application: millionaires", "file: x.yaml\n  n: 3", "apply to applications only"},
		{"unknown mode", "seed: inline", "seed: inline\nmode: parallel", `unknown mode "parallel"`},
		{"unknown triples", "seed: inline", "seed: inline\ntriple_source: ot", `unknown triple source "ot"`},
		{"no assertions", "  - type: equivalent", "", "assertions list is required"},
		{"assertion without type", "  - type: equivalent", "  - index: 0", "type is required"},
		{"unknown assertion", "type: equivalent", "type: trace_contains", "unknown assertion type"},
		{"output without value", "type: equivalent", "type: output", "value is required"},
		{"unknown stat", "type: equivalent", "type: stat\n    stat: latency\n    count: 1", `unknown stat "latency"`},
		{"stat without bound", "type: equivalent", "type: stat\n    stat: sends", "exactly one of count or max"},
		{"stat with both bounds", "type: equivalent", "type: stat\n    stat: sends\n    count: 1\n    max: 2", "exactly one of count or max"},
		{"error without code", "type: equivalent", "type: error", "code is required"},
		{"stored_runs without count", "type: equivalent", "type: stored_runs", "count is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(validScenario, tt.old, tt.new, 1)
			_, err := ParseScenario([]byte(data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
