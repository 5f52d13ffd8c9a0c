package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mpcgraph", cmd.Use)
	assert.Contains(t, cmd.Long, "additive-sharing")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "evaluate", "simulate", "inspect", "validate", "test", "runs"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"compile", "output", ""},
		{"compile", "parties", "2"},
		{"compile", "triples", "dealer"},
		{"evaluate", "inputs", ""},
		{"simulate", "delegated", "false"},
		{"simulate", "seed", ""},
		{"simulate", "parallelism", "1"},
		{"inspect", "compiled", "false"},
		{"test", "update", "false"},
		{"test", "filter", ""},
		{"runs", "store", ""},
		{"runs", "context", ""},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}

	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)
	assert.Equal(t, "o", compileCmd.Flags().Lookup("output").Shorthand)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "validate", millionairesCUE)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := writeFile(t, "mpcgraph.yaml", "parties: 1\n")
		out, err := execute(t, "--config", cfg, "--format", "json", "compile", millionairesCUE)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		resp := decode(t, out)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "INVALID_CONFIGURATION", resp.Error.Code)
	})

	t.Run("flags override the file", func(t *testing.T) {
		cfg := writeFile(t, "mpcgraph.yaml", "parties: 4\n")
		out, err := execute(t, "--config", cfg, "--format", "json", "compile", millionairesCUE, "--parties", "3")
		require.NoError(t, err)

		var res CompileResult
		decodeData(t, decode(t, out), &res)
		assert.Equal(t, 3, res.Parties)
	})

	t.Run("file values apply", func(t *testing.T) {
		cfg := writeFile(t, "mpcgraph.yaml", "parties: 4\n")
		out, err := execute(t, "--config", cfg, "--format", "json", "compile", millionairesCUE)
		require.NoError(t, err)

		var res CompileResult
		decodeData(t, decode(t, out), &res)
		assert.Equal(t, 4, res.Parties)
	})
}
