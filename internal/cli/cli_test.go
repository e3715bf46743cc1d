package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzagar/bnw/internal/config"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format: format,
		Stdout: stdout,
		Stderr: stderr,
		Config: config.Default(),
	}, stdout, stderr
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "format:")
		assert.Contains(t, output, "Intervals:")
		assert.Contains(t, output, "health: 5m")
		assert.Contains(t, output, "interrupt_code=130")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "node")
		assert.Contains(t, result, "intervals")
		assert.Contains(t, result, "pause")
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("outputs path info in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.True(t, strings.Contains(output, "Config file:") || strings.Contains(output, "No configuration file found"))
	})

	t.Run("outputs path in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config_path", result["type"])
		assert.Contains(t, result, "path")
	})
}

func TestConfigGenerateCmd_Run(t *testing.T) {
	t.Run("outputs sample config YAML", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigGenerateCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "# bnw configuration file")
		assert.Contains(t, output, "health: 5m")
		assert.Contains(t, output, "interrupt_code: 130")
		assert.Contains(t, output, "signature: python run_worker.py")
	})

	t.Run("generated sample round-trips through the loader", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		require.NoError(t, (&ConfigGenerateCmd{}).Run(globals))

		path := filepath.Join(t.TempDir(), "bnw.yaml")
		require.NoError(t, os.WriteFile(path, stdout.Bytes(), 0o644))

		cfg, err := config.LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "node1", cfg.Node.Name)
		assert.Equal(t, "/opt/node1", cfg.Node.WorkDir)
		require.NoError(t, cfg.Validate())
	})
}

// --- Run/Once validation ---

func TestRunCmdRejectsInvalidConfig(t *testing.T) {
	globals, _, stderr := testGlobals("text")
	cmd := &RunCmd{}

	err := cmd.Run(globals)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "INVALID_CONFIG")
}

func TestOnceCmdRejectsInvalidConfig(t *testing.T) {
	globals, stdout, _ := testGlobals("ndjson")
	cmd := &OnceCmd{DryRun: true}

	err := cmd.Run(globals)
	require.Error(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "error", result["type"])
	assert.Equal(t, "INVALID_CONFIG", result["code"])
}

func TestStopCmdRejectsInvalidConfig(t *testing.T) {
	globals, _, stderr := testGlobals("text")
	cmd := &StopCmd{}

	err := cmd.Run(globals)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "INVALID_CONFIG")
}

func TestOutputErrorCommon(t *testing.T) {
	t.Run("ndjson goes to stdout", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		err := outputErrorCommon(globals, "BOOM", "it broke")
		require.Error(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "BOOM", result["code"])
		assert.Equal(t, "it broke", result["message"])
	})

	t.Run("text goes to stderr", func(t *testing.T) {
		globals, stdout, stderr := testGlobals("text")
		err := outputErrorCommon(globals, "BOOM", "it broke")
		require.Error(t, err)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "Error [BOOM]: it broke")
	})
}
