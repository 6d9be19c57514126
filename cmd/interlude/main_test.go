package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command. Flags keep their values across runs, so
// every call names its own config file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "interlude.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return dir, path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "interlude version ")
}

func TestValidateCommand(t *testing.T) {
	_, cfg := writeConfig(t, "log_level: debug\n")
	out, err := execute(t, "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Workflow "research" is valid!`)
	assert.Contains(t, out, "Configuration is valid!")
}

func TestValidateCommand_BadConfig(t *testing.T) {
	_, cfg := writeConfig(t, "store:\n  kind: tape\n")
	_, err := execute(t, "validate", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.kind")
}

func TestValidateCommand_WorkflowFile(t *testing.T) {
	dir, cfg := writeConfig(t, "")
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nsteps:\n  - output: hi\n"), 0o644))

	_, err := execute(t, "validate", "--config", cfg, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestSessionCommands_FileStore(t *testing.T) {
	dir, cfg := writeConfig(t, "")
	require.NoError(t, os.WriteFile(cfg, []byte("store:\n  kind: file\n  path: "+filepath.Join(dir, "sessions")+"\n"), 0o644))

	out, err := execute(t, "session", "ls", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")

	_, err = execute(t, "session", "inspect", "ghost", "--config", cfg)
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	_, cfg := writeConfig(t, "")
	out, err := execute(t, "graph", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "generate_report_plan")
}
