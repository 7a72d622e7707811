package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineHCL = `
pipeline "numbers" {}

step "add" {
  uses    = "sum"
  outputs = ["total"]
  params  = { a = 1, b = null }
  tags    = ["math"]
}

step "show" {
  uses   = "echo"
  inputs = ["total"]
}
`

func runCLI(t *testing.T, mod registry.Module, args ...string) (string, error) {
	t.Helper()
	out := &testutil.SafeBuffer{}
	flags := &globalFlags{modules: []registry.Module{mod}}
	err := execute(context.Background(), out, args, flags)
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	return exitErr.Code
}

func TestExecute_Run(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": pipelineHCL})

	t.Run("set overrides feed required parameters", func(t *testing.T) {
		mod := testutil.NewCountingModule()
		out, err := runCLI(t, mod, "run", "--log-level", "error", "--set", "b=41", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "succeeded")
		assert.Contains(t, out, "show")
		require.Len(t, mod.Args(), 2)
		assert.Equal(t, 2, mod.Calls("sum")+mod.Calls("echo"))
	})

	t.Run("root command runs positional paths", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "--log-level", "error", "--set", "b=1", dir)
		require.NoError(t, err)
	})

	t.Run("config flag is an alternative to positional paths", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "run", "-c", dir, "--log-level", "error", "--set", "b=1")
		require.NoError(t, err)
	})

	t.Run("missing parameter fails the run", func(t *testing.T) {
		out, err := runCLI(t, testutil.NewCountingModule(), "run", "--log-level", "error", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, exitCode(t, err))
		assert.Contains(t, err.Error(), "pipeline 'numbers' failed")
		assert.Contains(t, out, "FAILED")
		assert.Contains(t, out, "SKIPPED")
	})

	t.Run("malformed set", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "run", "--set", "novalue", dir)
		require.Error(t, err)
		assert.Equal(t, ExitUsage, exitCode(t, err))
	})

	t.Run("no paths", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "run")
		require.Error(t, err)
		assert.Equal(t, ExitUsage, exitCode(t, err))
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "run", "--log-level", "loud", dir)
		require.Error(t, err)
		assert.Equal(t, ExitUsage, exitCode(t, err))
	})
}

func TestExecute_Graph(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": pipelineHCL})

	out, err := runCLI(t, testutil.NewCountingModule(), "graph", "--log-level", "error", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline numbers (2 steps)")
	assert.Contains(t, out, "  1. add")
	assert.Contains(t, out, "  2. show")
	assert.Contains(t, out, "outputs: total")
}

func TestExecute_Cache(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": pipelineHCL})

	t.Run("clear on an empty cache", func(t *testing.T) {
		out, err := runCLI(t, testutil.NewCountingModule(), "cache", "clear", "--log-level", "error", "--step", "add", "--downstream", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "Removed 0 cache entries.")
	})

	t.Run("downstream requires a step", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "cache", "clear", "--downstream", dir)
		require.Error(t, err)
		assert.Equal(t, ExitUsage, exitCode(t, err))
	})

	t.Run("unknown step", func(t *testing.T) {
		_, err := runCLI(t, testutil.NewCountingModule(), "cache", "clear", "--log-level", "error", "--step", "nope", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, exitCode(t, err))
	})

	t.Run("stats", func(t *testing.T) {
		out, err := runCLI(t, testutil.NewCountingModule(), "cache", "stats", "--log-level", "error", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "0 cached entries")
	})
}

func TestParseSet(t *testing.T) {
	got, err := parseSet([]string{"n=3", "ratio=0.5", "on=true", "name=ada", "list=[1, 2]", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":     3,
		"ratio": 0.5,
		"on":    true,
		"name":  "ada",
		"list":  []any{1, 2},
		"empty": "",
	}, got)

	none, err := parseSet(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseSet([]string{"=1"})
	require.Error(t, err)
}
