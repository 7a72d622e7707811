package integration_tests

import (
	"testing"

	"github.com/specialistvlad/stepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDagConcurrency_FanInSynchronization validates that a step consuming
// several assets only starts once every producer has finished.
func TestDagConcurrency_FanInSynchronization(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	gridHCL := `
        step "fast" {
            uses    = "sleep"
            outputs = ["a"]
            params  = { duration = "10ms" }
        }
        step "slow" {
            uses    = "sleep"
            outputs = ["b"]
            params  = { duration = "150ms" }
        }
        step "join" {
            uses   = "echo"
            inputs = ["a", "b"]
        }
    `

	// --- Act ---
	result := testutil.RunIntegrationTest(t, map[string]string{"main.hcl": gridHCL}, testutil.NewCountingModule())

	// --- Assert ---
	require.NoError(t, result.Err)
	require.True(t, result.Run.Success)

	join, ok := result.Run.Result("join")
	require.True(t, ok)
	for _, producer := range []string{"fast", "slow"} {
		res, ok := result.Run.Result(producer)
		require.True(t, ok)
		assert.False(t, join.StartedAt.Before(res.FinishedAt), "join started before %s finished", producer)
	}
	assert.Equal(t, map[string]any{"a": "10ms", "b": "150ms"}, join.Value)
}
