package integration_tests

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cachedHCL = `
    step "load" {
        uses    = "echo"
        outputs = ["raw"]
        params  = { value = "payload" }
        tags    = ["io"]
    }
    step "transform" {
        uses    = "echo"
        inputs  = ["raw"]
        outputs = ["clean"]
        cache   = "input_hash"
    }
`

// TestCaching_PersistentCacheSurvivesRestarts validates that a badger cache
// serves a second process without re-running any step.
func TestCaching_PersistentCacheSurvivesRestarts(t *testing.T) {
	t.Parallel()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	files := map[string]string{
		"main.hcl": cachedHCL,
		"cache.hcl": fmt.Sprintf(`
            cache {
                backend = "badger"
                path    = %q
            }
        `, cacheDir),
	}

	first := testutil.NewCountingModule()
	result, _ := testutil.NewApp(t, files, first)
	require.NoError(t, result.Err)
	run, err := result.App.Run(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, run.Success)
	assert.Equal(t, 2, first.Calls("echo"))
	require.NoError(t, result.App.Close())

	second := testutil.NewCountingModule()
	result, _ = testutil.NewApp(t, files, second)
	require.NoError(t, result.Err)
	run, err = result.App.Run(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, run.Success)

	assert.Equal(t, 0, second.Calls("echo"))
	assert.Equal(t, node.StatusCached, run.Status("load"))
	assert.Equal(t, node.StatusCached, run.Status("transform"))
	clean, ok := run.Output("transform", "clean")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"raw": "payload"}, clean)

	counts, err := result.App.CacheEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"load": 1, "transform": 1}, counts)
}

// TestCaching_InputHashFollowsUpstreamChanges validates that an input-hash
// step recomputes when an upstream value changes.
func TestCaching_InputHashFollowsUpstreamChanges(t *testing.T) {
	t.Parallel()
	gridHCL := `
        step "load" {
            uses    = "echo"
            outputs = ["raw"]
            params  = { value = null }
            cache   = "input_hash"
        }
        step "transform" {
            uses    = "echo"
            inputs  = ["raw"]
            outputs = ["clean"]
            cache   = "input_hash"
        }
    `
	mod := testutil.NewCountingModule()
	result, _ := testutil.NewApp(t, map[string]string{"main.hcl": gridHCL}, mod)
	require.NoError(t, result.Err)
	ctx := context.Background()

	run, err := result.App.Run(ctx, map[string]any{"value": "v1"})
	require.NoError(t, err)
	require.True(t, run.Success)
	assert.Equal(t, 2, mod.Calls("echo"))

	run, err = result.App.Run(ctx, map[string]any{"value": "v1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, run.CacheHitRate())
	assert.Equal(t, 2, mod.Calls("echo"))

	run, err = result.App.Run(ctx, map[string]any{"value": "v2"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, run.CacheHitRate())
	assert.Equal(t, 4, mod.Calls("echo"))
	clean, _ := run.Output("transform", "clean")
	assert.Equal(t, map[string]any{"raw": "v2"}, clean)
}

// TestCaching_ArtifactsAreSaved validates that fresh outputs are written to
// the artifact bucket and recorded on the run.
func TestCaching_ArtifactsAreSaved(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"main.hcl": cachedHCL,
		"stores.hcl": `
            pipeline "stored" {}
            artifacts {
                codec = "json"
                bucket {
                    backend = "memory"
                    name    = "runs"
                }
            }
            metadata {
                backend = "memory"
            }
            cache {
                backend = "remote"
                bucket {
                    backend = "memory"
                    name    = "cache"
                }
            }
        `,
	}

	result := testutil.RunIntegrationTest(t, files, testutil.NewCountingModule())
	require.NoError(t, result.Err)
	require.True(t, result.Run.Success)

	uri, ok := result.Run.Artifacts["load"]["raw"]
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("mem://runs/artifacts/stored/%s/load/raw.json", result.Run.ID), uri)
	assert.Contains(t, result.Run.Artifacts, "transform")
}
