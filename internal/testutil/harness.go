package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/app"
	"github.com/specialistvlad/stepgrid/internal/hcl_adapter"
	"github.com/specialistvlad/stepgrid/internal/pipeline"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	// Err is the error from building the app or from the run itself.
	Err error
	App *app.App
	Run *pipeline.Run
}

// WriteFiles writes files, keyed by relative path, into a fresh temporary
// directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// NewApp loads files into an App wired with modules. Building errors are
// returned on the result rather than failing the test.
func NewApp(t *testing.T, files map[string]string, modules ...registry.Module) (*HarnessResult, *SafeBuffer) {
	t.Helper()
	logBuffer := &SafeBuffer{}
	dir := WriteFiles(t, files)

	cfg, err := app.NewConfig(app.Config{Paths: []string{dir}, LogLevel: "debug"})
	require.NoError(t, err)

	a, err := app.NewApp(context.Background(), logBuffer, cfg, hcl_adapter.NewLoader(), modules...)
	if a != nil {
		t.Cleanup(func() { _ = a.Close() })
	}
	return &HarnessResult{LogOutput: logBuffer.String(), Err: err, App: a}, logBuffer
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, nil, files, modules...)
}

// RunIntegrationTestWithContext provides a standardized harness for running
// integration tests with a specific context and parameter overrides.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, overrides map[string]any, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	result, logBuffer := NewApp(t, files, modules...)
	if result.Err != nil {
		return result
	}
	result.Run, result.Err = result.App.Run(ctx, overrides)
	result.LogOutput = logBuffer.String()
	return result
}
