package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Get status of a step that doesn't exist yet
	status, err := s.GetStatus(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, node.StatusPending, status)

	require.NoError(t, s.SetStatus(ctx, "train", node.StatusRunning))

	status, err = s.GetStatus(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, node.StatusRunning, status)
}

func TestSetAndGetOutput(t *testing.T) {
	s := New()
	ctx := context.Background()

	output, err := s.GetOutput(ctx, "square")
	require.NoError(t, err)
	assert.Nil(t, output)

	expected := map[string]any{"y": 25}
	require.NoError(t, s.SetOutput(ctx, "square", expected))

	output, err = s.GetOutput(ctx, "square")
	require.NoError(t, err)
	assert.Equal(t, expected, output)
}

func TestSetAndGetError(t *testing.T) {
	s := New()
	ctx := context.Background()

	retrievedErr, err := s.GetError(ctx, "load")
	require.NoError(t, err)
	assert.Nil(t, retrievedErr)

	expectedErr := errors.New("a test error occurred")
	require.NoError(t, s.SetError(ctx, "load", expectedErr))

	retrievedErr, err = s.GetError(ctx, "load")
	require.NoError(t, err)
	assert.Equal(t, expectedErr, retrievedErr)
}

func TestStatuses(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SetStatus(ctx, "a", node.StatusSuccess))
	require.NoError(t, s.SetStatus(ctx, "b", node.StatusSkipped))

	got, err := s.Statuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]node.Status{"a": node.StatusSuccess, "b": node.StatusSkipped}, got)
}

// TestStore_ConcurrentAccess verifies that the store can be safely accessed by
// multiple goroutines simultaneously without data races or lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	numGoroutines := 100
	var wg sync.WaitGroup

	// Phase 1: Concurrent Writes
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("step-%d", i)
			_ = s.SetStatus(ctx, name, node.StatusSuccess)
			_ = s.SetOutput(ctx, name, map[string]any{"v": i})
			_ = s.SetError(ctx, name, fmt.Errorf("error for step %d", i))
		}(i)
	}
	wg.Wait()

	// Phase 2: Concurrent Reads / Verification
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("step-%d", i)

			status, err := s.GetStatus(ctx, name)
			assert.NoError(t, err)
			assert.Equal(t, node.StatusSuccess, status)

			output, err := s.GetOutput(ctx, name)
			assert.NoError(t, err)
			assert.Equal(t, map[string]any{"v": i}, output)

			stepErr, err := s.GetError(ctx, name)
			assert.NoError(t, err)
			assert.EqualError(t, stepErr, fmt.Sprintf("error for step %d", i))
		}(i)
	}
	wg.Wait()

	all, err := s.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, numGoroutines)
}
