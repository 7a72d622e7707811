package storage

import (
	"context"
	"testing"

	"github.com/specialistvlad/stepgrid/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, "etl/r1/square/y", ArtifactPath("etl", "r1", "square", "y"))
	assert.Equal(t, "default/r1/square/y", ArtifactPath("", "r1", "square", "y"))
}

func TestBucketArtifacts(t *testing.T) {
	ctx := context.Background()
	bucket := objectstore.NewMemoryBucket("runs")
	a := NewBucketArtifacts(bucket, nil)

	uri, err := a.Save(ctx, map[string]any{"rows": 3}, "etl/r1/load/data")
	require.NoError(t, err)
	assert.Equal(t, "mem://runs/artifacts/etl/r1/load/data.json", uri)

	var got map[string]any
	require.NoError(t, a.Load(ctx, "etl/r1/load/data", &got))
	assert.Equal(t, map[string]any{"rows": float64(3)}, got)

	assert.ErrorIs(t, a.Load(ctx, "missing", &got), objectstore.ErrNotFound)
}

func TestMemoryMetadata(t *testing.T) {
	m := &MemoryMetadata{}
	require.NoError(t, m.WriteRun(context.Background(), RunRecord{ID: "a"}))
	require.NoError(t, m.WriteRun(context.Background(), RunRecord{ID: "b"}))

	runs := m.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
}
