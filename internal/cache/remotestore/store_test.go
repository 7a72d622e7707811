package remotestore

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	bucket := objectstore.NewMemoryBucket("cache")
	s := New(bucket, nil)

	t.Run("miss", func(t *testing.T) {
		_, ok, err := s.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &cache.Entry{
			Key:        "abc",
			Value:      "hello",
			CreatedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			Provenance: cache.Provenance{Step: "greet", RunID: "run-1"},
		}))
		assert.Equal(t, 1, bucket.Len())

		e, ok, err := s.Get(ctx, "abc")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hello", e.Value)
		assert.Equal(t, "greet", e.Provenance.Step)
	})

	t.Run("scan and invalidate through the cache", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &cache.Entry{Key: "def", Value: 1, Provenance: cache.Provenance{Step: "other"}}))

		c := cache.New(s)
		n, err := c.Invalidate(ctx, cache.ForStep("greet"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		var steps []string
		require.NoError(t, s.Scan(ctx, func(e *cache.Entry) bool {
			steps = append(steps, e.Provenance.Step)
			return true
		}))
		assert.Equal(t, []string{"other"}, steps)
	})
}
