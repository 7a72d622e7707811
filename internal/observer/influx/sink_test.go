package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	f.points = append(f.points, p...)
	return f.err
}

func TestSink_OnEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("writes finished and cached steps only", func(t *testing.T) {
		w := &fakeWriter{}
		s := NewWithWriter(w)

		s.OnEvent(ctx, observer.Event{Kind: observer.StepStarted, Step: "a"})
		s.OnEvent(ctx, observer.Event{Kind: observer.StepFinished, Step: "a", Status: node.StatusSuccess, Attempt: 1, Duration: time.Second})
		s.OnEvent(ctx, observer.Event{Kind: observer.StepCached, Step: "b", Status: node.StatusCached})
		s.OnEvent(ctx, observer.Event{Kind: observer.RunFinished})

		require.Len(t, w.points, 2)
		assert.Equal(t, Measurement, w.points[0].Name())
	})

	t.Run("write errors are swallowed", func(t *testing.T) {
		s := NewWithWriter(&fakeWriter{err: errors.New("down")})
		assert.NotPanics(t, func() {
			s.OnEvent(ctx, observer.Event{Kind: observer.StepFinished, Step: "a"})
		})
	})
}

func TestPoint(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := Point(observer.Event{
		Pipeline: "etl",
		Step:     "load",
		Status:   node.StatusFailed,
		RunID:    "r1",
		Attempt:  3,
		Duration: 250 * time.Millisecond,
		Err:      errors.New("boom"),
	}, ts)

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}

	assert.Equal(t, "load", tags["step"])
	assert.Equal(t, "FAILED", tags["status"])
	assert.Equal(t, int64(250), fields["duration_ms"])
	assert.Equal(t, false, fields["success"])
	assert.Equal(t, ts, p.Time())
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{URL: "http://x"}.Validate())
	assert.NoError(t, Config{URL: "http://x", Org: "o", Bucket: "b"}.Validate())
}
