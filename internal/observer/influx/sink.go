// Package influx writes step outcomes to InfluxDB as time series points,
// one point per finished or cached step.
package influx

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/observer"
)

const Measurement = "stepgrid_steps"

// Config describes the InfluxDB destination.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("influx url is required")
	}
	if c.Org == "" || c.Bucket == "" {
		return errors.New("influx org and bucket are required")
	}
	return nil
}

// Writer is the part of api.WriteAPIBlocking the sink uses.
type Writer interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

var _ Writer = (api.WriteAPIBlocking)(nil)

// Sink is an observer.Observer that records step durations and outcomes.
type Sink struct {
	writer Writer
	client influxdb2.Client
}

var _ observer.Observer = (*Sink)(nil)

// New connects a sink to the configured server.
func New(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client: client}, nil
}

// NewWithWriter builds a sink over an existing writer.
func NewWithWriter(w Writer) *Sink {
	return &Sink{writer: w}
}

func (s *Sink) OnEvent(ctx context.Context, e observer.Event) {
	if e.Kind != observer.StepFinished && e.Kind != observer.StepCached {
		return
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := Point(e, ts)

	// Writes run detached so a cancelled run still records what finished.
	if err := s.writer.WritePoint(context.WithoutCancel(ctx), p); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to write step point to InfluxDB.", "step", e.Step, "error", err)
	}
}

// Point converts a step event into an InfluxDB point.
func Point(e observer.Event, ts time.Time) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("pipeline", e.Pipeline).
		AddTag("step", e.Step).
		AddTag("status", e.Status.String()).
		AddTag("run_id", e.RunID).
		AddField("duration_ms", e.Duration.Milliseconds()).
		AddField("attempts", e.Attempt).
		AddField("success", e.Err == nil).
		SetTime(ts)
}

// Close releases the underlying client.
func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
