// Package observer delivers live run and step status to registered
// callbacks. Events are delivered synchronously, at the point of the state
// transition, on the goroutine that made it.
package observer

import (
	"time"

	"github.com/specialistvlad/stepgrid/internal/node"
)

// Kind names an event.
type Kind string

const (
	RunStarted   Kind = "run_started"
	RunFinished  Kind = "run_finished"
	StepStarted  Kind = "step_started"
	StepRetrying Kind = "step_retrying"
	StepFinished Kind = "step_finished"
	StepCached   Kind = "step_cached"
	StepSkipped  Kind = "step_skipped"
	StepReport   Kind = "step_report"
)

// Event is one notification. Fields that do not apply to a kind are zero.
type Event struct {
	Kind     Kind
	Time     time.Time
	RunID    string
	Pipeline string
	Step     string
	Status   node.Status
	Attempt  int
	Duration time.Duration
	Err      error
	// Key and Value carry StepReport payloads.
	Key   string
	Value any
}

// Fields flattens the event for sinks that serialize it.
func (e Event) Fields() map[string]any {
	f := map[string]any{
		"kind": string(e.Kind),
		"time": e.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.RunID != "" {
		f["run_id"] = e.RunID
	}
	if e.Pipeline != "" {
		f["pipeline"] = e.Pipeline
	}
	if e.Step != "" {
		f["step"] = e.Step
		f["status"] = e.Status.String()
	}
	if e.Attempt > 0 {
		f["attempt"] = e.Attempt
	}
	if e.Duration > 0 {
		f["duration_ms"] = e.Duration.Milliseconds()
	}
	if e.Err != nil {
		f["error"] = e.Err.Error()
	}
	if e.Key != "" {
		f["key"] = e.Key
		f["value"] = e.Value
	}
	return f
}
