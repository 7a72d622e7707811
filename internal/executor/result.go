package executor

import (
	"time"

	"github.com/specialistvlad/stepgrid/internal/node"
)

// Source tells where a result's value came from.
type Source string

const (
	SourceExecution Source = "execution"
	SourceCache     Source = "cache"
	SourceFallback  Source = "fallback"
)

// Result is the outcome of invoking one step.
type Result struct {
	Step    string
	Status  node.Status
	Success bool
	// Value is set on success, Err on failure.
	Value any
	Err   error
	// Attempts counts calls to the step function. Calls rejected by an
	// open breaker are not counted.
	Attempts   int
	Source     Source
	Cached     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}
