// Package node defines the lifecycle states a step passes through inside a
// single pipeline run and the transitions allowed between them.
package node

import "fmt"

// Status is the execution state of one step within one run.
type Status int32

const (
	// StatusPending indicates the step is waiting for its producers.
	StatusPending Status = iota
	// StatusReady indicates every producer finished and the step is queued.
	StatusReady
	// StatusRunning indicates a worker is executing the step.
	StatusRunning
	// StatusRetrying indicates an attempt failed and another one is due.
	StatusRetrying
	// StatusSuccess indicates the step ran and produced its outputs.
	StatusSuccess
	// StatusFailed indicates the step exhausted its attempts.
	StatusFailed
	// StatusCached indicates the outputs were served from the cache.
	StatusCached
	// StatusSkipped indicates an upstream failure kept the step from running.
	// Steps left unstarted by a cancelled run stay Pending.
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusPending:  "PENDING",
	StatusReady:    "READY",
	StatusRunning:  "RUNNING",
	StatusRetrying: "RETRYING",
	StatusSuccess:  "SUCCESS",
	StatusFailed:   "FAILED",
	StatusCached:   "CACHED",
	StatusSkipped:  "SKIPPED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCached, StatusSkipped:
		return true
	default:
		return false
	}
}

// Satisfied reports whether the step's outputs are available to consumers.
func (s Status) Satisfied() bool {
	return s == StatusSuccess || s == StatusCached
}

// A Ready step returns to Pending when its run is cancelled before a worker
// picks it up. Ready and Retrying may go straight to Success when a fallback
// answers for a step whose breaker is open or whose backoff was interrupted.
var transitions = map[Status][]Status{
	StatusPending:  {StatusReady, StatusSkipped},
	StatusReady:    {StatusRunning, StatusCached, StatusSuccess, StatusFailed, StatusSkipped, StatusPending},
	StatusRunning:  {StatusSuccess, StatusFailed, StatusRetrying},
	StatusRetrying: {StatusRunning, StatusSuccess, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal step in the
// lifecycle.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
