package executor

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned for calls rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StepExecutionError wraps the error a step returned on a given attempt.
type StepExecutionError struct {
	Step    string
	Attempt int
	Err     error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step '%s' failed on attempt %d: %v", e.Step, e.Attempt, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports an attempt that exceeded the step's timeout.
type TimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step '%s' timed out after %s", e.Step, e.Timeout)
}

// PanicError is returned when a step function panics. It is never retried.
type PanicError struct {
	Step  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("step '%s' panicked: %v", e.Step, e.Value)
}
