// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of steps during a single pipeline run.
//
// # Why Node Store Exists
//
// The node store isolates **mutable execution state** (status, outputs,
// errors) from the **immutable DAG structure** managed by the graph package.
// A graph is built once and reused across runs; a node store is created
// fresh for every run and discarded when the run is finalized.
//
// # Lifecycle and Usage
//
//  1. **Created** once per run by the pipeline
//  2. **Mutated** by the scheduler as steps move through their lifecycle
//  3. **Queried** when resolving a consumer's input assets from the outputs
//     of its producers
//  4. **Snapshotted** into the finished run record
//
// # State Transitions
//
// Steps follow the lifecycle described by node.Status:
//
//	Pending → Ready → Running → Success | Failed
//	                 ↘ Cached
//	Pending → Skipped
package nodestore

import (
	"context"

	"github.com/specialistvlad/stepgrid/internal/node"
)

// Store is the interface for managing the mutable execution state of steps.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes: workers
// record outputs while the scheduler reads statuses.
type Store interface {
	// SetStatus updates the execution status of a step.
	SetStatus(ctx context.Context, stepName string, status node.Status) error

	// GetStatus returns StatusPending if no status has been set yet.
	GetStatus(ctx context.Context, stepName string) (node.Status, error)

	// SetOutput records the output assets of a completed step, keyed by
	// asset name.
	SetOutput(ctx context.Context, stepName string, outputs map[string]any) error

	// GetOutput returns nil if the step has not produced anything.
	GetOutput(ctx context.Context, stepName string) (map[string]any, error)

	// SetError records why a step failed or was skipped.
	SetError(ctx context.Context, stepName string, stepErr error) error

	// GetError returns nil if the step has no recorded error.
	GetError(ctx context.Context, stepName string) (error, error)

	// Statuses returns the status of every step that has one.
	Statuses(ctx context.Context) (map[string]node.Status, error)
}
