// Package storage defines where finished work is recorded: artifacts for
// step outputs and metadata for finalized runs. The pipeline only writes to
// these stores; it never reads back from them mid-run.
package storage

import (
	"context"
	"time"
)

// ArtifactStore persists output assets. Save returns the URI the value was
// written to.
type ArtifactStore interface {
	Save(ctx context.Context, value any, path string) (string, error)
}

// MetadataStore records finalized runs.
type MetadataStore interface {
	WriteRun(ctx context.Context, run RunRecord) error
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         string
	Pipeline   string
	Success    bool
	Cancelled  bool
	Error      string
	Params     map[string]any
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepRecord
}

// StepRecord is the persisted outcome of one step within a run.
type StepRecord struct {
	Name     string
	Status   string
	Source   string
	Attempts int
	Duration time.Duration
	Error    string
	// Artifacts maps output asset names to the URIs they were saved at.
	Artifacts map[string]string
}

// ArtifactPath is the conventional location of an output asset.
func ArtifactPath(pipeline, runID, stepName, asset string) string {
	if pipeline == "" {
		pipeline = "default"
	}
	return pipeline + "/" + runID + "/" + stepName + "/" + asset
}
