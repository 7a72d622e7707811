package pipeline

import (
	"time"

	"github.com/specialistvlad/stepgrid/internal/executor"
	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/storage"
)

// Run is the finalized record of one pipeline execution.
type Run struct {
	ID       string
	Pipeline string
	// Params is the context the run resolved arguments from.
	Params *params.Context
	// Results holds one entry per step that reached a terminal state, in
	// completion order.
	Results []executor.Result
	// Statuses holds the final status of every step, Pending included.
	Statuses map[string]node.Status
	// Outputs holds the published output assets per step.
	Outputs map[string]map[string]any
	// Artifacts holds the URIs output assets were saved at per step.
	Artifacts map[string]map[string]string
	Success   bool
	Cancelled bool
	// Err is set when the run could not start, e.g. the graph is cyclic.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// Result returns the result recorded for a step.
func (r *Run) Result(name string) (executor.Result, bool) {
	for _, res := range r.Results {
		if res.Step == name {
			return res, true
		}
	}
	return executor.Result{}, false
}

// Status returns a step's final status.
func (r *Run) Status(name string) node.Status {
	return r.Statuses[name]
}

// Output returns one published output asset.
func (r *Run) Output(stepName, asset string) (any, bool) {
	v, ok := r.Outputs[stepName][asset]
	return v, ok
}

// StepsWith returns the steps that ended in status, in completion order.
func (r *Run) StepsWith(status node.Status) []string {
	var names []string
	for _, res := range r.Results {
		if res.Status == status {
			names = append(names, res.Step)
		}
	}
	return names
}

// CacheHitRate is the share of completed steps served from the cache.
// Failed and skipped steps are not counted.
func (r *Run) CacheHitRate() float64 {
	var hits, total int
	for _, res := range r.Results {
		switch res.Status {
		case node.StatusCached:
			hits++
			total++
		case node.StatusSuccess:
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Record converts the run into its persisted form.
func (r *Run) Record() storage.RunRecord {
	rec := storage.RunRecord{
		ID:         r.ID,
		Pipeline:   r.Pipeline,
		Success:    r.Success,
		Cancelled:  r.Cancelled,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if r.Params != nil {
		rec.Params = r.Params.Flatten()
	}
	for _, res := range r.Results {
		sr := storage.StepRecord{
			Name:      res.Step,
			Status:    res.Status.String(),
			Source:    string(res.Source),
			Attempts:  res.Attempts,
			Duration:  res.Duration,
			Artifacts: r.Artifacts[res.Step],
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		rec.Steps = append(rec.Steps, sr)
	}
	return rec
}
