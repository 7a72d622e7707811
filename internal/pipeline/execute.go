package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/executor"
	"github.com/specialistvlad/stepgrid/internal/graph"
	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/nodestore"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/specialistvlad/stepgrid/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stepgrid.pipeline")

// Run executes the pipeline once. overrides shadow the pipeline's base
// parameters for this run only. Run always returns a finalized *Run: step
// failures, graph errors and cancellation are recorded on it, never
// returned or panicked.
func (p *Pipeline) Run(ctx context.Context, overrides map[string]any) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		Pipeline:  p.name,
		Params:    p.params.WithOverrides(overrides),
		Statuses:  make(map[string]node.Status),
		Outputs:   make(map[string]map[string]any),
		Artifacts: make(map[string]map[string]string),
		StartedAt: p.now(),
	}

	logger := p.log(ctx).With("run_id", run.ID, "pipeline", p.name)
	ctx = ctxlog.WithLogger(ctx, logger)
	ctx = observer.WithRun(ctx, observer.Run{ID: run.ID, Pipeline: p.name})

	ctx, span := tracer.Start(ctx, "stepgrid.Pipeline",
		trace.WithAttributes(
			attribute.String("stepgrid.pipeline", p.name),
			attribute.String("stepgrid.run_id", run.ID),
		),
	)
	defer span.End()

	logger.Info("Starting run.", "params", run.Params.Keys())
	p.hub.Notify(ctx, observer.Event{Kind: observer.RunStarted})

	g, err := p.Graph(ctx)
	if err != nil {
		logger.Error("Failed to build the pipeline graph.", "error", err)
		run.Err = err
	} else {
		r := &runner{
			p:      p,
			g:      g,
			params: run.Params,
			state:  p.newState(),
			run:    run,
		}
		r.execute(ctx)
		r.snapshot(ctx)
	}

	p.finalize(ctx, run)

	span.SetAttributes(
		attribute.Int("stepgrid.results", len(run.Results)),
		attribute.Bool("stepgrid.cancelled", run.Cancelled),
	)
	if run.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "run did not succeed")
	}
	return run
}

func (p *Pipeline) finalize(ctx context.Context, run *Run) {
	logger := ctxlog.FromContext(ctx)

	run.FinishedAt = p.now()
	run.Duration = run.FinishedAt.Sub(run.StartedAt)
	run.Success = run.Err == nil && !run.Cancelled
	for _, st := range run.Statuses {
		if st != node.StatusSuccess && st != node.StatusCached {
			run.Success = false
			break
		}
	}

	if p.metadata != nil {
		if err := p.metadata.WriteRun(context.WithoutCancel(ctx), run.Record()); err != nil {
			logger.Error("Failed to record run metadata.", "error", err)
		}
	}

	var runErr error
	switch {
	case run.Err != nil:
		runErr = run.Err
	case run.Cancelled:
		runErr = context.Canceled
	case !run.Success:
		runErr = errors.New("one or more steps failed")
	}
	p.hub.Notify(ctx, observer.Event{Kind: observer.RunFinished, Duration: run.Duration, Err: runErr})
	logger.Info("Run finished.",
		"success", run.Success,
		"cancelled", run.Cancelled,
		"results", len(run.Results),
		"duration", run.Duration,
	)
}

// runner holds the state of one run.
type runner struct {
	p      *Pipeline
	g      *graph.Graph
	params *params.Context
	state  nodestore.Store
	run    *Run

	artifactsMu sync.Mutex
}

// execute is the coordinator loop. Only this goroutine touches the
// scheduling maps; workers report back over done.
func (r *runner) execute(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if r.g.Len() == 0 {
		return
	}

	workers := min(r.p.workers, r.g.Len())
	jobs := make(chan *step.Step)
	done := make(chan executor.Result)

	// In-flight steps are not interrupted by cancellation of the run.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for s := range jobs {
				wctx := ctxlog.WithLogger(workCtx, logger.With("workerID", workerID, "step", s.Name()))
				done <- r.process(wctx, s)
			}
		}(i)
	}

	completed := make(map[string]bool)
	queued := make(map[string]bool)
	var queue []*step.Step
	inFlight := 0
	cancelled := false

	enqueueReady := func() {
		for _, s := range r.g.ReadySet(completed) {
			if !queued[s.Name()] {
				queued[s.Name()] = true
				r.setStatus(ctx, s.Name(), node.StatusReady)
				queue = append(queue, s)
			}
		}
	}
	enqueueReady()

	cancel := func() {
		cancelled = true
		logger.Warn("Run cancelled, no new steps will be started.", "in_flight", inFlight, "queued", len(queue))
		for _, s := range queue {
			r.setStatus(ctx, s.Name(), node.StatusPending)
		}
		queue = nil
	}

	for len(queue) > 0 || inFlight > 0 {
		// A cancellation seen here must win over a pending send below.
		if !cancelled && ctx.Err() != nil {
			cancel()
		}
		if cancelled && inFlight == 0 {
			break
		}

		var out chan<- *step.Step
		var next *step.Step
		if len(queue) > 0 && !cancelled {
			out = jobs
			next = queue[0]
		}
		var cancelCh <-chan struct{}
		if !cancelled {
			cancelCh = ctx.Done()
		}

		select {
		case out <- next:
			queue = queue[1:]
			inFlight++
		case res := <-done:
			inFlight--
			r.run.Results = append(r.run.Results, res)
			if res.Status.Satisfied() {
				completed[res.Step] = true
				if !cancelled {
					enqueueReady()
				}
			} else {
				for _, skipped := range r.skipDescendants(ctx, res.Step, queued) {
					r.run.Results = append(r.run.Results, skipped)
				}
			}
		case <-cancelCh:
			cancel()
		}
	}

	close(jobs)
	wg.Wait()
	r.run.Cancelled = cancelled
}

// skipDescendants marks everything downstream of failed as Skipped and
// returns their results.
func (r *runner) skipDescendants(ctx context.Context, failed string, queued map[string]bool) []executor.Result {
	logger := ctxlog.FromContext(ctx)
	var results []executor.Result
	for _, name := range r.g.Descendants(failed) {
		if queued[name] {
			continue
		}
		queued[name] = true
		err := &SkippedError{Step: name, Upstream: failed}
		logger.Warn("Skipping dependent step due to upstream failure.", "step", name, "dependency", failed)

		r.setStatus(ctx, name, node.StatusSkipped)
		r.setError(ctx, name, err)
		r.p.hub.Notify(ctx, observer.Event{Kind: observer.StepSkipped, Step: name, Status: node.StatusSkipped, Err: err})
		results = append(results, executor.Result{Step: name, Status: node.StatusSkipped, Err: err})
	}
	return results
}

// process runs one step on a worker: resolve arguments, consult the cache,
// execute on a miss and publish outputs.
func (r *runner) process(ctx context.Context, s *step.Step) executor.Result {
	logger := ctxlog.FromContext(ctx)
	started := r.p.now()

	args, err := r.resolve(ctx, s)
	if err != nil {
		logger.Error("Failed to resolve step arguments.", "error", err)
		return r.fail(ctx, executor.Result{Step: s.Name(), StartedAt: started, FinishedAt: r.p.now()}, err)
	}

	key, cacheable := r.cacheKey(ctx, s, args)
	if cacheable {
		if res, hit := r.lookup(ctx, s, key, started); hit {
			return res
		}
	}

	if cacheable {
		executed := false
		v, _, _ := r.p.cache.Do(key.Digest, func() (any, error) {
			executed = true
			return r.invoke(ctx, s, args, key, true), nil
		})
		res := v.(executor.Result)
		if executed {
			return res
		}
		// Another run computed the same key while this one waited.
		if res.Success {
			if shared := r.cached(ctx, s, res.Value, started); shared.Status == node.StatusCached {
				return shared
			}
		}
		return r.invoke(ctx, s, args, key, true)
	}
	return r.invoke(ctx, s, args, cache.Key{}, false)
}

// invoke executes s and publishes its outputs.
func (r *runner) invoke(ctx context.Context, s *step.Step, args step.Args, key cache.Key, cacheable bool) executor.Result {
	logger := ctxlog.FromContext(ctx)
	ctx = executor.WithStatusHook(ctx, func(st node.Status) { r.setStatus(ctx, s.Name(), st) })

	res := r.p.executor.Invoke(ctx, s, args)
	if !res.Success {
		return r.fail(ctx, res, res.Err)
	}

	outputs, canonical, err := splitOutputs(s, res.Value)
	if err != nil {
		logger.Error("Step returned outputs that do not match its declaration.", "error", err)
		res.Success = false
		res.Value = nil
		return r.fail(ctx, res, err)
	}
	res.Value = canonical

	if cacheable {
		prov := cache.Provenance{Step: s.Name(), RunID: r.run.ID, CodeHash: s.CodeHash(), Tags: s.Tags()}
		if _, err := r.p.cache.Store(ctx, key, canonical, prov); err != nil {
			logger.Warn("Failed to store step output in cache.", "error", err)
		}
	}
	r.saveArtifacts(ctx, s, outputs)

	r.setOutput(ctx, s.Name(), outputs)
	r.setStatus(ctx, s.Name(), node.StatusSuccess)
	return res
}

// lookup serves s from the cache when an entry exists and still maps onto
// the step's outputs.
func (r *runner) lookup(ctx context.Context, s *step.Step, key cache.Key, started time.Time) (executor.Result, bool) {
	logger := ctxlog.FromContext(ctx)
	entry, err := r.p.cache.Lookup(ctx, key)
	if err != nil {
		logger.Warn("Cache lookup failed, treating as a miss.", "error", err)
		return executor.Result{}, false
	}
	if entry == nil {
		return executor.Result{}, false
	}
	res := r.cached(ctx, s, entry.Value, started)
	return res, res.Status == node.StatusCached
}

// cached publishes a value that came from the cache. A value that no
// longer splits into the declared outputs yields a zero result.
func (r *runner) cached(ctx context.Context, s *step.Step, value any, started time.Time) executor.Result {
	outputs, canonical, err := splitOutputs(s, value)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Cached value does not match the step's outputs, recomputing.", "error", err)
		return executor.Result{}
	}
	r.setOutput(ctx, s.Name(), outputs)
	r.setStatus(ctx, s.Name(), node.StatusCached)
	r.p.hub.Notify(ctx, observer.Event{Kind: observer.StepCached, Step: s.Name(), Status: node.StatusCached})

	finished := r.p.now()
	return executor.Result{
		Step:       s.Name(),
		Status:     node.StatusCached,
		Success:    true,
		Value:      canonical,
		Source:     executor.SourceCache,
		Cached:     true,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}
}

func (r *runner) fail(ctx context.Context, res executor.Result, err error) executor.Result {
	res.Status = node.StatusFailed
	res.Success = false
	res.Err = err
	r.setError(ctx, res.Step, err)
	r.setStatus(ctx, res.Step, node.StatusFailed)
	return res
}

// resolve builds a step's arguments: declared parameters from the run's
// context, then input assets from their producers' outputs or, for
// external inputs, from the context.
func (r *runner) resolve(ctx context.Context, s *step.Step) (step.Args, error) {
	resolved, err := r.params.Resolve(s.Params())
	if err != nil {
		attributeMissing(err, s.Name())
		return nil, err
	}
	args := step.Args(resolved)

	var missing []error
	for _, asset := range s.Inputs() {
		producer, ok := r.g.Producer(asset)
		if !ok {
			v, found := r.params.Lookup(asset)
			if !found {
				missing = append(missing, &params.MissingParameterError{Name: asset, Step: s.Name()})
				continue
			}
			args[asset] = v
			continue
		}
		outputs, err := r.state.GetOutput(ctx, producer)
		if err != nil {
			return nil, err
		}
		args[asset] = outputs[asset]
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	return args, nil
}

func (r *runner) cacheKey(ctx context.Context, s *step.Step, args step.Args) (cache.Key, bool) {
	if r.p.cache == nil {
		return cache.Key{}, false
	}
	key, ok, err := cache.KeyFor(s, args)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to derive cache key, running uncached.", "error", err)
		return cache.Key{}, false
	}
	return key, ok
}

func (r *runner) saveArtifacts(ctx context.Context, s *step.Step, outputs map[string]any) {
	if r.p.artifacts == nil || len(outputs) == 0 {
		return
	}
	logger := ctxlog.FromContext(ctx)
	uris := make(map[string]string, len(outputs))
	for _, asset := range s.Outputs() {
		path := storage.ArtifactPath(r.p.name, r.run.ID, s.Name(), asset)
		uri, err := r.p.artifacts.Save(ctx, outputs[asset], path)
		if err != nil {
			logger.Warn("Failed to save artifact.", "asset", asset, "error", err)
			continue
		}
		uris[asset] = uri
	}

	r.artifactsMu.Lock()
	r.run.Artifacts[s.Name()] = uris
	r.artifactsMu.Unlock()
}

// snapshot copies the final state store contents into the run.
func (r *runner) snapshot(ctx context.Context) {
	statuses, err := r.state.Statuses(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to read final step statuses.", "error", err)
	}
	for _, s := range r.g.Steps() {
		st, ok := statuses[s.Name()]
		if !ok {
			st = node.StatusPending
		}
		r.run.Statuses[s.Name()] = st
		if st.Satisfied() {
			if outputs, err := r.state.GetOutput(ctx, s.Name()); err == nil && outputs != nil {
				r.run.Outputs[s.Name()] = outputs
			}
		}
	}
}

func (r *runner) setStatus(ctx context.Context, name string, st node.Status) {
	current, err := r.state.GetStatus(ctx, name)
	if err != nil {
		logFor(ctx).Error("Failed to read step status.", "step", name, "error", err)
		return
	}
	if !current.CanTransition(st) {
		logFor(ctx).Error("Rejected illegal status transition.", "step", name, "from", current, "to", st)
		return
	}
	if err := r.state.SetStatus(ctx, name, st); err != nil {
		logFor(ctx).Error("Failed to record step status.", "step", name, "status", st, "error", err)
	}
}

func (r *runner) setOutput(ctx context.Context, name string, outputs map[string]any) {
	if err := r.state.SetOutput(ctx, name, outputs); err != nil {
		logFor(ctx).Error("Failed to record step outputs.", "step", name, "error", err)
	}
}

func (r *runner) setError(ctx context.Context, name string, stepErr error) {
	if err := r.state.SetError(ctx, name, stepErr); err != nil {
		logFor(ctx).Error("Failed to record step error.", "step", name, "error", err)
	}
}

func logFor(ctx context.Context) *slog.Logger { return ctxlog.FromContext(ctx) }
