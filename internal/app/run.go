package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/pipeline"
	"github.com/specialistvlad/stepgrid/internal/step"
	"golang.org/x/sync/errgroup"
)

// Run executes the pipeline once with overrides layered on the base
// parameters. The health check server, when enabled, lives for the
// duration of the run. Step failures are recorded on the returned run;
// the error is reserved for runs that could not execute at all.
func (a *App) Run(ctx context.Context, overrides map[string]any) (*pipeline.Run, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if port := a.model.Engine.HealthcheckPort; port > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return nil, fmt.Errorf("failed to start health check server: %w", err)
		}
		g.Go(func() error { return a.serveHealthcheck(runCtx, ln) })
	} else {
		a.logger.Debug("Health check server not started: disabled")
	}

	var run *pipeline.Run
	g.Go(func() error {
		defer stop()
		if len(a.pipeline.Steps()) == 0 {
			a.logger.Warn("No steps declared, execution not required.")
		}
		a.logger.Info("🚀 Starting concurrent execution...", "workers", a.model.Engine.Workers)
		run = a.pipeline.Run(runCtx, overrides)
		a.logger.Info("🏁 Execution finished.", "success", run.Success, "duration", run.Duration)
		return nil
	})

	if err := g.Wait(); err != nil {
		return run, err
	}
	if run.Err != nil {
		return run, fmt.Errorf("execution failed: %w", run.Err)
	}
	a.logger.Debug("App.Run method finished.")
	return run, nil
}

// Order returns the steps in a valid execution order.
func (a *App) Order(ctx context.Context) ([]*step.Step, error) {
	g, err := a.pipeline.Graph(ctxlog.WithLogger(ctx, a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	return g.TopologicalOrder(), nil
}

// InvalidateOptions selects cache entries to remove. Zero fields match
// everything.
type InvalidateOptions struct {
	Step       string
	Downstream bool
	OlderThan  time.Duration
	Tag        string
}

// InvalidateCache removes the cache entries matching opts and returns how
// many were removed.
func (a *App) InvalidateCache(ctx context.Context, opts InvalidateOptions) (int, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	c := a.pipeline.Cache()
	if c == nil {
		a.logger.Warn("Caching is disabled, nothing to invalidate.")
		return 0, nil
	}

	preds := []cache.Predicate{cache.Everything()}
	if opts.Step != "" {
		g, err := a.pipeline.Graph(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to build dependency graph: %w", err)
		}
		if _, ok := g.Step(opts.Step); !ok {
			return 0, fmt.Errorf("unknown step '%s'", opts.Step)
		}
		names := []string{opts.Step}
		if opts.Downstream {
			names = append(names, g.Descendants(opts.Step)...)
		}
		preds = append(preds, cache.ForStep(names...))
	}
	if opts.OlderThan > 0 {
		preds = append(preds, cache.OlderThan(opts.OlderThan))
	}
	if opts.Tag != "" {
		preds = append(preds, cache.WithTag(opts.Tag))
	}
	return c.Invalidate(ctx, cache.All(preds...))
}

// CacheStats returns the hit and miss counters of every step looked up
// since the app started. ok is false when caching is disabled.
func (a *App) CacheStats() (stats map[string]cache.Stats, total cache.Stats, ok bool) {
	c := a.pipeline.Cache()
	if c == nil {
		return nil, cache.Stats{}, false
	}
	return c.AllStats(), c.Total(), true
}

// CacheEntries counts the entries held by the cache backend per step.
func (a *App) CacheEntries(ctx context.Context) (map[string]int, error) {
	c := a.pipeline.Cache()
	if c == nil {
		return nil, nil
	}
	counts := make(map[string]int)
	err := c.Backend().Scan(ctx, func(e *cache.Entry) bool {
		counts[e.Provenance.Step]++
		return true
	})
	if err != nil {
		return nil, &cache.StoreError{Op: "scan", Err: err}
	}
	return counts, nil
}
