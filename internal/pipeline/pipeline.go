package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/executor"
	"github.com/specialistvlad/stepgrid/internal/graph"
	"github.com/specialistvlad/stepgrid/internal/inmemorystore"
	"github.com/specialistvlad/stepgrid/internal/nodestore"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/specialistvlad/stepgrid/internal/storage"
)

// ErrNilStep is returned when a nil *step.Step is added.
var ErrNilStep = errors.New("step is nil")

// Pipeline is a named, reusable set of steps plus everything needed to run
// them.
type Pipeline struct {
	name      string
	workers   int
	cache     *cache.Cache
	executor  *executor.Executor
	params    *params.Context
	artifacts storage.ArtifactStore
	metadata  storage.MetadataStore
	hub       *observer.Hub
	logger    *slog.Logger
	newState  func() nodestore.Store
	now       func() time.Time

	mu    sync.Mutex
	steps []*step.Step
	graph *graph.Graph
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the worker pool size. Values below one mean one.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = max(n, 1) }
}

// WithCache sets the cache consulted before each step. Nil disables
// caching entirely.
func WithCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithExecutor replaces the default executor.
func WithExecutor(e *executor.Executor) Option {
	return func(p *Pipeline) { p.executor = e }
}

// WithParams sets the base parameter context each run derives from.
func WithParams(c *params.Context) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.params = c
		}
	}
}

// WithArtifactStore saves every freshly computed output asset.
func WithArtifactStore(a storage.ArtifactStore) Option {
	return func(p *Pipeline) { p.artifacts = a }
}

// WithMetadataStore records every finalized run.
func WithMetadataStore(m storage.MetadataStore) Option {
	return func(p *Pipeline) { p.metadata = m }
}

// WithObserver registers an observer for run and step events.
func WithObserver(o observer.Observer) Option {
	return func(p *Pipeline) { p.hub.Register(o) }
}

// WithLogger sets the logger used when the run context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStateStore sets the factory for per-run state stores.
func WithStateStore(newStore func() nodestore.Store) Option {
	return func(p *Pipeline) { p.newState = newStore }
}

// WithClock replaces the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline from steps. Step names must be unique.
func New(name string, steps []*step.Step, opts ...Option) (*Pipeline, error) {
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s == nil {
			return nil, fmt.Errorf("step at position %d: %w", i, ErrNilStep)
		}
		if seen[s.Name()] {
			return nil, &graph.DuplicateStepError{Name: s.Name()}
		}
		seen[s.Name()] = true
	}

	p := &Pipeline{
		name:     name,
		workers:  runtime.NumCPU(),
		cache:    cache.New(nil),
		params:   params.Empty(),
		hub:      observer.NewHub(),
		newState: inmemorystore.New,
		now:      time.Now,
		steps:    slices.Clone(steps),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.executor == nil {
		p.executor = executor.New(executor.WithHub(p.hub))
	}
	return p, nil
}

func (p *Pipeline) Name() string { return p.name }

// Cache returns the pipeline's cache, or nil when caching is disabled.
func (p *Pipeline) Cache() *cache.Cache { return p.cache }

// Executor returns the executor steps run on.
func (p *Pipeline) Executor() *executor.Executor { return p.executor }

// Steps returns the steps in declaration order.
func (p *Pipeline) Steps() []*step.Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.steps)
}

// AddStep appends s. The graph is rebuilt on the next run.
func (p *Pipeline) AddStep(s *step.Step) error {
	if s == nil {
		return ErrNilStep
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.steps {
		if existing.Name() == s.Name() {
			return &graph.DuplicateStepError{Name: s.Name()}
		}
	}
	p.steps = append(p.steps, s)
	p.graph = nil
	return nil
}

// Graph returns the dependency graph, building it on first use and
// reusing it while the step list is unchanged.
func (p *Pipeline) Graph(ctx context.Context) (*graph.Graph, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph != nil {
		return p.graph, nil
	}
	g, err := graph.Build(ctx, p.steps)
	if err != nil {
		return nil, err
	}
	p.graph = g
	return g, nil
}

// Invalidate removes the cached outputs of stepName and, when downstream
// is set, of every step depending on it. It returns the number of removed
// entries.
func (p *Pipeline) Invalidate(ctx context.Context, stepName string, downstream bool) (int, error) {
	if p.cache == nil {
		return 0, nil
	}
	g, err := p.Graph(ctx)
	if err != nil {
		return 0, err
	}
	if _, ok := g.Step(stepName); !ok {
		return 0, fmt.Errorf("unknown step '%s'", stepName)
	}
	names := []string{stepName}
	if downstream {
		names = append(names, g.Descendants(stepName)...)
	}
	n, err := p.cache.Invalidate(ctx, cache.ForStep(names...))
	if err != nil {
		return n, err
	}
	p.log(ctx).Info("Invalidated cached outputs.", "steps", names, "entries", n)
	return n, nil
}

func (p *Pipeline) log(ctx context.Context) *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return ctxlog.FromContext(ctx)
}
