package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/pipeline"
	"github.com/specialistvlad/stepgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	model    *config.Model
	pipeline *pipeline.Pipeline
	closers  []func() error
}

// NewApp is the constructor for the main application. It loads the
// pipeline definition through loader, binds every step to a handler from
// modules (the core modules when none are given) and opens the configured
// backends. Close releases them.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(outW, cfg, config.Engine{})
	ctx = ctxlog.WithLogger(ctx, logger)

	model, err := loader.Load(ctx, cfg.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ApplyEnv(model); err != nil {
		return nil, err
	}
	if cfg.Workers > 0 {
		model.Engine.Workers = cfg.Workers
	}
	if cfg.HealthcheckPort > 0 {
		model.Engine.HealthcheckPort = cfg.HealthcheckPort
	}
	if err := config.Validate(model); err != nil {
		return nil, err
	}
	logger = newLogger(outW, cfg, model.Engine)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.", "level", firstNonEmpty(cfg.LogLevel, model.Engine.LogLevel, "info"))
	logger.Debug("Configuration loaded and translated into unified model.", "steps", len(model.Steps))

	if len(modules) == 0 {
		modules = CoreModules(outW)
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "handlers", reg.Len())
	if err := reg.Validate(ctx, model); err != nil {
		return nil, err
	}

	base := maps.Clone(model.Params)
	if cfg.ParamsFile != "" {
		fromFile, err := params.LoadFile(cfg.ParamsFile)
		if err != nil {
			return nil, err
		}
		if base == nil {
			base = make(map[string]any, len(fromFile))
		}
		maps.Copy(base, fromFile)
		logger.Debug("Parameter file loaded.", "path", cfg.ParamsFile, "count", len(fromFile))
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		model:    model,
	}
	if err := a.buildPipeline(ctx, params.New(base)); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *App) buildPipeline(ctx context.Context, base *params.Context) error {
	steps, err := buildSteps(a.model, a.registry)
	if err != nil {
		return err
	}
	c, err := a.buildCache(ctx, a.model.Cache)
	if err != nil {
		return err
	}
	artifacts, err := a.buildArtifacts(ctx, a.model.Artifacts)
	if err != nil {
		return err
	}
	metadata, err := a.buildMetadata(ctx, a.model.Metadata)
	if err != nil {
		return err
	}
	observers, err := a.buildObservers(ctx, a.model.Observers)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithCache(c),
		pipeline.WithParams(base),
		pipeline.WithLogger(a.logger),
	}
	if a.model.Engine.Workers > 0 {
		opts = append(opts, pipeline.WithWorkers(a.model.Engine.Workers))
	}
	if artifacts != nil {
		opts = append(opts, pipeline.WithArtifactStore(artifacts))
	}
	if metadata != nil {
		opts = append(opts, pipeline.WithMetadataStore(metadata))
	}
	for _, o := range observers {
		opts = append(opts, pipeline.WithObserver(o))
	}

	p, err := pipeline.New(a.model.Engine.Name, steps, opts...)
	if err != nil {
		return err
	}
	a.pipeline = p
	return nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }

// Model returns the loaded configuration model.
func (a *App) Model() *config.Model { return a.model }

// Pipeline returns the pipeline built from the configuration.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Close releases every backend the app opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
