package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/stepgrid/internal/cache"
	"github.com/specialistvlad/stepgrid/internal/cache/badgerstore"
	"github.com/specialistvlad/stepgrid/internal/cache/remotestore"
	"github.com/specialistvlad/stepgrid/internal/codec"
	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/objectstore"
	"github.com/specialistvlad/stepgrid/internal/observer"
	"github.com/specialistvlad/stepgrid/internal/observer/influx"
	"github.com/specialistvlad/stepgrid/internal/observer/socketio"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/specialistvlad/stepgrid/internal/storage"
	"github.com/specialistvlad/stepgrid/internal/storage/postgres"
)


// buildCache opens the configured cache backend. "none" disables caching.
func (a *App) buildCache(ctx context.Context, c config.Cache) (*cache.Cache, error) {
	logger := ctxlog.FromContext(ctx)
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}

	switch c.Backend {
	case "none":
		logger.Info("Caching disabled.")
		return nil, nil
	case "", "memory":
		return cache.New(nil, cache.WithLogger(a.logger)), nil
	case "badger":
		store, err := badgerstore.Open(badgerstore.Config{
			Path:       c.Path,
			InMemory:   c.InMemory,
			SyncWrites: c.SyncWrites,
			TTL:        c.TTL,
			Codec:      cd,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger cache: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logger.Info("Using on-disk cache.", "path", c.Path, "in_memory", c.InMemory)
		return cache.New(store, cache.WithLogger(a.logger)), nil
	case "remote":
		bucket, err := a.openBucket(ctx, c.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open remote cache: %w", err)
		}
		logger.Info("Using remote cache.", "bucket", bucket.URI(""))
		return cache.New(remotestore.New(bucket, cd), cache.WithLogger(a.logger)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend '%s'", c.Backend)
	}
}

func (a *App) openBucket(ctx context.Context, b *config.Bucket) (objectstore.Bucket, error) {
	if b == nil {
		return nil, fmt.Errorf("bucket configuration is missing")
	}
	switch b.Backend {
	case "memory":
		return objectstore.NewMemoryBucket(b.Name), nil
	case "gcs":
		bucket, err := objectstore.OpenGCS(ctx, objectstore.GCSConfig{
			Bucket:          b.Name,
			Prefix:          b.Prefix,
			CredentialsFile: b.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bucket.Close)
		return bucket, nil
	case "", "minio":
		return objectstore.Open(ctx, objectstore.Config{
			Endpoint:  b.Endpoint,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
			Region:    b.Region,
			UseSSL:    b.UseSSL,
			Bucket:    b.Name,
			Prefix:    b.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown bucket backend '%s'", b.Backend)
	}
}

func (a *App) buildArtifacts(ctx context.Context, c *config.Artifacts) (storage.ArtifactStore, error) {
	if c == nil {
		return nil, nil
	}
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	bucket, err := a.openBucket(ctx, c.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact bucket: %w", err)
	}
	return storage.NewBucketArtifacts(bucket, cd), nil
}

func (a *App) buildMetadata(ctx context.Context, c *config.Metadata) (storage.MetadataStore, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Backend {
	case "memory":
		return &storage.MemoryMetadata{}, nil
	case "", "postgres":
		db, err := postgres.Open(ctx, postgres.Config{URL: c.URL})
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store := postgres.NewRunStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metadata backend '%s'", c.Backend)
	}
}

func (a *App) buildObservers(ctx context.Context, cfgs []*config.Observer) ([]observer.Observer, error) {
	var out []observer.Observer
	for _, c := range cfgs {
		switch c.Type {
		case "log":
			out = append(out, observer.NewLogObserver(a.logger))
		case "socketio":
			sink, err := socketio.Dial(ctx, socketio.Config{URL: c.URL, Namespace: c.Namespace, Event: c.Event})
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, sink.Close)
			out = append(out, sink)
		case "influx":
			sink, err := influx.New(influx.Config{URL: c.URL, Token: c.Token, Org: c.Org, Bucket: c.Bucket})
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, func() error {
				sink.Close()
				return nil
			})
			out = append(out, sink)
		default:
			return nil, fmt.Errorf("unknown observer type '%s'", c.Type)
		}
	}
	return out, nil
}

// buildSteps binds every declared step to its registered handler.
func buildSteps(m *config.Model, reg *registry.Registry) ([]*step.Step, error) {
	steps := make([]*step.Step, 0, len(m.Steps))
	for _, s := range m.Steps {
		built, err := buildStep(s, reg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, built)
	}
	return steps, nil
}

func buildStep(s *config.Step, reg *registry.Registry) (*step.Step, error) {
	fn, ok := reg.Handler(s.Uses)
	if !ok {
		return nil, fmt.Errorf("step '%s': handler '%s' is not registered", s.Name, s.Uses)
	}

	opts := []step.Option{
		step.WithInputs(s.Inputs...),
		step.WithOutputs(s.Outputs...),
		step.WithParams(stepParams(s.Params)...),
		step.WithDescription(s.Description),
		step.WithVersion(s.Version),
		step.WithTimeout(s.Timeout),
		step.WithTags(s.Tags...),
	}
	if len(s.Resources) > 0 {
		opts = append(opts, step.WithResources(s.Resources))
	}

	strategy, err := step.ParseCacheStrategy(s.Cache)
	if err != nil {
		return nil, fmt.Errorf("step '%s': %w", s.Name, err)
	}
	opts = append(opts, step.WithCache(strategy))

	if s.Retry != nil {
		opts = append(opts, step.WithRetry(step.Retry(s.Retry.Attempts, backoffFor(s.Retry.Backoff))))
	}
	if cb := s.CircuitBreaker; cb != nil {
		opts = append(opts, step.WithCircuitBreaker(step.CircuitBreaker{
			FailureThreshold: cb.FailureThreshold,
			RecoveryTimeout:  cb.RecoveryTimeout,
		}))
	}
	if rl := s.RateLimit; rl != nil {
		opts = append(opts, step.WithRateLimit(step.RateLimit{Limit: rl.Limit, Per: rl.Per, Burst: rl.Burst}))
	}
	if s.Fallback != "" {
		fallback, ok := reg.Handler(s.Fallback)
		if !ok {
			return nil, fmt.Errorf("step '%s': fallback handler '%s' is not registered", s.Name, s.Fallback)
		}
		opts = append(opts, step.WithFallback(fallback))
	}

	return step.New(s.Name, fn, opts...)
}

// stepParams declares parameters in name order. A nil default makes the
// parameter required.
func stepParams(defaults map[string]any) []params.Param {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]params.Param, 0, len(names))
	for _, name := range names {
		if def := defaults[name]; def != nil {
			out = append(out, params.Optional(name, def))
		} else {
			out = append(out, params.Required(name))
		}
	}
	return out
}

func backoffFor(b *config.Backoff) step.BackoffFactory {
	if b == nil {
		return step.Exponential(step.DefaultBackoffInitial, step.DefaultBackoffMax)
	}
	initial := b.Initial
	if initial <= 0 {
		initial = step.DefaultBackoffInitial
	}
	switch b.Strategy {
	case "constant":
		return step.Constant(initial)
	case "jittered":
		return step.Jittered(initial, b.Max, b.Jitter)
	default:
		return step.Exponential(initial, b.Max)
	}
}
