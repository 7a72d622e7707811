package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/params"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopModule struct{}

func (noopModule) Register(r *registry.Registry) {
	r.Register("noop", func(context.Context, step.Args) (any, error) { return nil, nil })
	r.Register("backup", func(context.Context, step.Args) (any, error) { return "backup", nil })
}

func TestBuildStep(t *testing.T) {
	reg := registry.New(noopModule{})

	t.Run("converts every policy", func(t *testing.T) {
		s, err := buildStep(&config.Step{
			Name:        "fetch",
			Uses:        "noop",
			Description: "fetches",
			Version:     "2",
			Inputs:      []string{"url"},
			Outputs:     []string{"page"},
			Params:      map[string]any{"method": "GET", "token": nil},
			Cache:       "input_hash",
			Timeout:     time.Minute,
			Resources:   map[string]string{"cpu": "1"},
			Tags:        []string{"io"},
			Fallback:    "backup",
			Retry: &config.Retry{
				Attempts: 4,
				Backoff:  &config.Backoff{Strategy: "constant", Initial: time.Second},
			},
			CircuitBreaker: &config.CircuitBreaker{FailureThreshold: 3, RecoveryTimeout: time.Minute},
			RateLimit:      &config.RateLimit{Limit: 5, Per: time.Second, Burst: 2},
		}, reg)
		require.NoError(t, err)

		assert.Equal(t, "fetch", s.Name())
		assert.Equal(t, "fetches", s.Description())
		assert.Equal(t, "2", s.Version())
		assert.Equal(t, []string{"url"}, s.Inputs())
		assert.Equal(t, []string{"page"}, s.Outputs())
		assert.Equal(t, []params.Param{
			params.Optional("method", "GET"),
			params.Required("token"),
		}, s.Params())
		assert.Equal(t, step.CacheInputHash, s.Cache().Kind)
		assert.Equal(t, time.Minute, s.Timeout())
		assert.Equal(t, map[string]string{"cpu": "1"}, s.Resources())
		assert.Equal(t, []string{"io"}, s.Tags())
		assert.True(t, s.HasFallback())
		assert.Equal(t, 4, s.Retry().Attempts())
		assert.Equal(t, time.Second, s.Retry().Schedule().NextBackOff())

		policy := s.Policy()
		require.NotNil(t, policy.CircuitBreaker)
		assert.Equal(t, 3, policy.CircuitBreaker.FailureThreshold)
		require.NotNil(t, policy.RateLimit)
		assert.Equal(t, 5.0, policy.RateLimit.PerSecond())
	})

	t.Run("defaults to code hash caching without retries", func(t *testing.T) {
		s, err := buildStep(&config.Step{Name: "plain", Uses: "noop"}, reg)
		require.NoError(t, err)
		assert.Equal(t, step.CacheCodeHash, s.Cache().Kind)
		assert.Equal(t, 1, s.Retry().Attempts())
		assert.False(t, s.HasFallback())
		assert.Empty(t, s.Params())
	})

	t.Run("unknown handler", func(t *testing.T) {
		_, err := buildStep(&config.Step{Name: "a", Uses: "missing"}, reg)
		require.ErrorContains(t, err, "handler 'missing' is not registered")
	})

	t.Run("unknown fallback", func(t *testing.T) {
		_, err := buildStep(&config.Step{Name: "a", Uses: "noop", Fallback: "missing"}, reg)
		require.ErrorContains(t, err, "fallback handler 'missing' is not registered")
	})

	t.Run("unknown cache strategy", func(t *testing.T) {
		_, err := buildStep(&config.Step{Name: "a", Uses: "noop", Cache: "forever"}, reg)
		require.ErrorContains(t, err, "unknown cache strategy 'forever'")
	})
}

func TestBackoffFor(t *testing.T) {
	t.Run("missing schedule uses the default exponential backoff", func(t *testing.T) {
		b := backoffFor(nil)()
		assert.Equal(t, defaultBackoffInitial, b.NextBackOff())
	})

	t.Run("constant", func(t *testing.T) {
		b := backoffFor(&config.Backoff{Strategy: "constant", Initial: 2 * time.Second})()
		assert.Equal(t, 2*time.Second, b.NextBackOff())
		assert.Equal(t, 2*time.Second, b.NextBackOff())
	})

	t.Run("exponential grows up to the cap", func(t *testing.T) {
		b := backoffFor(&config.Backoff{Initial: time.Second, Max: 3 * time.Second})()
		assert.Equal(t, time.Second, b.NextBackOff())
		assert.Equal(t, 2*time.Second, b.NextBackOff())
		assert.Equal(t, 3*time.Second, b.NextBackOff())
	})
}

func TestBuildBackends(t *testing.T) {
	a := &App{logger: newLogger(io.Discard, &Config{LogLevel: "error"}, config.Engine{})}
	ctx := context.Background()

	t.Run("disabled cache", func(t *testing.T) {
		c, err := a.buildCache(ctx, config.Cache{Backend: "none"})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("in-memory badger cache", func(t *testing.T) {
		c, err := a.buildCache(ctx, config.Cache{Backend: "badger", InMemory: true, Codec: "msgpack"})
		require.NoError(t, err)
		require.NotNil(t, c)
		require.NoError(t, a.Close())
	})

	t.Run("remote cache on a memory bucket", func(t *testing.T) {
		c, err := a.buildCache(ctx, config.Cache{
			Backend: "remote",
			Bucket:  &config.Bucket{Backend: "memory", Name: "cache"},
		})
		require.NoError(t, err)
		require.NotNil(t, c)
	})

	t.Run("unknown codec", func(t *testing.T) {
		_, err := a.buildCache(ctx, config.Cache{Backend: "memory", Codec: "xml"})
		require.Error(t, err)
	})

	t.Run("artifacts and metadata", func(t *testing.T) {
		artifacts, err := a.buildArtifacts(ctx, &config.Artifacts{Bucket: &config.Bucket{Backend: "memory", Name: "out"}})
		require.NoError(t, err)
		assert.NotNil(t, artifacts)

		metadata, err := a.buildMetadata(ctx, &config.Metadata{Backend: "memory"})
		require.NoError(t, err)
		assert.NotNil(t, metadata)

		none, err := a.buildArtifacts(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("log observer", func(t *testing.T) {
		obs, err := a.buildObservers(ctx, []*config.Observer{{Type: "log"}})
		require.NoError(t, err)
		assert.Len(t, obs, 1)
	})
}

func TestHealthMux(t *testing.T) {
	a := &App{logger: newLogger(io.Discard, &Config{LogLevel: "error"}, config.Engine{})}
	mux := a.healthMux()

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to info and text", func(t *testing.T) {
		// --- Arrange ---
		var buf bytes.Buffer
		logger := newLogger(&buf, &Config{}, config.Engine{})

		// --- Act ---
		logger.Info("hello")

		// --- Assert ---
		assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("pipeline block sets level and format", func(t *testing.T) {
		// --- Arrange ---
		var buf bytes.Buffer
		logger := newLogger(&buf, &Config{}, config.Engine{LogLevel: "warn", LogFormat: "json"})

		// --- Act ---
		logger.Warn("hello")

		// --- Assert ---
		assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})

	t.Run("process config wins over the pipeline block", func(t *testing.T) {
		// --- Arrange ---
		var buf bytes.Buffer
		logger := newLogger(&buf, &Config{LogLevel: "debug", LogFormat: "text"}, config.Engine{LogLevel: "error", LogFormat: "json"})

		// --- Act ---
		logger.Debug("hello")

		// --- Assert ---
		assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
