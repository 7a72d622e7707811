package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("default model is valid", func(t *testing.T) {
		require.NoError(t, Validate(Default()))
	})

	testCases := []struct {
		name    string
		mutate  func(m *Model)
		wantErr string
	}{
		{
			name:    "unknown cache backend",
			mutate:  func(m *Model) { m.Cache.Backend = "redis" },
			wantErr: "Cache.Backend must be one of [memory badger remote none], got 'redis'",
		},
		{
			name:    "unknown log level",
			mutate:  func(m *Model) { m.Engine.LogLevel = "loud" },
			wantErr: "Engine.LogLevel must be one of [debug info warn error], got 'loud'",
		},
		{
			name:    "badger needs a path",
			mutate:  func(m *Model) { m.Cache.Backend = "badger" },
			wantErr: "Cache.Path is required",
		},
		{
			name:    "remote cache needs a bucket",
			mutate:  func(m *Model) { m.Cache.Backend = "remote" },
			wantErr: "Cache.Bucket is required",
		},
		{
			name: "minio bucket needs an endpoint",
			mutate: func(m *Model) {
				m.Artifacts = &Artifacts{Bucket: &Bucket{Backend: "minio", Name: "artifacts"}}
			},
			wantErr: "Artifacts.Bucket.Endpoint is required",
		},
		{
			name: "step without handler",
			mutate: func(m *Model) {
				m.Steps = append(m.Steps, &Step{Name: "load"})
			},
			wantErr: "Steps[0].Uses is required",
		},
		{
			name: "duplicate step names",
			mutate: func(m *Model) {
				m.Steps = append(m.Steps, &Step{Name: "a", Uses: "print"}, &Step{Name: "a", Uses: "print"})
			},
			wantErr: "step 'a' is declared more than once",
		},
		{
			name: "retry needs at least one attempt",
			mutate: func(m *Model) {
				m.Steps = append(m.Steps, &Step{Name: "a", Uses: "print", Retry: &Retry{}})
			},
			wantErr: "Steps[0].Retry.Attempts failed the 'gte' check",
		},
		{
			name: "influx observer needs org and bucket",
			mutate: func(m *Model) {
				m.Observers = append(m.Observers, &Observer{Type: "influx", URL: "http://influx:8086"})
			},
			wantErr: "Observers[0].Org is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Default()
			tc.mutate(m)
			err := Validate(m)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("in-memory badger needs no path", func(t *testing.T) {
		m := Default()
		m.Cache.Backend = "badger"
		m.Cache.InMemory = true
		assert.NoError(t, Validate(m))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides and secrets", func(t *testing.T) {
		t.Setenv(EnvWorkers, "8")
		t.Setenv(EnvCacheBackend, "badger")
		t.Setenv(EnvCachePath, "/var/cache/stepgrid")
		t.Setenv(EnvCacheTTL, "1h")
		t.Setenv(EnvMetadataURL, "postgres://localhost/stepgrid")
		t.Setenv(EnvBucketSecret, "s3cr3t")
		t.Setenv(EnvInfluxToken, "tok")

		m := Default()
		m.Artifacts = &Artifacts{Bucket: &Bucket{Backend: "minio", Name: "a", SecretKey: "from-file"}}
		m.Cache.Bucket = &Bucket{Backend: "minio", Name: "c"}
		m.Observers = []*Observer{{Type: "influx"}}

		require.NoError(t, ApplyEnv(m))
		assert.Equal(t, 8, m.Engine.Workers)
		assert.Equal(t, "badger", m.Cache.Backend)
		assert.Equal(t, "/var/cache/stepgrid", m.Cache.Path)
		assert.Equal(t, time.Hour, m.Cache.TTL)
		require.NotNil(t, m.Metadata)
		assert.Equal(t, "postgres", m.Metadata.Backend)
		assert.Equal(t, "from-file", m.Artifacts.Bucket.SecretKey)
		assert.Equal(t, "s3cr3t", m.Cache.Bucket.SecretKey)
		assert.Equal(t, "tok", m.Observers[0].Token)
	})

	t.Run("malformed number", func(t *testing.T) {
		t.Setenv(EnvWorkers, "many")
		err := ApplyEnv(Default())
		assert.ErrorContains(t, err, "parse STEPGRID_WORKERS")
	})
}
