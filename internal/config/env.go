package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables that override values loaded from files.
const (
	EnvWorkers        = "STEPGRID_WORKERS"
	EnvHealthPort     = "STEPGRID_HEALTHCHECK_PORT"
	EnvCacheBackend   = "STEPGRID_CACHE_BACKEND"
	EnvCachePath      = "STEPGRID_CACHE_PATH"
	EnvCacheTTL       = "STEPGRID_CACHE_TTL"
	EnvMetadataURL    = "STEPGRID_METADATA_URL"
	EnvBucketAccess   = "STEPGRID_BUCKET_ACCESS_KEY"
	EnvBucketSecret   = "STEPGRID_BUCKET_SECRET_KEY"
	EnvInfluxToken    = "STEPGRID_INFLUX_TOKEN"
	EnvCredentialFile = "STEPGRID_GCS_CREDENTIALS_FILE"
)

// ApplyEnv overrides m with any STEPGRID_* variables that are set. Secrets
// are only ever taken from the environment when the file leaves them empty.
func ApplyEnv(m *Model) error {
	var err error
	if m.Engine.Workers, err = envInt(EnvWorkers, m.Engine.Workers); err != nil {
		return err
	}
	if m.Engine.HealthcheckPort, err = envInt(EnvHealthPort, m.Engine.HealthcheckPort); err != nil {
		return err
	}
	m.Cache.Backend = envString(EnvCacheBackend, m.Cache.Backend)
	m.Cache.Path = envString(EnvCachePath, m.Cache.Path)
	if m.Cache.TTL, err = envDuration(EnvCacheTTL, m.Cache.TTL); err != nil {
		return err
	}

	if m.Metadata != nil {
		m.Metadata.URL = envString(EnvMetadataURL, m.Metadata.URL)
	} else if url, ok := os.LookupEnv(EnvMetadataURL); ok {
		m.Metadata = &Metadata{Backend: "postgres", URL: url}
	}

	for _, b := range []*Bucket{m.Cache.Bucket, m.artifactsBucket()} {
		if b == nil {
			continue
		}
		if b.AccessKey == "" {
			b.AccessKey = envString(EnvBucketAccess, "")
		}
		if b.SecretKey == "" {
			b.SecretKey = envString(EnvBucketSecret, "")
		}
		if b.CredentialsFile == "" {
			b.CredentialsFile = envString(EnvCredentialFile, "")
		}
	}
	for _, o := range m.Observers {
		if o.Type == "influx" && o.Token == "" {
			o.Token = envString(EnvInfluxToken, "")
		}
	}
	return nil
}

func (m *Model) artifactsBucket() *Bucket {
	if m.Artifacts == nil {
		return nil
	}
	return m.Artifacts.Bucket
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	if v, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}
