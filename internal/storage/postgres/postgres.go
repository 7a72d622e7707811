// Package postgres records finalized runs in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/specialistvlad/stepgrid/internal/storage"
)

// Config holds connection settings.
type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("database url is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("max open conns must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max idle conns must be between 0 and max open conns")
	}
	return nil
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// DB is the subset of *sql.DB the store needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	schema = `CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id      TEXT PRIMARY KEY,
		pipeline    TEXT NOT NULL,
		success     BOOLEAN NOT NULL,
		cancelled   BOOLEAN NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		params      JSONB NOT NULL DEFAULT '{}',
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS step_results (
		step_result_id UUID PRIMARY KEY,
		run_id         TEXT NOT NULL REFERENCES pipeline_runs(run_id),
		step_name      TEXT NOT NULL,
		status         TEXT NOT NULL,
		source         TEXT NOT NULL,
		attempts       INTEGER NOT NULL,
		duration_ms    BIGINT NOT NULL,
		error          TEXT NOT NULL DEFAULT '',
		artifacts      JSONB NOT NULL DEFAULT '{}',
		UNIQUE (run_id, step_name)
	)`

	insertRunQuery = `INSERT INTO pipeline_runs (
		run_id, pipeline, success, cancelled, error, params, started_at, finished_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (run_id) DO NOTHING`

	insertStepQuery = `INSERT INTO step_results (
		step_result_id, run_id, step_name, status, source, attempts, duration_ms, error, artifacts
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (run_id, step_name) DO NOTHING`
)

// RunStore implements storage.MetadataStore.
type RunStore struct {
	db DB
}

var _ storage.MetadataStore = (*RunStore)(nil)

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

// EnsureSchema creates the tables when they do not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteRun inserts the run and its step rows. Writing the same run twice
// is a no-op.
func (s *RunStore) WriteRun(ctx context.Context, run storage.RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	runID := strings.TrimSpace(run.ID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	params, err := encodeJSON(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, insertRunQuery,
		runID,
		run.Pipeline,
		run.Success,
		run.Cancelled,
		run.Error,
		params,
		normalizeTime(run.StartedAt),
		normalizeTime(run.FinishedAt),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	for _, st := range run.Steps {
		artifacts, err := encodeJSON(st.Artifacts)
		if err != nil {
			return fmt.Errorf("encode artifacts for %s: %w", st.Name, err)
		}
		if _, err := s.db.ExecContext(ctx, insertStepQuery,
			uuid.NewString(),
			runID,
			st.Name,
			st.Status,
			st.Source,
			st.Attempts,
			st.Duration.Milliseconds(),
			st.Error,
			artifacts,
		); err != nil {
			return fmt.Errorf("insert step %s of run %s: %w", st.Name, runID, err)
		}
	}
	return nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func encodeJSON[M ~map[string]V, V any](m M) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
