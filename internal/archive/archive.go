// Package archive persists completed run records into Postgres. The
// archive is optional; runs work identically with the no-op
// implementation.
package archive

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunRecord is one completed run: when it ran, over how many entities,
// and what each source produced.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	EntityCount int
	Summaries   map[intel.SourceKind]pipeline.Summary
}

// Archiver stores run records. Implementations are Postgres and no-op.
type Archiver interface {
	StoreRun(ctx context.Context, record RunRecord) error
	Close()
}

// Config controls the Postgres connection pool used for run rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes run rows into Postgres. The runs table carries one row
// per run; the summaries table carries one row per run and source kind.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRun inserts one run row plus a summary row per source kind. A
// record without an ID gets one assigned.
func (s *Store) StoreRun(ctx context.Context, record RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive store is not configured")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	runQuery := fmt.Sprintf(`
INSERT INTO %s (
	id,
	started_at,
	finished_at,
	entity_count
) VALUES (
	$1,$2,$3,$4
)`, s.table)
	if _, err := s.pool.Exec(ctx, runQuery,
		record.ID,
		record.StartedAt,
		record.FinishedAt,
		record.EntityCount,
	); err != nil {
		return fmt.Errorf("insert run row: %w", err)
	}

	summaryQuery := fmt.Sprintf(`
INSERT INTO %s_summaries (
	run_id,
	kind,
	attempted,
	fragments,
	failures
) VALUES (
	$1,$2,$3,$4,$5
)`, s.table)
	for kind, sum := range record.Summaries {
		if _, err := s.pool.Exec(ctx, summaryQuery,
			record.ID,
			string(kind),
			sum.Attempted,
			sum.Fragments,
			sum.Failures,
		); err != nil {
			return fmt.Errorf("insert summary row for %s: %w", kind, err)
		}
	}
	return nil
}

// Noop discards run records.
type Noop struct{}

// StoreRun does nothing.
func (Noop) StoreRun(context.Context, RunRecord) error { return nil }

// Close does nothing.
func (Noop) Close() {}
