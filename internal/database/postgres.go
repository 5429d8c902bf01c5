package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool for run history.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	RunsTable       string        `mapstructure:"runs_table" yaml:"runs_table"`
	PagesTable      string        `mapstructure:"pages_table" yaml:"pages_table"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres writes run history rows into Postgres.
type Postgres struct {
	pool       execCloser
	runsTable  string
	pagesTable string
}

// NewPostgres creates a Postgres-backed run history store.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
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
	return newPostgresWithPool(pool, cfg.RunsTable, cfg.PagesTable)
}

// NewPostgresWithPool constructs a store from an existing pool (primarily
// for testing).
func NewPostgresWithPool(pool execCloser, runsTable, pagesTable string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newPostgresWithPool(pool, runsTable, pagesTable)
}

func newPostgresWithPool(pool execCloser, runsTable, pagesTable string) (*Postgres, error) {
	if runsTable == "" {
		runsTable = "generation_runs"
	}
	if pagesTable == "" {
		pagesTable = "generation_pages"
	}
	for _, table := range []string{runsTable, pagesTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Postgres{pool: pool, runsTable: runsTable, pagesTable: pagesTable}, nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

// RecordRun inserts one run row. The summary is stored as JSONB.
func (p *Postgres) RecordRun(ctx context.Context, run descriptor.RunRecord) error {
	if p == nil || p.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source,
	submitted_at,
	finished_at,
	summary,
	artifact_uri
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, p.runsTable)

	if _, err := p.pool.Exec(ctx, query,
		run.ID,
		run.Source,
		run.Submitted,
		run.Finished,
		summaryJSON,
		run.ArtifactURI,
	); err != nil {
		return fmt.Errorf("insert run row: %w", err)
	}
	return nil
}

// RecordPages inserts the per-page outcome rows for a run.
func (p *Postgres) RecordPages(ctx context.Context, pages []descriptor.PageOutcome) error {
	if p == nil || p.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	status,
	error_reason,
	category,
	description_source,
	rendered,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, p.pagesTable)

	for _, page := range pages {
		if page.RunID == "" {
			return fmt.Errorf("page outcome for %q has no run id", page.URL)
		}
		if _, err := p.pool.Exec(ctx, query,
			page.RunID,
			page.URL,
			string(page.Status),
			page.ErrorReason,
			page.Category,
			page.DescriptionSource,
			page.Rendered,
			page.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert page row for %s: %w", page.URL, err)
		}
	}
	return nil
}
