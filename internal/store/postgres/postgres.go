// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regjobs/scraper/internal/jobs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querierCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists job records in Postgres.
type Store struct {
	pool  querierCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "job_postings"
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

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querierCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "job_postings"
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

// Get implements jobs.Store.
func (s *Store) Get(ctx context.Context, id string) (jobs.Record, error) {
	if s == nil || s.pool == nil {
		return jobs.Record{}, fmt.Errorf("store is not configured")
	}
	query := fmt.Sprintf(`
SELECT
	id,
	job_title,
	company_name,
	city,
	years_experience,
	published_at,
	link,
	source,
	description,
	salary_range,
	created_at,
	updated_at
FROM %s WHERE id = $1`, s.table)

	var record jobs.Record
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.JobTitle,
		&record.CompanyName,
		&record.City,
		&record.YearsExperience,
		&record.PublishedAt,
		&record.Link,
		&record.Source,
		&record.Description,
		&record.SalaryRange,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.Record{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.Record{}, fmt.Errorf("select record: %w", err)
	}
	return record, nil
}

// BatchUpsert implements jobs.Store. Each record is upserted on its id;
// the conflict clause deliberately leaves created_at alone so updates
// keep the original insertion time. Per-record failures land in the
// result slice instead of aborting the batch.
func (s *Store) BatchUpsert(ctx context.Context, records []jobs.Record) ([]jobs.UpsertResult, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	job_title,
	company_name,
	city,
	years_experience,
	published_at,
	link,
	source,
	description,
	salary_range,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (id) DO UPDATE SET
	job_title = EXCLUDED.job_title,
	company_name = EXCLUDED.company_name,
	city = EXCLUDED.city,
	years_experience = EXCLUDED.years_experience,
	published_at = EXCLUDED.published_at,
	link = EXCLUDED.link,
	source = EXCLUDED.source,
	description = EXCLUDED.description,
	salary_range = EXCLUDED.salary_range,
	updated_at = EXCLUDED.updated_at`, s.table)

	results := make([]jobs.UpsertResult, len(records))
	for i, record := range records {
		results[i] = jobs.UpsertResult{ID: record.ID}
		if record.ID == "" {
			results[i].Err = fmt.Errorf("record id is required")
			continue
		}
		args := []any{
			record.ID,
			record.JobTitle,
			record.CompanyName,
			record.City,
			record.YearsExperience,
			record.PublishedAt,
			record.Link,
			record.Source,
			record.Description,
			record.SalaryRange,
			record.CreatedAt,
			record.UpdatedAt,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			results[i].Err = fmt.Errorf("upsert record: %w", err)
		}
	}
	return results, nil
}
