package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// CatalogSchemaVersion is the current catalog schema version.
const CatalogSchemaVersion = 1

const catalogSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    num_years INTEGER NOT NULL,
    days_per_year INTEGER NOT NULL,
    points INTEGER NOT NULL,
    shocks INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    initial_conditions TEXT NOT NULL,
    parameters TEXT NOT NULL,
    metrics TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// ErrRunNotFound is returned when the catalog has no run with the given id.
var ErrRunNotFound = errors.New("storage: run not found")

// Catalog indexes saved runs in a SQLite database so they can be listed
// and looked up without scanning run directories.
type Catalog struct {
	db *sql.DB
}

func OpenCatalog(ctx context.Context, dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initCatalogSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initCatalogSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, catalogSchemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		CatalogSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// Record inserts or replaces the catalog row for meta.
func (c *Catalog) Record(ctx context.Context, meta RunMetadata) error {
	ic, err := json.Marshal(meta.Initial)
	if err != nil {
		return err
	}
	params, err := json.Marshal(meta.Params)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, name, created_at, num_years, days_per_year, points, shocks, status, error, initial_conditions, parameters, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Name, meta.Timestamp.UTC().Format(time.RFC3339Nano),
		meta.NumYears, meta.DaysPerYear, meta.Points, meta.Shocks,
		meta.Status, nullString(meta.Error),
		string(ic), string(params), string(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", meta.ID, err)
	}
	return nil
}

// List returns every cataloged run, newest first.
func (c *Catalog) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, created_at, num_years, days_per_year, points, shocks, status, error, initial_conditions, parameters, metrics
		FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	return runs, rows.Err()
}

func (c *Catalog) Get(ctx context.Context, id string) (*RunMetadata, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, num_years, days_per_year, points, shocks, status, error, initial_conditions, parameters, metrics
		FROM runs WHERE id = ?`, id)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return meta, err
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunMetadata, error) {
	var (
		meta                    RunMetadata
		created                 string
		runErr                  sql.NullString
		ic, params, metricsJSON string
	)
	err := s.Scan(&meta.ID, &meta.Name, &created, &meta.NumYears, &meta.DaysPerYear,
		&meta.Points, &meta.Shocks, &meta.Status, &runErr, &ic, &params, &metricsJSON)
	if err != nil {
		return nil, err
	}

	if meta.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("run %s: bad timestamp: %w", meta.ID, err)
	}
	meta.Error = runErr.String
	if err := json.Unmarshal([]byte(ic), &meta.Initial); err != nil {
		return nil, fmt.Errorf("run %s: %w", meta.ID, err)
	}
	if err := json.Unmarshal([]byte(params), &meta.Params); err != nil {
		return nil, fmt.Errorf("run %s: %w", meta.ID, err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &meta.Metrics); err != nil {
		return nil, fmt.Errorf("run %s: %w", meta.ID, err)
	}
	return &meta, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
