// Package catalog indexes persisted runs in a SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/spectra-core/internal/catalog/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when a run id is recorded twice
var ErrDuplicate = errors.New("run already recorded")

// ErrNotFound is returned by Get for an unknown run id
var ErrNotFound = errors.New("run not found")

// Entry is one catalogued run
type Entry struct {
	RunID        string
	Stamp        string
	Reflectances string
	Parameters   string
	Format       string
	Simulations  int
	Wavelengths  []float64
	Seed         int64
	FailedCells  int
	Elapsed      time.Duration
	CreatedAt    time.Time
}

// Catalog persists run entries in SQLite
type Catalog struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the catalog database at path and applies
// the embedded migrations.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	// modernc applies each _pragma on every new connection
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Catalog{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (c *Catalog) Close() error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

// Record inserts one run entry
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	wl, err := json.Marshal(e.Wavelengths)
	if err != nil {
		return fmt.Errorf("encode wavelengths: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = c.sqlDB.ExecContext(ctx,
		`INSERT INTO runs (
		   run_id, stamp, reflectances_path, parameters_path, format,
		   simulations, wavelengths, seed, failed_cells, elapsed_ms, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Stamp, e.Reflectances, e.Parameters, e.Format,
		e.Simulations, string(wl), e.Seed, e.FailedCells,
		e.Elapsed.Milliseconds(), created.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.RunID)
		}
		return fmt.Errorf("insert run %s: %w", e.RunID, err)
	}
	return nil
}

const selectColumns = `SELECT run_id, stamp, reflectances_path, parameters_path, format,
       simulations, wavelengths, seed, failed_cells, elapsed_ms, created_at
  FROM runs`

// Get returns the entry of one run
func (c *Catalog) Get(ctx context.Context, runID string) (Entry, error) {
	row := c.sqlDB.QueryRowContext(ctx, selectColumns+` WHERE run_id = ?`, runID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return e, err
}

// List returns the most recent entries first; limit <= 0 returns all
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	query := selectColumns + ` ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e         Entry
		wl        string
		elapsedMs int64
		createdMs int64
	)
	if err := s.Scan(&e.RunID, &e.Stamp, &e.Reflectances, &e.Parameters, &e.Format,
		&e.Simulations, &wl, &e.Seed, &e.FailedCells, &elapsedMs, &createdMs); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(wl), &e.Wavelengths); err != nil {
		return Entry{}, fmt.Errorf("decode wavelengths of %s: %w", e.RunID, err)
	}
	e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	e.CreatedAt = time.UnixMilli(createdMs).UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
