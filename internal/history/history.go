// Package history keeps a SQLite catalog of benchmark runs and their rows so
// earlier results can be listed and exported again after the CSV is replaced.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// startedAtLayout is fixed width so that text order in SQLite is time order
const startedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the catalog
var ErrRunNotFound = errors.New("run not found")

// Run describes one benchmark invocation
type Run struct {
	ID              string        `json:"id"`
	Kind            string        `json:"kind"` // discovered or grid
	StartedAt       time.Time     `json:"started_at"`
	Elapsed         time.Duration `json:"elapsed"`
	Database        string        `json:"database"` // host:port/name
	Table           string        `json:"table"`
	Runs            int           `json:"runs"`
	SampleRows      int           `json:"sample_rows"`
	Pairs           int           `json:"pairs"`
	Rows            int           `json:"rows"`
	NullMedians     int           `json:"null_medians"`
	AbsorbedSamples int           `json:"absorbed_samples"`
	Output          string        `json:"output"` // where the CSV was written
}

// Store handles run persistence
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the catalog at path. ":memory:" is accepted.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connections for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		database TEXT NOT NULL,
		fixture_table TEXT NOT NULL,
		runs INTEGER NOT NULL,
		sample_rows INTEGER NOT NULL,
		pairs INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		null_medians INTEGER NOT NULL,
		absorbed_samples INTEGER NOT NULL,
		output TEXT
	);

	CREATE TABLE IF NOT EXISTS measurements (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		size_index INTEGER NOT NULL,
		bytes_raw INTEGER,
		bytes_stored INTEGER,
		level INTEGER NOT NULL,
		operator TEXT NOT NULL,
		execution_time_ms_median REAL,
		runs INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run and its rows in one transaction. An empty run.ID is
// filled with a new UUID; the ID is returned.
func (s *Store) Record(ctx context.Context, run *Run, rows []models.Measurement) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Rows = len(rows)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (
		id, kind, started_at, elapsed_ms, database, fixture_table, runs,
		sample_rows, pairs, row_count, null_medians, absorbed_samples, output
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt.UTC().Format(startedAtLayout), run.Elapsed.Milliseconds(),
		run.Database, run.Table, run.Runs, run.SampleRows, run.Pairs, run.Rows,
		run.NullMedians, run.AbsorbedSamples, run.Output,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO measurements (
		run_id, seq, size_index, bytes_raw, bytes_stored, level, operator,
		execution_time_ms_median, runs
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range rows {
		_, err := stmt.ExecContext(ctx,
			run.ID, i, m.SizeIndex, nullInt(m.BytesRaw), nullInt(m.BytesStored),
			m.Level, m.Operator, nullFloat(m.MedianMs), m.Runs,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert measurement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug().
		Str("run_id", run.ID).
		Int("rows", len(rows)).
		Msg("Recorded run")

	return run.ID, nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, kind, started_at, elapsed_ms, database, fixture_table, runs,
		sample_rows, pairs, row_count, null_medians, absorbed_samples, output
	FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
			elapsedMs int64
			output    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Kind, &startedAt, &elapsedMs, &r.Database, &r.Table,
			&r.Runs, &r.SampleRows, &r.Pairs, &r.Rows, &r.NullMedians, &r.AbsorbedSamples, &output); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(startedAtLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid started_at for run %s: %w", r.ID, err)
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		r.Output = output.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Measurements returns the rows of a run in recorded order
func (s *Store) Measurements(ctx context.Context, runID string) ([]models.Measurement, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT size_index, bytes_raw, bytes_stored, level, operator, execution_time_ms_median, runs
	FROM measurements WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	out := []models.Measurement{}
	for rows.Next() {
		var (
			m           models.Measurement
			raw, stored sql.NullInt64
			median      sql.NullFloat64
		)
		if err := rows.Scan(&m.SizeIndex, &raw, &stored, &m.Level, &m.Operator, &median, &m.Runs); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if raw.Valid {
			m.BytesRaw = models.Int64(raw.Int64)
		}
		if stored.Valid {
			m.BytesStored = models.Int64(stored.Int64)
		}
		if median.Valid {
			m.MedianMs = models.Float64(median.Float64)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}

	return out, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
