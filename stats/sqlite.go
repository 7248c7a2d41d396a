package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSink stores records in the generation_stats table.
type SQLiteSink struct {
	db *sql.DB
}

// RunSummary aggregates the stored records of one run.
type RunSummary struct {
	RunID       string
	Generations int
	Best        float64
	Started     time.Time
	Updated     time.Time
}

// OpenSQLite creates or opens the database at path, creating parent
// directories and the schema as needed.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("stats: cannot create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("stats: cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: cannot connect to database: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS generation_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			best REAL NOT NULL,
			mean REAL NOT NULL,
			stdev REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			UNIQUE (run_id, generation)
		);
		CREATE INDEX IF NOT EXISTS idx_generation_stats_run ON generation_stats(run_id, generation);
	`)
	return err
}

// Append stores r. Writing the same generation of a run again replaces it,
// which happens when a run resumes from a checkpoint.
func (s *SQLiteSink) Append(ctx context.Context, r Record) error {
	at := r.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO generation_stats (run_id, generation, best, mean, stdev, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Generation, r.Best, r.Mean, r.Stdev, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("stats: cannot save generation %d: %w", r.Generation, err)
	}
	return nil
}

// Records returns the records of a run in generation order.
func (s *SQLiteSink) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, generation, best, mean, stdev, recorded_at
		 FROM generation_stats
		 WHERE run_id = ?
		 ORDER BY generation`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: cannot query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var at string
		if err := rows.Scan(&r.RunID, &r.Generation, &r.Best, &r.Mean, &r.Stdev, &at); err != nil {
			return nil, fmt.Errorf("stats: cannot scan row: %w", err)
		}
		r.RecordedAt = parseTime(at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: row iteration error: %w", err)
	}
	return out, nil
}

// Runs lists every stored run, most recently updated first.
func (s *SQLiteSink) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, COUNT(*), MAX(best), MIN(recorded_at), MAX(recorded_at)
		 FROM generation_stats
		 GROUP BY run_id
		 ORDER BY MAX(recorded_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: cannot query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, updated string
		if err := rows.Scan(&r.RunID, &r.Generations, &r.Best, &started, &updated); err != nil {
			return nil, fmt.Errorf("stats: cannot scan row: %w", err)
		}
		r.Started, r.Updated = parseTime(started), parseTime(updated)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: row iteration error: %w", err)
	}
	return out, nil
}

func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
