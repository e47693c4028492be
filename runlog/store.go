package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Run is one execution of a station protocol.
type Run struct {
	ID       uuid.UUID
	Station  string
	Samples  int
	Started  time.Time
	Finished time.Time
	Err      string
}

// NewRun starts a run record with a fresh ID.
func NewRun(station string, samples int, started time.Time) Run {
	return Run{ID: uuid.New(), Station: station, Samples: samples, Started: started}
}

// Store keeps run history in SQLite.
type Store struct {
	db *sql.DB
}

var ErrNotFound = errors.New("run not found")

var schema = []string{`CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	station TEXT NOT NULL,
	samples INTEGER NOT NULL,
	started TEXT NOT NULL,
	finished TEXT NOT NULL,
	error TEXT NOT NULL
)`, `CREATE TABLE IF NOT EXISTS steps (
	run_id TEXT NOT NULL REFERENCES runs(id),
	step INTEGER NOT NULL,
	description TEXT NOT NULL,
	execute INTEGER NOT NULL,
	wait_ns INTEGER NOT NULL,
	started TEXT NOT NULL,
	elapsed_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, step)
)`}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "rnaprep.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// SaveRun stores a run and its step results, replacing any earlier copy.
func (s *Store) SaveRun(ctx context.Context, run Run, results []protocol.Result) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	id := run.ID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs (id, station, samples, started, finished, error) VALUES (?, ?, ?, ?, ?, ?)`,
		id, run.Station, run.Samples, formatTime(run.Started), formatTime(run.Finished), run.Err)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, r := range results {
		_, err = tx.ExecContext(ctx, `INSERT INTO steps (run_id, step, description, execute, wait_ns, started, elapsed_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, r.ID, r.Description, r.Execute, int64(r.Wait), formatTime(r.Started), int64(r.Elapsed))
		if err != nil {
			return fmt.Errorf("insert step %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, station, samples, started, finished, error FROM runs ORDER BY started DESC`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res []Run
	for rows.Next() {
		var (
			r                 Run
			id                string
			started, finished string
		)
		if err := rows.Scan(&id, &r.Station, &r.Samples, &started, &finished, &r.Err); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		if r.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.Finished, err = parseTime(finished); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Steps returns the time log of a run.
func (s *Store) Steps(ctx context.Context, id uuid.UUID) ([]protocol.Result, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT step, description, execute, wait_ns, started, elapsed_ns FROM steps WHERE run_id = ? ORDER BY step`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res []protocol.Result
	for rows.Next() {
		var (
			r             protocol.Result
			started       string
			wait, elapsed int64
		)
		if err := rows.Scan(&r.ID, &r.Description, &r.Execute, &wait, &started, &elapsed); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Wait, r.Elapsed = time.Duration(wait), time.Duration(elapsed)
		if r.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
