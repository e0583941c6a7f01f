// Package store keeps a local SQLite ledger of ingest runs: which file went
// into which alias, how many documents were flushed, and how the run ended.
// The ledger is informational; the cluster stays the source of truth.
package store

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

	"leakctl/internal/ingest"
	"leakctl/internal/textfile"
)

// ErrNotFound is returned when a run ID is not in the ledger.
var ErrNotFound = errors.New("run not found")

// Store persists ingest runs.
type Store interface {
	// StartRun records a new running entry and returns its ID.
	StartRun(ctx context.Context, alias string, f *textfile.File) (string, error)
	// FinishRun stores the outcome of a run. A nil runErr marks it done.
	FinishRun(ctx context.Context, id string, stats *ingest.Stats, runErr error) error
	// Get returns one run by ID.
	Get(ctx context.Context, id string) (Run, error)
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
	// FileTotals sums documents over successful runs per file name.
	FileTotals(ctx context.Context) ([]FileTotal, error)
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema. Missing parent directories are created.
func Open(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, alias string, f *textfile.File) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, path, file_name, alias, encoding, size_bytes, total_lines, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.Path, f.Name, alias, f.Encoding.Name, f.Size, f.TotalLines, StatusRunning, s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, stats *ingest.Stats, runErr error) error {
	status, msg := StatusDone, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	var docs, batches int
	if stats != nil {
		docs, batches = stats.Documents, stats.Batches
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET documents = ?, batches = ?, status = ?, error = ?, finished_at = ? WHERE id = ?`,
		docs, batches, status, msg, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", id, ErrNotFound)
	}
	return nil
}

const runColumns = `id, path, file_name, alias, encoding, size_bytes, total_lines,
	documents, batches, status, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.Path, &r.FileName, &r.Alias, &r.Encoding, &r.SizeBytes, &r.TotalLines,
		&r.Documents, &r.Batches, &r.Status, &r.Error, &r.StartedAt, &finished,
	)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = r.StartedAt.UTC()
	if finished.Valid {
		r.FinishedAt = finished.Time.UTC()
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) FileTotals(ctx context.Context) ([]FileTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, COUNT(*), SUM(documents), MAX(started_at)
		FROM runs
		WHERE status = ?
		GROUP BY file_name
		ORDER BY file_name
	`, StatusDone)
	if err != nil {
		return nil, fmt.Errorf("file totals: %w", err)
	}
	defer rows.Close()

	var totals []FileTotal
	for rows.Next() {
		var (
			t    FileTotal
			last string
		)
		if err := rows.Scan(&t.FileName, &t.Runs, &t.Documents, &last); err != nil {
			return nil, err
		}
		t.LastRun = parseTimestamp(last)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// parseTimestamp reads a DATETIME value that came back through an
// aggregate, where the driver no longer converts it to time.Time.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Recorder adapts the store to ingest.Recorder for runs into alias.
func (s *SQLiteStore) Recorder(alias string) ingest.Recorder {
	return recorder{store: s, alias: alias}
}

type recorder struct {
	store Store
	alias string
}

func (r recorder) RunStarted(ctx context.Context, f *textfile.File) (string, error) {
	return r.store.StartRun(ctx, r.alias, f)
}

func (r recorder) RunFinished(ctx context.Context, runID string, stats *ingest.Stats, runErr error) error {
	return r.store.FinishRun(ctx, runID, stats, runErr)
}
