// Package history persists per-run impact summaries in sqlite so repeated
// scans of the same codebase can be compared across a migration effort.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run is one completed aggregate-and-scan pass reduced to its summary
// numbers. The full report is written to the output files, not the database.
type Run struct {
	RunID              string
	Middleware         string
	Timestamp          time.Time
	Root               string
	FromVersion        string
	ToVersion          string
	TotalChanges       int
	ChangesWithMatches int
	AffectedFiles      int
	TotalMatches       int
	TruncatedScans     int
	InvalidPatterns    int
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.RunID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO runs (
  run_id, middleware, ts_utc, root, from_version, to_version,
  total_changes, changes_with_matches, affected_files, total_matches,
  truncated_scans, invalid_patterns
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  middleware=excluded.middleware,
  ts_utc=excluded.ts_utc,
  root=excluded.root,
  from_version=excluded.from_version,
  to_version=excluded.to_version,
  total_changes=excluded.total_changes,
  changes_with_matches=excluded.changes_with_matches,
  affected_files=excluded.affected_files,
  total_matches=excluded.total_matches,
  truncated_scans=excluded.truncated_scans,
  invalid_patterns=excluded.invalid_patterns
`
	return s.withRetry("save run", func() error {
		_, err := s.db.Exec(
			query,
			run.RunID,
			run.Middleware,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Root,
			run.FromVersion,
			run.ToVersion,
			run.TotalChanges,
			run.ChangesWithMatches,
			run.AffectedFiles,
			run.TotalMatches,
			run.TruncatedScans,
			run.InvalidPatterns,
		)
		return err
	})
}

func (s *Store) LoadRuns(middleware string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := `
SELECT
  run_id, middleware, ts_utc, root, from_version, to_version,
  total_changes, changes_with_matches, affected_files, total_matches,
  truncated_scans, invalid_patterns
FROM runs
WHERE middleware = ?
`
	args := make([]any, 0, 2)
	args = append(args, middleware)
	if !since.IsZero() {
		base += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	base += " ORDER BY ts_utc ASC, run_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			tsRaw string
			run   Run
		)
		if err := rows.Scan(
			&run.RunID,
			&run.Middleware,
			&tsRaw,
			&run.Root,
			&run.FromVersion,
			&run.ToVersion,
			&run.TotalChanges,
			&run.ChangesWithMatches,
			&run.AffectedFiles,
			&run.TotalMatches,
			&run.TruncatedScans,
			&run.InvalidPatterns,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
