// Package sqlite provides the durable Store backend. Job records survive
// process restarts, which is what makes startup recovery of orphaned
// running jobs possible.
//
// The backend uses the cgo-free modernc.org/sqlite driver with WAL mode
// and a single write connection. A file lock on the data directory keeps
// a second engine process from double-owning the same jobs; the second
// process fails fast with ErrLocked instead.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/store"
)

const dbFileName = "jobs.db"

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg.Path)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	created_seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	sheet_id      TEXT NOT NULL,
	sheet_name    TEXT NOT NULL,
	start_row     INTEGER NOT NULL,
	row_count     INTEGER NOT NULL,
	case_type     TEXT NOT NULL,
	status        TEXT NOT NULL,
	checkpoint    INTEGER NOT NULL DEFAULT 0,
	priority      INTEGER NOT NULL DEFAULT 0,
	failed_rows   INTEGER NOT NULL DEFAULT 0,
	attempts      INTEGER NOT NULL DEFAULT 0,
	error_summary TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	started_at    INTEGER,
	completed_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
`

// Store is the SQLite-backed job store.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates (if needed) and opens the job database under dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("sqlite store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, dbFileName+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", store.ErrLocked, dir)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		filepath.Join(dir, dbFileName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes all writes; WAL keeps readers cheap.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, lock: lock}, nil
}

func (s *Store) Create(ctx context.Context, j *job.Job) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, sheet_id, sheet_name, start_row, row_count, case_type,
			status, checkpoint, priority, failed_rows, attempts, error_summary,
			created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.Source.SheetID, j.Source.SheetName, j.Source.StartRow,
		j.Source.RowCount, string(j.Case), string(j.Status), j.Checkpoint,
		j.Priority, j.FailedRows, j.Attempts, j.ErrorSummary,
		j.CreatedAt.UnixNano(), nullTime(j.StartedAt), nullTime(j.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrAlreadyExists, j.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read job sequence: %w", err)
	}
	j.Seq = seq
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM jobs WHERE id = ?`, id.String())
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &job.NotFoundError{ID: id}
	}
	return j, err
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, next job.Status, opts ...store.UpdateOption) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectCols+` FROM jobs WHERE id = ?`, id.String())
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &job.NotFoundError{ID: id}
	}
	if err != nil {
		return err
	}

	if err := store.ApplyTransition(j, next, store.BuildUpdate(opts)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, checkpoint = ?, failed_rows = ?, attempts = ?,
			error_summary = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		string(j.Status), j.Checkpoint, j.FailedRows, j.Attempts, j.ErrorSummary,
		nullTime(j.StartedAt), nullTime(j.CompletedAt), id.String()); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	return s.List(ctx, store.Filter{Status: status})
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]*job.Job, error) {
	q := selectCols + ` FROM jobs`
	args := []any{}
	if f.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY created_seq`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

const selectCols = `SELECT created_seq, id, sheet_id, sheet_name, start_row, row_count,
	case_type, status, checkpoint, priority, failed_rows, attempts, error_summary,
	created_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*job.Job, error) {
	var (
		j                    job.Job
		rawID, rawCase, rawStatus string
		createdAt            int64
		startedAt, completedAt sql.NullInt64
	)
	err := r.Scan(&j.Seq, &rawID, &j.Source.SheetID, &j.Source.SheetName,
		&j.Source.StartRow, &j.Source.RowCount, &rawCase, &rawStatus,
		&j.Checkpoint, &j.Priority, &j.FailedRows, &j.Attempts, &j.ErrorSummary,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	j.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt job id %q: %w", rawID, err)
	}
	j.Case = job.CaseType(rawCase)
	j.Status = job.Status(rawStatus)
	j.CreatedAt = time.Unix(0, createdAt).UTC()
	if startedAt.Valid {
		j.StartedAt = time.Unix(0, startedAt.Int64).UTC()
	}
	if completedAt.Valid {
		j.CompletedAt = time.Unix(0, completedAt.Int64).UTC()
	}
	return &j, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// matching on it avoids importing driver internals.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
