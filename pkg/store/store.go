// Package store defines the durable record of jobs: metadata, status,
// and checkpoint. Implementations hold no business logic; the job state
// machine is enforced on every status update through ApplyTransition.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rowforge/rowforge/pkg/job"
)

// Common errors returned by store operations.
var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrLocked is returned when another process already owns the store's
	// data directory.
	ErrLocked = errors.New("store is locked by another process")

	// ErrAlreadyExists is returned when creating a job whose id is taken.
	ErrAlreadyExists = errors.New("job already exists")
)

// Filter narrows List results.
type Filter struct {
	// Status keeps only jobs in the given state when non-empty.
	Status job.Status
	// Limit caps the number of returned jobs when positive.
	Limit int
}

// Store is the single source of truth for job records. All writes are
// atomic with respect to a single job: a reader never observes a partial
// update. Implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new pending job and assigns its FIFO sequence.
	Create(ctx context.Context, j *job.Job) error

	// Get returns a snapshot of the job, or job.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// UpdateStatus transitions the job to next, applying any options
	// atomically with the status change. It fails with job.ErrNotFound
	// for unknown ids and job.ErrInvalidTransition when next is
	// unreachable from the current state.
	UpdateStatus(ctx context.Context, id uuid.UUID, next job.Status, opts ...UpdateOption) error

	// ListByStatus returns all jobs in the given state, oldest first.
	ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error)

	// List returns jobs matching the filter, oldest first.
	List(ctx context.Context, f Filter) ([]*job.Job, error)

	Close() error
}

// Update carries the optional mutations applied together with a status
// transition.
type Update struct {
	Checkpoint   *int
	FailedRows   *int
	ErrorSummary *string
	ClearError   bool
}

// UpdateOption mutates an Update.
type UpdateOption func(*Update)

// WithCheckpoint advances the job's checkpoint. The checkpoint never
// moves backwards; stores reject regressions.
func WithCheckpoint(n int) UpdateOption {
	return func(u *Update) { u.Checkpoint = &n }
}

// WithFailedRows records the running count of permanently failed rows.
func WithFailedRows(n int) UpdateOption {
	return func(u *Update) { u.FailedRows = &n }
}

// WithErrorSummary records the job's last fatal error.
func WithErrorSummary(s string) UpdateOption {
	return func(u *Update) { u.ErrorSummary = &s }
}

// ClearError clears the error summary, used when a retry re-enters
// running.
func ClearError() UpdateOption {
	return func(u *Update) { u.ClearError = true }
}

// BuildUpdate folds options into an Update.
func BuildUpdate(opts []UpdateOption) Update {
	var u Update
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// ApplyTransition validates and applies a status transition plus its
// accompanying update to j in place. It is the shared enforcement point
// for every Store implementation, keeping the semantics identical across
// backends:
//
//   - the move must be a legal state-machine walk
//   - started_at is set exactly once, on the first entry into running
//   - completed_at is set exactly once, on entry into a terminal state
//   - attempts counts entries into running
//   - the checkpoint is monotonically non-decreasing and never exceeds
//     the job's row count
func ApplyTransition(j *job.Job, next job.Status, u Update) error {
	// Re-asserting the current status is always legal: checkpoint
	// flushes update a running job without changing its state.
	if next != j.Status && !j.Status.CanTransition(next) {
		return &job.InvalidTransitionError{ID: j.ID, From: j.Status, To: next}
	}

	if u.Checkpoint != nil {
		cp := *u.Checkpoint
		if cp < j.Checkpoint || cp > j.Source.RowCount {
			return fmt.Errorf("job %s: checkpoint %d out of range [%d, %d]",
				j.ID, cp, j.Checkpoint, j.Source.RowCount)
		}
		j.Checkpoint = cp
	}
	if u.FailedRows != nil {
		j.FailedRows = *u.FailedRows
	}
	if u.ClearError {
		j.ErrorSummary = ""
	}
	if u.ErrorSummary != nil {
		j.ErrorSummary = *u.ErrorSummary
	}

	now := time.Now().UTC()
	if next == job.StatusRunning && j.Status != job.StatusRunning {
		j.Attempts++
		if j.StartedAt.IsZero() {
			j.StartedAt = now
		}
	}
	if next.Terminal() && j.CompletedAt.IsZero() {
		j.CompletedAt = now
	}

	j.Status = next
	return nil
}

// Config selects and configures a store backend.
type Config struct {
	// Driver is the registered backend name: "sqlite" or "memory".
	Driver string
	// Path is the data directory for file-backed drivers.
	Path string
}

// Factory creates a Store from its configuration.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a backend factory under the given driver name.
// Backends register themselves from their package init, so importing a
// backend package is what makes its driver available.
func Register(driver string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[driver]; dup {
		panic(fmt.Sprintf("store: duplicate driver registration %q", driver))
	}
	factories[driver] = f
}

// Open creates a store using the registered factory for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	factoryMu.RLock()
	f, ok := factories[cfg.Driver]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q (is the backend package imported?)", cfg.Driver)
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open %s backend: %w", cfg.Driver, err)
	}
	return s, nil
}
