package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by job stores and control operations.
var (
	// ErrNotFound is returned when the referenced job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a control operation or status
	// update is illegal in the job's current state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidSource is returned when a submission carries a
	// structurally invalid source descriptor.
	ErrInvalidSource = errors.New("invalid source descriptor")
)

// NotFoundError wraps ErrNotFound with the missing job's id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError wraps ErrInvalidTransition with context about the
// attempted walk.
type InvalidTransitionError struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot transition %s -> %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InvalidSourceError wraps ErrInvalidSource with the offending field.
type InvalidSourceError struct {
	Field  string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source descriptor: %s %s", e.Field, e.Reason)
}

func (e *InvalidSourceError) Unwrap() error { return ErrInvalidSource }

// IsNotFound reports whether err indicates a missing job.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidTransition reports whether err indicates an illegal state walk.
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsInvalidSource reports whether err indicates a malformed submission.
func IsInvalidSource(err error) bool { return errors.Is(err, ErrInvalidSource) }

// RowErrorKind classifies a row-level failure.
type RowErrorKind int

const (
	// RowErrorTransient marks failures worth retrying in place: network
	// errors, timeouts, provider throttling.
	RowErrorTransient RowErrorKind = iota
	// RowErrorPermanent marks failures that retrying cannot fix, such as
	// malformed input. They count against the job's failure budget
	// immediately.
	RowErrorPermanent
)

func (k RowErrorKind) String() string {
	if k == RowErrorPermanent {
		return "permanent"
	}
	return "transient"
}

// RowError is a classified failure for a single row. It is ephemeral: the
// engine aggregates row errors into counts and a summary, never persisting
// them individually.
type RowError struct {
	Row  int
	Kind RowErrorKind
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s error: %v", e.Row, e.Kind, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// TransientRowError classifies a row failure as retryable in place.
func TransientRowError(row int, err error) *RowError {
	return &RowError{Row: row, Kind: RowErrorTransient, Err: err}
}

// PermanentRowError classifies a row failure as counting immediately
// against the job's failure budget.
func PermanentRowError(row int, err error) *RowError {
	return &RowError{Row: row, Kind: RowErrorPermanent, Err: err}
}

// ClassifyRowError normalizes an arbitrary processing error for row.
// Explicit RowError classifications pass through; deadline expiry and
// anything unclassified is treated as transient, since provider hiccups
// are the common failure mode.
func ClassifyRowError(row int, err error) *RowError {
	var re *RowError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientRowError(row, fmt.Errorf("row processing timed out: %w", err))
	}
	return TransientRowError(row, err)
}
