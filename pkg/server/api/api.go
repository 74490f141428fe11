package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rowforge/rowforge/pkg/engine"
	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/store"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Jobs is the job control surface backing every endpoint.
	Jobs JobService

	// Config holds API-level settings such as handler timeouts.
	Config Config

	// Ready flag for readiness check
	Ready *atomic.Bool
}

// JobService is the subset of engine manager methods needed by the API.
// Defined here to avoid circular dependencies and ease mocking.
type JobService interface {
	Submit(ctx context.Context, src job.SourceDescriptor, ct job.CaseType, priority int) (uuid.UUID, error)
	Pause(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID) error
	GetStatus(ctx context.Context, id uuid.UUID) (job.View, error)
	ListJobs(ctx context.Context, f store.Filter) ([]job.View, error)
	Stats(ctx context.Context) (engine.Stats, error)
}

// JobResponse is the wire representation of one job.
type JobResponse struct {
	ID           string           `json:"id"`
	Source       job.SourceDescriptor `json:"source"`
	Case         string           `json:"case_type"`
	Status       string           `json:"status"`
	Priority     int              `json:"priority"`
	Attempts     int              `json:"attempts"`
	ErrorSummary string           `json:"error_summary,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Progress     engine.Progress  `json:"progress"`
}

// NewJobResponse converts a job snapshot into its wire form, deriving
// progress at the given observation time.
func NewJobResponse(v job.View, now time.Time) JobResponse {
	resp := JobResponse{
		ID:           v.ID.String(),
		Source:       v.Source,
		Case:         v.Case.String(),
		Status:       v.Status.String(),
		Priority:     v.Priority,
		Attempts:     v.Attempts,
		ErrorSummary: v.ErrorSummary,
		CreatedAt:    v.CreatedAt,
		Progress:     engine.Report(v, now),
	}
	if !v.StartedAt.IsZero() {
		t := v.StartedAt
		resp.StartedAt = &t
	}
	if !v.CompletedAt.IsZero() {
		t := v.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// SubmitJobResponse is the wire response to a job submission.
type SubmitJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
