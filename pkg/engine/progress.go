package engine

import (
	"time"

	"github.com/rowforge/rowforge/pkg/job"
)

// Progress is a derived, human-oriented report of how far a job has
// come. All fields are computed from the job snapshot; nothing here is
// persisted.
type Progress struct {
	Percent             float64   `json:"percent"`
	RowsProcessed       int       `json:"rows_processed"`
	RowsRemaining       int       `json:"rows_remaining"`
	FailedRows          int       `json:"failed_rows"`
	RowsPerSecond       float64   `json:"rows_per_second,omitempty"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitzero"`
}

// Report derives progress from a job snapshot. The throughput estimate
// uses wall time since the first start, so paused time counts against
// it.
func Report(v job.View, now time.Time) Progress {
	p := Progress{
		RowsProcessed: v.Checkpoint,
		RowsRemaining: v.RowCount - v.Checkpoint,
		FailedRows:    v.FailedRows,
	}
	if v.RowCount > 0 {
		p.Percent = float64(v.Checkpoint) / float64(v.RowCount) * 100
	}

	if v.StartedAt.IsZero() || v.Checkpoint == 0 {
		return p
	}
	end := now
	if !v.CompletedAt.IsZero() {
		end = v.CompletedAt
	}
	elapsed := end.Sub(v.StartedAt)
	if elapsed <= 0 {
		return p
	}
	p.RowsPerSecond = float64(v.Checkpoint) / elapsed.Seconds()

	if v.Status == job.StatusRunning && p.RowsRemaining > 0 && p.RowsPerSecond > 0 {
		remaining := time.Duration(float64(p.RowsRemaining)/p.RowsPerSecond) * time.Second
		p.EstimatedCompletion = now.Add(remaining)
	}
	return p
}
