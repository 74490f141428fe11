package job

import (
	"time"

	"github.com/google/uuid"
)

// CaseType selects the enrichment strategy applied to a job's rows.
type CaseType string

const (
	// CaseKeyword derives categories from the row's keyword and
	// description columns.
	CaseKeyword CaseType = "keyword"
	// CaseScrape derives categories by fetching the row's website.
	CaseScrape CaseType = "scrape"
)

// Valid reports whether c is a known case type.
func (c CaseType) Valid() bool {
	return c == CaseKeyword || c == CaseScrape
}

func (c CaseType) String() string { return string(c) }

// ProviderClass maps a case type to the rate-limiter class of the
// external provider its processor calls.
func (c CaseType) ProviderClass() string {
	if c == CaseScrape {
		return "fetch"
	}
	return "enrich"
}

// ParseCaseType converts a string into a CaseType, rejecting unknown values.
func ParseCaseType(raw string) (CaseType, error) {
	c := CaseType(raw)
	if !c.Valid() {
		return "", &InvalidSourceError{Field: "case_type", Reason: "must be keyword or scrape"}
	}
	return c, nil
}

// SourceDescriptor identifies a contiguous row range inside an external
// spreadsheet-like source. It is immutable after job creation.
type SourceDescriptor struct {
	SheetID   string `json:"sheet_id"`
	SheetName string `json:"sheet_name"`
	StartRow  int    `json:"start_row"` // 1-based sheet row of the first data row
	RowCount  int    `json:"row_count"`
}

// Validate checks the descriptor for structural validity.
func (d SourceDescriptor) Validate() error {
	switch {
	case d.SheetID == "":
		return &InvalidSourceError{Field: "sheet_id", Reason: "is required"}
	case d.SheetName == "":
		return &InvalidSourceError{Field: "sheet_name", Reason: "is required"}
	case d.StartRow < 1:
		return &InvalidSourceError{Field: "start_row", Reason: "must be at least 1"}
	case d.RowCount < 1:
		return &InvalidSourceError{Field: "row_count", Reason: "must be at least 1"}
	}
	return nil
}

// Job is one scheduled unit of row-range enrichment work.
//
// Checkpoint is the index of the next unprocessed row, relative to the
// descriptor's start row: 0 <= Checkpoint <= Source.RowCount, and it only
// ever advances while the job is running. It is the sole resumption point
// after a pause, retry, or process restart.
type Job struct {
	ID           uuid.UUID        `json:"id"`
	Source       SourceDescriptor `json:"source"`
	Case         CaseType         `json:"case_type"`
	Status       Status           `json:"status"`
	Checkpoint   int              `json:"checkpoint"`
	Priority     int              `json:"priority"`
	FailedRows   int              `json:"failed_rows"`
	Attempts     int              `json:"attempts"`
	ErrorSummary string           `json:"error_summary,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    time.Time        `json:"started_at,omitzero"`
	CompletedAt  time.Time        `json:"completed_at,omitzero"`

	// Seq is assigned by the store at creation and breaks FIFO ties
	// between jobs of equal priority.
	Seq int64 `json:"-"`
}

// New builds a pending job for the given source range. The descriptor must
// already be validated.
func New(src SourceDescriptor, c CaseType, priority int) *Job {
	return &Job{
		ID:        uuid.New(),
		Source:    src,
		Case:      c,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}

// View is a read-only snapshot of a job handed to observers.
type View struct {
	ID           uuid.UUID        `json:"id"`
	Source       SourceDescriptor `json:"source"`
	Case         CaseType         `json:"case_type"`
	Status       Status           `json:"status"`
	Checkpoint   int              `json:"checkpoint"`
	RowCount     int              `json:"row_count"`
	Priority     int              `json:"priority"`
	FailedRows   int              `json:"failed_rows"`
	Attempts     int              `json:"attempts"`
	ErrorSummary string           `json:"error_summary,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    time.Time        `json:"started_at,omitzero"`
	CompletedAt  time.Time        `json:"completed_at,omitzero"`
}

// Snapshot converts the job into a View.
func (j *Job) Snapshot() View {
	return View{
		ID:           j.ID,
		Source:       j.Source,
		Case:         j.Case,
		Status:       j.Status,
		Checkpoint:   j.Checkpoint,
		RowCount:     j.Source.RowCount,
		Priority:     j.Priority,
		FailedRows:   j.FailedRows,
		Attempts:     j.Attempts,
		ErrorSummary: j.ErrorSummary,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
