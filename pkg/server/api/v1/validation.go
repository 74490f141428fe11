package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rowforge/rowforge/pkg/job"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SubmitJobRequest is the POST /api/v1/jobs request body.
type SubmitJobRequest struct {
	SheetID   string `json:"sheet_id" validate:"required"`
	SheetName string `json:"sheet_name" validate:"required"`
	StartRow  int    `json:"start_row" validate:"min=1"`
	RowCount  int    `json:"row_count" validate:"min=1,max=1000000"`
	CaseType  string `json:"case_type" validate:"required,oneof=keyword scrape"`
	Priority  int    `json:"priority" validate:"min=0,max=100"`
}

// Descriptor converts the request into a source descriptor.
func (r SubmitJobRequest) Descriptor() job.SourceDescriptor {
	return job.SourceDescriptor{
		SheetID:   r.SheetID,
		SheetName: r.SheetName,
		StartRow:  r.StartRow,
		RowCount:  r.RowCount,
	}
}

// ParseSubmitJobRequest decodes and validates a submission body.
func ParseSubmitJobRequest(r *http.Request) (*SubmitJobRequest, error) {
	var req SubmitJobRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, &ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return nil, &ValidationError{
				Field:  strings.ToLower(f.Field()),
				Reason: "failed validation rule " + strconv.Quote(f.Tag()),
			}
		}
		return nil, &ValidationError{Reason: err.Error()}
	}
	return &req, nil
}

// ListJobsQuery represents supported query params for GET /api/v1/jobs
type ListJobsQuery struct {
	Status job.Status
	Limit  int
}

// ParseListJobsQuery parses and validates query params.
// Returns validated query with sane defaults (Limit=50) when omitted.
func ParseListJobsQuery(r *http.Request) (*ListJobsQuery, error) {
	q := r.URL.Query()
	var res ListJobsQuery

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := job.ParseStatus(v)
		if err != nil {
			return nil, &ValidationError{Field: "status", Reason: "must be one of: pending,running,paused,completed,failed,cancelled"}
		}
		res.Status = status
	}

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		if err := validate.Var(n, "min=1,max=500"); err != nil {
			return nil, &ValidationError{Field: "limit", Reason: "must be between 1 and 500"}
		}
		res.Limit = n
	}

	// Defaults
	if res.Limit == 0 {
		res.Limit = 50
	}

	return &res, nil
}

// ValidationError is a lightweight error used for 400 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		if e.Reason == "" {
			return "validation failed"
		}
		return e.Reason
	}
	if e.Reason == "" {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + e.Reason
}
