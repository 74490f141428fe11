package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/server/api"
	"github.com/rowforge/rowforge/pkg/store"
)

// SubmitJobHandler handles POST /api/v1/jobs
//
// Accepts a JSON body describing the source row range, the enrichment
// case, and an optional priority, and returns 202 with the new job id.
//
// Request format:
//
//	{
//	  "sheet_id": "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
//	  "sheet_name": "Companies",
//	  "start_row": 2,
//	  "row_count": 500,
//	  "case_type": "keyword",
//	  "priority": 5
//	}
func SubmitJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, deps.Config.HandlerTimeout)
		defer cancel()

		req, err := ParseSubmitJobRequest(r)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		id, err := deps.Jobs.Submit(ctx, req.Descriptor(), job.CaseType(req.CaseType), req.Priority)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, api.SubmitJobResponse{
			ID:     id.String(),
			Status: job.StatusPending.String(),
		})
	}
}

// ListJobsHandler handles GET /api/v1/jobs
//
// Supports optional ?status= and ?limit= query parameters. Jobs are
// returned oldest first, each with derived progress.
func ListJobsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, deps.Config.HandlerTimeout)
		defer cancel()

		q, err := ParseListJobsQuery(r)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		views, err := deps.Jobs.ListJobs(ctx, store.Filter{Status: q.Status, Limit: q.Limit})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		now := time.Now()
		resp := make([]api.JobResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, api.NewJobResponse(v, now))
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// GetJobHandler handles GET /api/v1/jobs/{id}
//
// Returns the job snapshot with derived progress, or 404.
func GetJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, deps.Config.HandlerTimeout)
		defer cancel()

		id, err := parseJobID(r)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		v, err := deps.Jobs.GetStatus(ctx, id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, api.NewJobResponse(v, time.Now()))
	}
}

// jobAction is one of the POST /api/v1/jobs/{id}/<action> control verbs.
type jobAction struct {
	name string
	call func(api.JobService, context.Context, uuid.UUID) error
}

// JobActionHandler builds the handler for one control verb. Illegal
// transitions surface as 409 Conflict, unknown jobs as 404.
func JobActionHandler(deps *api.Deps, action jobAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, deps.Config.HandlerTimeout)
		defer cancel()

		id, err := parseJobID(r)
		if err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}

		if err := action.call(deps.Jobs, ctx, id); err != nil {
			api.WriteError(w, r, err)
			return
		}

		log.Info().
			Str("component", "api").
			Str("job_id", id.String()).
			Str("action", action.name).
			Msg("Job control accepted")

		v, err := deps.Jobs.GetStatus(ctx, id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, api.NewJobResponse(v, time.Now()))
	}
}

// PauseJobHandler handles POST /api/v1/jobs/{id}/pause
func PauseJobHandler(deps *api.Deps) http.HandlerFunc {
	return JobActionHandler(deps, jobAction{"pause", api.JobService.Pause})
}

// ResumeJobHandler handles POST /api/v1/jobs/{id}/resume
func ResumeJobHandler(deps *api.Deps) http.HandlerFunc {
	return JobActionHandler(deps, jobAction{"resume", api.JobService.Resume})
}

// CancelJobHandler handles POST /api/v1/jobs/{id}/cancel
func CancelJobHandler(deps *api.Deps) http.HandlerFunc {
	return JobActionHandler(deps, jobAction{"cancel", api.JobService.Cancel})
}

// RetryJobHandler handles POST /api/v1/jobs/{id}/retry
func RetryJobHandler(deps *api.Deps) http.HandlerFunc {
	return JobActionHandler(deps, jobAction{"retry", api.JobService.Retry})
}

// StatsHandler handles GET /api/v1/stats
//
// Returns queue depth, worker activity, and job counts by status.
func StatsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, deps.Config.HandlerTimeout)
		defer cancel()

		stats, err := deps.Jobs.Stats(ctx)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, stats)
	}
}

// handlerContext bounds handler work unless the request already carries
// a deadline.
func handlerContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// parseJobID extracts and validates the {id} path parameter.
func parseJobID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return uuid.Nil, errors.New("id: required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("id: must be a valid UUID")
	}
	return id, nil
}
