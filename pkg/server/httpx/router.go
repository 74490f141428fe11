package httpx

import (
	"net/http"

	"github.com/rowforge/rowforge/pkg/server/api"
	v1 "github.com/rowforge/rowforge/pkg/server/api/v1"
)

// NewRouter creates and configures the main HTTP router.
//
// The router uses Go 1.22+ enhanced pattern matching for cleaner routes.
// Health endpoints are always mounted for liveness/readiness checks.
func NewRouter(deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps.Ready))

	// Job endpoints
	mux.HandleFunc("POST /api/v1/jobs", v1.SubmitJobHandler(deps))
	mux.HandleFunc("GET /api/v1/jobs", v1.ListJobsHandler(deps))
	mux.HandleFunc("GET /api/v1/jobs/{id}", v1.GetJobHandler(deps))
	mux.HandleFunc("POST /api/v1/jobs/{id}/pause", v1.PauseJobHandler(deps))
	mux.HandleFunc("POST /api/v1/jobs/{id}/resume", v1.ResumeJobHandler(deps))
	mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", v1.CancelJobHandler(deps))
	mux.HandleFunc("POST /api/v1/jobs/{id}/retry", v1.RetryJobHandler(deps))

	// Engine stats
	mux.HandleFunc("GET /api/v1/stats", v1.StatsHandler(deps))

	return mux
}

// HealthzHandler responds with 200 OK if the server process is alive.
// This endpoint is used by load balancers and orchestrators for liveness checks.
//
// It does not check dependencies (store, engine) - just process health.
// For comprehensive readiness checks, use /readyz instead.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
