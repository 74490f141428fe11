package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/engine"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/server/api"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store/memory"
)

func newRouterDeps(t *testing.T) *api.Deps {
	t.Helper()
	limiter, err := ratelimit.New(nil, ratelimit.ClassConfig{Rate: 1000, Burst: 10})
	require.NoError(t, err)

	mgr := engine.New(engine.Config{Concurrency: 1}, memory.New(), limiter, nil, source.Passthrough{}, zerolog.Nop())
	ready := &atomic.Bool{}
	ready.Store(true)
	return &api.Deps{Jobs: mgr, Config: api.DefaultConfig(), Ready: ready}
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := NewRouter(newRouterDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterJobRoutes(t *testing.T) {
	router := NewRouter(newRouterDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter(newRouterDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterUnknownPath(t *testing.T) {
	router := NewRouter(newRouterDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
