package client

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/engine"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/server/api"
	v1 "github.com/rowforge/rowforge/pkg/server/api/v1"
	"github.com/rowforge/rowforge/pkg/server/httpx"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store/memory"
)

// newTestServer runs the real router over an unstarted engine manager,
// so submitted jobs stay pending and transitions are deterministic.
func newTestServer(t *testing.T) *Client {
	t.Helper()
	limiter, err := ratelimit.New(nil, ratelimit.ClassConfig{Rate: 1000, Burst: 10})
	require.NoError(t, err)

	mgr := engine.New(engine.Config{Concurrency: 1}, memory.New(), limiter, nil, source.Passthrough{}, zerolog.Nop())
	ready := &atomic.Bool{}
	ready.Store(true)

	deps := &api.Deps{Jobs: mgr, Config: api.DefaultConfig(), Ready: ready}
	srv := httptest.NewServer(httpx.Chain(httpx.NewRouter(deps)))
	t.Cleanup(srv.Close)

	return New(srv.URL)
}

func submitRequest(rows int) v1.SubmitJobRequest {
	return v1.SubmitJobRequest{
		SheetID:   "sheet-1",
		SheetName: "Companies",
		StartRow:  2,
		RowCount:  rows,
		CaseType:  "keyword",
		Priority:  5,
	}
}

func TestClientSubmitAndGet(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	resp, err := c.SubmitJob(ctx, submitRequest(10))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)

	j, err := c.GetJob(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, j.ID)
	assert.Equal(t, 10, j.Progress.RowsRemaining)
}

func TestClientSubmitRejectsInvalid(t *testing.T) {
	c := newTestServer(t)

	_, err := c.SubmitJob(context.Background(), v1.SubmitJobRequest{SheetID: "s"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestClientGetJobNotFound(t *testing.T) {
	c := newTestServer(t)

	_, err := c.GetJob(context.Background(), "1b671a64-40d5-491e-99b0-da01ff1f3341")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}

func TestClientListJobs(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	_, err := c.SubmitJob(ctx, submitRequest(5))
	require.NoError(t, err)
	_, err = c.SubmitJob(ctx, submitRequest(5))
	require.NoError(t, err)

	jobs, err := c.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = c.ListJobs(ctx, "completed", 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestClientCancelAndConflict(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	resp, err := c.SubmitJob(ctx, submitRequest(5))
	require.NoError(t, err)

	j, err := c.CancelJob(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", j.Status)

	// Pausing a cancelled job is an illegal transition.
	_, err = c.PauseJob(ctx, resp.ID)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
}

func TestClientStats(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	_, err := c.SubmitJob(ctx, submitRequest(5))
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByStatus["pending"])
}

func TestClientHealthy(t *testing.T) {
	c := newTestServer(t)
	assert.NoError(t, c.Healthy(context.Background()))
}
