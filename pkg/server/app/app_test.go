package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store/memory"
)

// stubAccessor serves synthetic rows and swallows writes.
type stubAccessor struct{}

func (stubAccessor) ReadRow(ctx context.Context, src job.SourceDescriptor, index int) (source.Row, error) {
	return source.Row{Index: index, Values: map[string]string{"company": "acme"}}, nil
}

func (stubAccessor) WriteRow(ctx context.Context, src job.SourceDescriptor, index int, fields source.EnrichedFields) error {
	return nil
}

func testAppConfig(port int) config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "memory"
	cfg.Server.Port = port
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Engine.Concurrency = 1
	return cfg
}

func testAppDeps() *Deps {
	return &Deps{
		Store:     memory.New(),
		Accessor:  stubAccessor{},
		Processor: source.Passthrough{},
		Logger:    zerolog.Nop(),
	}
}

func TestNew(t *testing.T) {
	app, err := New(context.Background(), testAppConfig(9999), testAppDeps())
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, app.HTTP)
	require.NotNil(t, app.Engine)
	require.Equal(t, "127.0.0.1:9999", app.HTTP.Addr)
}

func TestNew_RejectsInvalidLimits(t *testing.T) {
	cfg := testAppConfig(9998)
	cfg.Limits.Enrich.Rate = -1

	_, err := New(context.Background(), cfg, testAppDeps())
	require.Error(t, err)
}

func TestApp_Lifecycle(t *testing.T) {
	app, err := New(context.Background(), testAppConfig(9997), testAppDeps())
	require.NoError(t, err)

	// Start in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run(ctx)
	}()

	// Wait for server to be ready
	require.Eventually(t, app.Ready.Load, 2*time.Second, 10*time.Millisecond)

	// Test health endpoint
	resp, err := http.Get("http://127.0.0.1:9997/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Test readiness endpoint
	resp, err = http.Get("http://127.0.0.1:9997/readyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Submit a job end to end through the HTTP surface
	body, _ := json.Marshal(map[string]any{
		"sheet_id":   "sheet-1",
		"sheet_name": "Companies",
		"start_row":  2,
		"row_count":  3,
		"case_type":  "keyword",
	})
	resp, err = http.Post("http://127.0.0.1:9997/api/v1/jobs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_ = resp.Body.Close()

	// Trigger shutdown
	cancel()

	// Wait for graceful shutdown
	select {
	case err := <-appErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown timeout")
	}

	require.False(t, app.Ready.Load())
}
