package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/engine"
	"github.com/rowforge/rowforge/pkg/ratelimit"
	"github.com/rowforge/rowforge/pkg/server/api"
	"github.com/rowforge/rowforge/pkg/server/httpx"
	"github.com/rowforge/rowforge/pkg/source"
)

// App orchestrates the server runtime components:
// - HTTP server (job API)
// - Job engine (queue, worker pool, recovery)
// - Lifecycle management
type App struct {
	HTTP   *http.Server
	Engine *engine.Manager
	Ready  *atomic.Bool
	Config config.Config
	Deps   *Deps
}

// New creates and configures a new server application.
func New(ctx context.Context, cfg config.Config, deps *Deps) (*App, error) {
	deps.Logger.Info().Msg("Initializing server application")

	limiter, err := ratelimit.New(map[string]ratelimit.ClassConfig{
		"enrich": {Rate: cfg.Limits.Enrich.Rate, Burst: cfg.Limits.Enrich.Burst},
		"fetch":  {Rate: cfg.Limits.Fetch.Rate, Burst: cfg.Limits.Fetch.Burst},
	}, ratelimit.ClassConfig{Rate: cfg.Limits.Default.Rate, Burst: cfg.Limits.Default.Burst})
	if err != nil {
		return nil, fmt.Errorf("build rate limiter: %w", err)
	}

	processor := deps.Processor
	if processor == nil {
		processor = source.NewDispatch()
	}

	mgr := engine.New(engine.Config{
		Concurrency:        cfg.Engine.Concurrency,
		CheckpointRows:     cfg.Engine.CheckpointRows,
		CheckpointInterval: cfg.Engine.CheckpointInterval,
		RowTimeout:         cfg.Engine.RowTimeout,
		RowRetryMax:        cfg.Engine.RowRetryMax,
		RowRetryBase:       cfg.Engine.RowRetryBase,
		FailureBudget:      cfg.Engine.FailureBudget,
		Recovery:           engine.RecoveryPolicy(cfg.Engine.Recovery),
	}, deps.Store, limiter, deps.Accessor, processor, deps.Logger)

	// Prepare API dependencies
	ready := &atomic.Bool{}
	apiDeps := &api.Deps{
		Jobs:   mgr,
		Config: api.DefaultConfig(),
		Ready:  ready,
	}

	// Create router with all endpoints mounted
	router := httpx.NewRouter(apiDeps)

	// Create HTTP server with middleware
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Addr, cfg.Server.Port),
		Handler:      httpx.Chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		HTTP:   httpServer,
		Engine: mgr,
		Ready:  ready,
		Config: cfg,
		Deps:   deps,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.Deps.Logger.Info().
		Str("addr", a.HTTP.Addr).
		Str("store", a.Config.Store.Driver).
		Int("workers", a.Config.Engine.Concurrency).
		Msg("Starting rowforge server")

	// Start HTTP server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := a.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Start the job engine: recovery of interrupted jobs happens here,
	// before the server reports ready.
	if err := a.Engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// Mark as ready
	a.Ready.Store(true)
	a.Deps.Logger.Info().Msg("Server is ready and accepting connections")

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		a.Deps.Logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		a.Deps.Logger.Error().Err(err).Msg("Server error")
		return err
	}

	// Graceful shutdown
	return a.shutdown()
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.Deps.Logger.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Mark as not ready
	a.Ready.Store(false)

	// Shutdown HTTP server
	a.Deps.Logger.Info().Msg("Shutting down HTTP server...")
	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		return err
	}
	a.Deps.Logger.Info().Msg("HTTP server stopped")

	// Stop the engine: workers finish their current row and persist a
	// checkpoint; anything mid-flight is recovered on the next start.
	a.Deps.Logger.Info().Msg("Stopping job engine...")
	if err := a.Engine.Stop(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("Engine shutdown failed")
		return err
	}
	a.Deps.Logger.Info().Msg("Job engine stopped")

	// Close the job store
	if a.Deps.Store != nil {
		a.Deps.Logger.Info().Msg("Closing job store...")
		if err := a.Deps.Store.Close(); err != nil {
			a.Deps.Logger.Error().Err(err).Msg("Store close failed")
			return err
		}
		a.Deps.Logger.Info().Msg("Job store closed")
	}

	a.Deps.Logger.Info().Msg("Server shutdown complete")
	return nil
}
