package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	"github.com/rowforge/rowforge/pkg/appctx"
	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/logging"
	"github.com/rowforge/rowforge/pkg/server"
	"github.com/rowforge/rowforge/pkg/server/app"
	"github.com/rowforge/rowforge/pkg/source"
	"github.com/rowforge/rowforge/pkg/store"

	// Store backends register themselves on import.
	_ "github.com/rowforge/rowforge/pkg/store/memory"
	_ "github.com/rowforge/rowforge/pkg/store/sqlite"
)

// NewServeCommand creates the 'rowforge serve' command.
//
// The server hosts the REST API and the background enrichment engine in
// a single process. It runs until interrupted (SIGINT/SIGTERM), then
// shuts down gracefully: in-flight rows finish, checkpoints are
// flushed, and interrupted jobs are recovered on the next start.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the rowforge server",
		GroupID: "core",
		Long: `Start the rowforge server process.

The server hosts the REST API for job submission and control plus the
background worker pool that executes enrichment jobs. Jobs survive
restarts: anything left running when the process dies is recovered from
its last checkpoint on the next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			manager, ok := appctx.Config(cmd.Context())
			if !ok {
				err := server.ErrConfigUnavailable
				return serveFailure(formatter, err)
			}
			cfg := manager.Get()

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				if port < 1 || port > 65535 {
					return serveFailure(formatter, server.NewInvalidPortError(port))
				}
				cfg.Server.Port = port
			}
			if err := config.Validate(cfg); err != nil {
				return serveFailure(formatter, server.WrapInvalidConfig(err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, store.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path})
			if err != nil {
				if errors.Is(err, store.ErrLocked) {
					return serveFailure(formatter, server.NewStoreLockedError(cfg.Store.Path))
				}
				return serveFailure(formatter, server.WrapStoreInit(err))
			}

			deps := &app.Deps{
				Store:    st,
				Accessor: source.NewXLSX(),
				Config:   manager,
				Logger:   logging.NewLogger("server", zerolog.InfoLevel),
			}

			serverApp, err := app.New(ctx, cfg, deps)
			if err != nil {
				_ = st.Close()
				return serveFailure(formatter, server.WrapAppInit(err))
			}

			// Run blocks until shutdown and closes the store on the way out.
			if runErr := serverApp.Run(ctx); runErr != nil {
				return serveFailure(formatter, server.WrapRuntime(runErr))
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Server listen address (overrides server.addr)")
	cmd.Flags().Int("port", 0, "Server listen port (overrides server.port)")

	return cmd
}

func serveFailure(formatter format.Formatter, err error) error {
	_ = formatter.PrintTotalFailureSummary("start server", err, server.Suggestions(err))
	return err
}
