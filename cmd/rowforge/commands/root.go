// Package commands assembles the rowforge CLI: the server process and
// the job control commands that talk to it over the REST API.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/client"
	"github.com/rowforge/rowforge/pkg/appctx"
	"github.com/rowforge/rowforge/pkg/config"
	"github.com/rowforge/rowforge/pkg/logging"
)

const cliExecutable = "rowforge"

// NewCommand constructs the top-level rowforge CLI command, wiring
// global flags, configuration loading, and logging setup.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Rowforge runs long-lived row enrichment jobs over spreadsheet sources",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := manager.Get()
			if err := logging.Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := appctx.WithConfig(cmd.Context(), manager)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().String("server", "", "Server base URL for job commands (default derived from server.addr and server.port)")
	cmd.PersistentFlags().String("output", "table", "Output format: table or json")
	cmd.PersistentFlags().Bool("quiet", false, "Suppress summaries; print identifiers only")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "jobs", Title: "Job Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewVersionCommand())
	cmd.AddCommand(NewSubmitCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewStatsCommand())
	cmd.AddCommand(NewPauseCommand())
	cmd.AddCommand(NewResumeCommand())
	cmd.AddCommand(NewCancelCommand())
	cmd.AddCommand(NewRetryCommand())

	return cmd
}

// apiClient builds a REST client from the --server flag, falling back
// to the configured server address.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	base, _ := cmd.Flags().GetString("server")
	if base == "" {
		manager, ok := appctx.Config(cmd.Context())
		if !ok {
			return nil, errors.New("server address unknown: pass --server or a config file")
		}
		cfg := manager.Get()
		base = fmt.Sprintf("http://%s:%d", cfg.Server.Addr, cfg.Server.Port)
	}
	return client.New(base), nil
}
