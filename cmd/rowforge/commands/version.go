package commands

import (
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	"github.com/rowforge/rowforge/pkg/version"
)

// NewVersionCommand creates the 'rowforge version' command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			if outputJSON(cmd) {
				return formatter.PrintJSON(version.Get())
			}
			return formatter.PrintSummary(version.Info())
		},
	}
}
