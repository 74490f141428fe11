package commands

import (
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
)

// NewListCommand creates the 'rowforge list' command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List jobs",
		GroupID: "jobs",
		Long: `List jobs known to the server, newest first.

Example usage:

  rowforge list
  rowforge list --status running
  rowforge list --status failed --limit 10`,
		RunE: runList,
	}

	cmd.Flags().String("status", "", "Filter by status (pending, running, paused, completed, failed, cancelled)")
	cmd.Flags().Int("limit", 0, "Maximum jobs to return (server default 50)")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	formatter := format.FromCommand(cmd)

	c, err := apiClient(cmd)
	if err != nil {
		return jobFailure(formatter, "list jobs", err)
	}

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	jobs, err := c.ListJobs(cmd.Context(), status, limit)
	if err != nil {
		return jobFailure(formatter, "list jobs", err)
	}

	if outputJSON(cmd) {
		return formatter.PrintJSON(jobs)
	}

	if len(jobs) == 0 {
		return formatter.PrintSummary("No jobs found")
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, format.Row(
			j.ID,
			j.Status,
			j.Case,
			j.Source.SheetName,
			progressCell(j),
			j.Progress.FailedRows,
			timeCell(j.CreatedAt),
		))
	}
	return formatter.PrintTable([]string{"id", "status", "case", "sheet", "progress", "failed", "created"}, rows)
}
