package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
)

// NewStatusCommand creates the 'rowforge status' command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status <job-id>",
		Short:   "Show a job's state and progress",
		GroupID: "jobs",
		Args:    cobra.ExactArgs(1),
		RunE:    runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter := format.FromCommand(cmd)

	c, err := apiClient(cmd)
	if err != nil {
		return jobFailure(formatter, "fetch job status", err)
	}

	j, err := c.GetJob(cmd.Context(), args[0])
	if err != nil {
		return jobFailure(formatter, "fetch job status", err)
	}

	if outputJSON(cmd) {
		return formatter.PrintJSON(j)
	}

	rows := [][]string{
		format.Row("ID", j.ID),
		format.Row("Status", j.Status),
		format.Row("Case", j.Case),
		format.Row("Sheet", fmt.Sprintf("%s!%s", j.Source.SheetID, j.Source.SheetName)),
		format.Row("Rows", fmt.Sprintf("%d from row %d", j.Source.RowCount, j.Source.StartRow)),
		format.Row("Priority", j.Priority),
		format.Row("Attempts", j.Attempts),
		format.Row("Progress", progressCell(*j)),
		format.Row("Failed rows", j.Progress.FailedRows),
		format.Row("Created", timeCell(j.CreatedAt)),
	}
	if j.StartedAt != nil {
		rows = append(rows, format.Row("Started", timeCell(*j.StartedAt)))
	}
	if j.CompletedAt != nil {
		rows = append(rows, format.Row("Completed", timeCell(*j.CompletedAt)))
	}
	if j.Progress.RowsPerSecond > 0 {
		rows = append(rows, format.Row("Throughput", fmt.Sprintf("%.2f rows/s", j.Progress.RowsPerSecond)))
	}
	if !j.Progress.EstimatedCompletion.IsZero() {
		rows = append(rows, format.Row("ETA", timeCell(j.Progress.EstimatedCompletion)))
	}
	if j.ErrorSummary != "" {
		rows = append(rows, format.Row("Error", j.ErrorSummary))
	}

	return formatter.PrintTable([]string{"field", "value"}, rows)
}
