package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/client"
	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	"github.com/rowforge/rowforge/pkg/server/api"
)

// outputJSON reports whether the command should emit raw JSON instead
// of table output.
func outputJSON(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("output")
	return flag != nil && format.ParseMode(flag.Value.String()) == format.ModeJSON
}

// jobFailure prints a failure summary with suggestions and returns the
// original error so the exit code reflects it.
func jobFailure(formatter format.Formatter, operation string, err error) error {
	_ = formatter.PrintTotalFailureSummary(operation, err, jobSuggestions(err))
	return err
}

func jobSuggestions(err error) []string {
	switch {
	case client.IsNotFound(err):
		return []string{
			"List known jobs:      rowforge list",
			"Check the job ID is a full UUID",
		}
	case client.IsConflict(err):
		return []string{
			"Check the job state:  rowforge status <job-id>",
			"List jobs by state:   rowforge list --status failed",
		}
	default:
		return []string{
			"Check the server is running:   rowforge serve",
			"Point at a different server:   --server http://127.0.0.1:8470",
		}
	}
}

// progressCell renders a compact progress summary for table output.
func progressCell(j api.JobResponse) string {
	total := j.Progress.RowsProcessed + j.Progress.RowsRemaining
	return fmt.Sprintf("%.1f%% (%d/%d)", j.Progress.Percent, j.Progress.RowsProcessed, total)
}

func timeCell(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
