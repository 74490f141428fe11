package commands

import (
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	"github.com/rowforge/rowforge/pkg/job"
)

// NewStatsCommand creates the 'rowforge stats' command.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Short:   "Show engine queue and worker statistics",
		GroupID: "core",
		RunE:    runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	formatter := format.FromCommand(cmd)

	c, err := apiClient(cmd)
	if err != nil {
		return jobFailure(formatter, "fetch stats", err)
	}

	stats, err := c.Stats(cmd.Context())
	if err != nil {
		return jobFailure(formatter, "fetch stats", err)
	}

	if outputJSON(cmd) {
		return formatter.PrintJSON(stats)
	}

	rows := [][]string{
		format.Row("Queue depth", stats.QueueDepth),
		format.Row("Active workers", stats.ActiveWorkers),
		format.Row("Worker count", stats.WorkerCount),
		format.Row("Jobs dispatched", stats.Dispatched),
	}
	for _, s := range []job.Status{
		job.StatusPending, job.StatusRunning, job.StatusPaused,
		job.StatusCompleted, job.StatusFailed, job.StatusCancelled,
	} {
		if n, ok := stats.ByStatus[s.String()]; ok && n > 0 {
			rows = append(rows, format.Row("Jobs "+s.String(), n))
		}
	}

	return formatter.PrintTable([]string{"metric", "value"}, rows)
}
