package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/client"
	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	"github.com/rowforge/rowforge/pkg/server/api"
)

// jobAction describes one job control command. The call field is a
// client method expression, so new actions are a single table entry.
type jobAction struct {
	use       string
	short     string
	operation string
	done      string
	call      func(*client.Client, context.Context, string) (*api.JobResponse, error)
}

// NewPauseCommand creates the 'rowforge pause' command.
func NewPauseCommand() *cobra.Command {
	return newJobActionCommand(jobAction{
		use:       "pause",
		short:     "Pause a running job at the next row boundary",
		operation: "pause job",
		done:      "pause requested for",
		call:      (*client.Client).PauseJob,
	})
}

// NewResumeCommand creates the 'rowforge resume' command.
func NewResumeCommand() *cobra.Command {
	return newJobActionCommand(jobAction{
		use:       "resume",
		short:     "Resume a paused job from its checkpoint",
		operation: "resume job",
		done:      "resumed",
		call:      (*client.Client).ResumeJob,
	})
}

// NewCancelCommand creates the 'rowforge cancel' command.
func NewCancelCommand() *cobra.Command {
	return newJobActionCommand(jobAction{
		use:       "cancel",
		short:     "Cancel a job permanently",
		operation: "cancel job",
		done:      "cancel requested for",
		call:      (*client.Client).CancelJob,
	})
}

// NewRetryCommand creates the 'rowforge retry' command.
func NewRetryCommand() *cobra.Command {
	return newJobActionCommand(jobAction{
		use:       "retry",
		short:     "Retry a failed job from its last checkpoint",
		operation: "retry job",
		done:      "retrying",
		call:      (*client.Client).RetryJob,
	})
}

func newJobActionCommand(action jobAction) *cobra.Command {
	return &cobra.Command{
		Use:     action.use + " <job-id>",
		Short:   action.short,
		GroupID: "jobs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			c, err := apiClient(cmd)
			if err != nil {
				return jobFailure(formatter, action.operation, err)
			}

			resp, err := action.call(c, cmd.Context(), args[0])
			if err != nil {
				return jobFailure(formatter, action.operation, err)
			}

			if outputJSON(cmd) {
				return formatter.PrintJSON(resp)
			}
			return formatter.PrintSuccessSummary(action.done, fmt.Sprintf("job %s (status: %s)", resp.ID, resp.Status))
		},
	}
}
