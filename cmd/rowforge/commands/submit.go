package commands

import (
	"github.com/spf13/cobra"

	"github.com/rowforge/rowforge/cmd/rowforge/internal/format"
	v1 "github.com/rowforge/rowforge/pkg/server/api/v1"
)

// NewSubmitCommand creates the 'rowforge submit' command.
func NewSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit a new enrichment job",
		GroupID: "jobs",
		Long: `Submit a row enrichment job to the server.

The job is queued immediately and executed in the background by the
worker pool. Use 'rowforge status <job-id>' to follow its progress.

Example usage:

  rowforge submit --sheet-id companies.xlsx --sheet Companies --start-row 2 --rows 500 --case keyword
  rowforge submit --sheet-id leads.xlsx --sheet Leads --rows 100 --case scrape --priority 10`,
		RunE: runSubmit,
	}

	cmd.Flags().String("sheet-id", "", "Workbook identifier (path for xlsx sources)")
	cmd.Flags().String("sheet", "", "Worksheet name")
	cmd.Flags().Int("start-row", 1, "First data row to process (1-based)")
	cmd.Flags().Int("rows", 0, "Number of rows to process")
	cmd.Flags().String("case", "keyword", "Case type: keyword or scrape")
	cmd.Flags().Int("priority", 0, "Job priority; higher runs first")

	_ = cmd.MarkFlagRequired("sheet-id")
	_ = cmd.MarkFlagRequired("sheet")
	_ = cmd.MarkFlagRequired("rows")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	formatter := format.FromCommand(cmd)

	c, err := apiClient(cmd)
	if err != nil {
		return jobFailure(formatter, "submit job", err)
	}

	sheetID, _ := cmd.Flags().GetString("sheet-id")
	sheetName, _ := cmd.Flags().GetString("sheet")
	startRow, _ := cmd.Flags().GetInt("start-row")
	rows, _ := cmd.Flags().GetInt("rows")
	caseType, _ := cmd.Flags().GetString("case")
	priority, _ := cmd.Flags().GetInt("priority")

	resp, err := c.SubmitJob(cmd.Context(), v1.SubmitJobRequest{
		SheetID:   sheetID,
		SheetName: sheetName,
		StartRow:  startRow,
		RowCount:  rows,
		CaseType:  caseType,
		Priority:  priority,
	})
	if err != nil {
		return jobFailure(formatter, "submit job", err)
	}

	if outputJSON(cmd) {
		return formatter.PrintJSON(resp)
	}
	// Quiet mode prints the bare ID so scripts can capture it.
	return formatter.PrintSuccessSummary("submitted job", resp.ID)
}
