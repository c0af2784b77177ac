package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/report"
)

var (
	reportJSON   bool
	reportSQLite bool
	reportStrict bool
)

// errReportHasErrors is returned by report --strict.
var errReportHasErrors = errors.New("extraction report contains errors")

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the extraction report of the stored graph",
	Long: `Report prints symbol and edge counts per pattern kind, unresolved references,
parse errors and composition cycles of the stored usage graph.

With --strict the command fails when the report holds error diagnostics,
which is useful in CI.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output as JSON")
	reportCmd.Flags().BoolVar(&reportSQLite, "sqlite", false, "Read the graph from SQLite")
	reportCmd.Flags().BoolVar(&reportStrict, "strict", false, "Fail when the report contains errors")
}

func runReport(cmd *cobra.Command, args []string) error {
	p, err := loadProject(nil)
	if err != nil {
		return err
	}
	g, err := loadGraph(p, reportSQLite)
	if err != nil {
		return err
	}

	r, err := report.Build(g)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		err = r.WriteJSON(out)
	} else {
		err = r.WriteText(out)
	}
	if err != nil {
		return err
	}

	if reportStrict && r.HasErrors() {
		return errReportHasErrors
	}
	return nil
}
