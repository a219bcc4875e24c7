package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/store"
)

var (
	queryDB     string
	queryLimit  int
	queryRunID  string
	queryField  string
	queryDomain string
	queryMin    float64
	queryMax    float64
	queryJSON   bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Inspect runs and measurements stored in a SQLite database",
	Long: `Query reads a database written by 'extract --db' or 'batch --db'.

Example:
  steelminer query runs --db steel.db
  steelminer query run 3f2c... --db steel.db
  steelminer query measurements --db steel.db --field yield_strength --min 900`,
}

var queryRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List extraction runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runQueryRuns,
}

var queryRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Show one run and the documents it stored",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryRun,
}

var queryMeasurementsCmd = &cobra.Command{
	Use:   "measurements",
	Short: "List stored measurements matching the filters",
	Args:  cobra.NoArgs,
	RunE:  runQueryMeasurements,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryRunsCmd)
	queryCmd.AddCommand(queryRunCmd)
	queryCmd.AddCommand(queryMeasurementsCmd)

	queryCmd.PersistentFlags().StringVar(&queryDB, "db", "", "SQLite database (default: store.path)")
	queryCmd.PersistentFlags().IntVar(&queryLimit, "limit", 0, "maximum rows (0 for the store default)")
	queryCmd.PersistentFlags().BoolVar(&queryJSON, "json", false, "print JSON instead of a table")

	queryMeasurementsCmd.Flags().StringVar(&queryRunID, "run", "", "only this run")
	queryMeasurementsCmd.Flags().StringVar(&queryField, "field", "", "only this field (e.g. C, yield_strength)")
	queryMeasurementsCmd.Flags().StringVar(&queryDomain, "domain", "", "only this domain (composition, heat_treatment, mechanical_properties, microstructure)")
	queryMeasurementsCmd.Flags().Float64Var(&queryMin, "min", 0, "minimum value in the field's base unit")
	queryMeasurementsCmd.Flags().Float64Var(&queryMax, "max", 0, "maximum value in the field's base unit")
}

func openQueryStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		path = queryDB
	}
	if path == "" {
		return nil, eris.New("query: no database (use --db or store.path)")
	}
	return openStore(cmd.Context(), path)
}

func runQueryRuns(cmd *cobra.Command, args []string) error {
	st, err := openQueryStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	runs, err := st.ListRuns(cmd.Context(), queryLimit)
	if err != nil {
		return eris.Wrap(err, "query failed")
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return printJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs stored.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-8s  %-9s  %-6s  %s\n", "RUN", "STATUS", "DOCUMENTS", "FAILED", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-8s  %-9d  %-6d  %s\n",
			r.ID, r.Status, r.Documents, r.Failed, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runQueryRun(cmd *cobra.Command, args []string) error {
	st, err := openQueryStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	run, err := st.GetRun(cmd.Context(), args[0])
	if err != nil {
		return eris.Wrap(err, "query failed")
	}
	reports, err := st.ListReports(cmd.Context(), run.ID)
	if err != nil {
		return eris.Wrap(err, "query failed")
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return printJSON(out, struct {
			Run     *store.Run     `json:"run"`
			Reports []model.Report `json:"reports"`
		}{run, reports})
	}

	fmt.Fprintf(out, "Run:        %s\n", run.ID)
	fmt.Fprintf(out, "Status:     %s\n", run.Status)
	fmt.Fprintf(out, "Settings:   %s\n", run.Settings)
	fmt.Fprintf(out, "Documents:  %d (%d failed)\n", run.Documents, run.Failed)
	fmt.Fprintf(out, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:   %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out)
	for _, r := range reports {
		count := 0
		for _, d := range model.Domains {
			count += r.Result.Section(d).Count()
		}
		fmt.Fprintf(out, "  %s  (%d measurements, confidence %.2f)\n", r.DocumentID, count, r.Quality.Confidence)
	}
	return nil
}

func runQueryMeasurements(cmd *cobra.Command, args []string) error {
	st, err := openQueryStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	filter := store.MeasurementFilter{
		RunID:  queryRunID,
		Field:  queryField,
		Domain: queryDomain,
		Limit:  queryLimit,
	}
	if cmd.Flags().Changed("min") {
		filter.Min = &queryMin
	}
	if cmd.Flags().Changed("max") {
		filter.Max = &queryMax
	}

	rows, err := st.QueryMeasurements(cmd.Context(), filter)
	if err != nil {
		return eris.Wrap(err, "query failed")
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return printJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No measurements match.")
		return nil
	}
	for _, r := range rows {
		fmt.Fprintf(out, "%s  %s.%s = %s\n", r.DocumentID, r.Domain, r.Measurement.Field, formatMeasurement(r.Measurement))
	}
	fmt.Fprintf(out, "\n%d measurements\n", len(rows))
	return nil
}

func formatMeasurement(m model.Measurement) string {
	if m.IsCategorical() {
		return m.Category
	}
	s := fmt.Sprintf("%g", m.Value)
	if m.Range != nil {
		s = fmt.Sprintf("%g–%g", m.Range.Min, m.Range.Max)
	}
	if m.Unit != "" {
		s += " " + m.Unit
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
