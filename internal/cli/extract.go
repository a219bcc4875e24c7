package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/pipeline"
	"github.com/ppiankov/steelminer/internal/store"
)

var (
	outJSON string
	outXLSX string
	dbPath  string
	timeout time.Duration
	noCache bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract structured steel data from one document",
	Long: `Extract reads one document (text, Markdown, HTML/JATS XML or PDF) and:
- Extracts chemical composition in wt.%
- Extracts heat-treatment temperatures, times and quench media
- Extracts mechanical properties and microstructure fractions
- Maps table grids onto the same fields
- Runs quality checks and derived metrics (carbon equivalent)

Example:
  steelminer extract paper.pdf
  steelminer extract paper.html --json paper.json --xlsx paper.xlsx
  steelminer extract paper.txt --db steel.db`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	// Output flags
	extractCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (empty to skip)")
	extractCmd.Flags().StringVar(&outXLSX, "xlsx", "", "output XLSX path (optional)")
	extractCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the report in (optional)")

	extractCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall extraction timeout")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh extraction)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if cmd.Flags().Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = dbPath
	}

	p := pipeline.NewPipeline(cfg, zap.L())
	p.Renderer().WithOutput(cmd.OutOrStdout())

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Extracting: %s\n", path)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintf(os.Stderr, "Fallback: %s\n", fallbackLabel(p))
		fmt.Fprintln(os.Stderr)
	}

	report, err := p.ProcessFile(ctx, path)
	if err != nil {
		return eris.Wrap(err, "extract failed")
	}

	if cfg.Store.Path != "" {
		st, err := openStore(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		run, err := st.BeginRun(ctx, pipeline.SettingsFingerprint(cfg.Extraction))
		if err != nil {
			return err
		}
		report.RunID = run.ID
		if err := st.SaveReport(ctx, run.ID, *report); err != nil {
			_ = st.FinishRun(ctx, run.ID, store.RunStatusFailed, 1, 1)
			return err
		}
		if err := st.FinishRun(ctx, run.ID, store.RunStatusComplete, 1, 0); err != nil {
			return err
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Stored run %s in %s\n", run.ID, cfg.Store.Path)
		}
	}

	if err := p.RenderReport(report, outJSON, outXLSX, cfg.Output.Verbose); err != nil {
		return eris.Wrap(err, "render failed")
	}

	return nil
}

// fallbackLabel names the fallback segmenter for console headers
func fallbackLabel(p *pipeline.Pipeline) string {
	if m := p.FallbackMethod(); m != "" {
		return m
	}
	return "disabled"
}

// openStore opens and migrates the SQLite database
func openStore(ctx context.Context, path string) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
