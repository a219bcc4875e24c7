package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/pipeline"
	"github.com/ppiankov/steelminer/internal/store"
	"github.com/ppiankov/steelminer/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	// noCache and dbPath are defined in extract.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list>",
	Short: "Extract every document in a directory in parallel",
	Long: `Batch processes many documents concurrently:
- Walk a directory for .txt/.md/.html/.htm/.xml/.pdf files, or read a
  list file with one path per line
- Extract each document on a pool of workers; a broken document is
  reported and never stops the others
- Write steel_data.json, steel_data.xlsx and quality_report.json

Example:
  steelminer batch ./papers
  steelminer batch ./papers --concurrency 8 --output-dir ./out
  steelminer batch papers.list --db steel.db --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default: output.dir)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh extraction)")
	batchCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the run in (optional)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if cmd.Flags().Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = dbPath
	}

	out := cmd.OutOrStdout()
	logger := zap.L().Named("batch")

	p := pipeline.NewPipeline(cfg, zap.L())
	p.Renderer().WithOutput(out)

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "  Steelminer Batch Extraction\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Input:        %s\n", input)
	fmt.Fprintf(out, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(out, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(out, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(out, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(out, "  Fallback:     %s\n", fallbackLabel(p))
	fmt.Fprintf(out, "\n")

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers).WithLogger(logger)

	results, err := processor.ProcessPath(ctx, input, cfg.Source.Extensions)
	if err != nil {
		return eris.Wrap(err, "batch failed")
	}
	if len(results) == 0 {
		return eris.Errorf("batch: no documents found in %s", input)
	}

	var st *store.SQLiteStore
	var run *store.Run
	if cfg.Store.Path != "" {
		st, err = openStore(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		run, err = st.BeginRun(ctx, pipeline.SettingsFingerprint(cfg.Extraction))
		if err != nil {
			return err
		}
	}

	reports, failed := collectReports(out, results)

	if st != nil {
		for i := range reports {
			reports[i].RunID = run.ID
			if err := st.SaveReport(ctx, run.ID, reports[i]); err != nil {
				logger.Warn("store report failed", zap.String("document", reports[i].DocumentID), zap.Error(err))
			}
		}
		status := store.RunStatusComplete
		if len(reports) == 0 {
			status = store.RunStatusFailed
		}
		if err := st.FinishRun(ctx, run.ID, status, len(results), failed); err != nil {
			return err
		}
	}

	dataset := p.Checker().CheckDataset(reports)
	formats := pipeline.Formats{JSON: cfg.Output.JSON, XLSX: cfg.Output.XLSX}
	files, err := p.Renderer().RenderDataset(reports, dataset, cfg.Output.Dir, formats)
	if err != nil {
		return eris.Wrap(err, "render failed")
	}

	p.Renderer().RenderQualitySummary(dataset)

	hits, misses := p.CacheStats()

	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "  Batch Complete\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(out, "  Success:   %d\n", len(reports))
	fmt.Fprintf(out, "  Failures:  %d\n", failed)
	if cfg.Cache.Enabled {
		fmt.Fprintf(out, "  Cache:     %d hits, %d misses\n", hits, misses)
	}
	if run != nil {
		fmt.Fprintf(out, "  Run:       %s (%s)\n", run.ID, cfg.Store.Path)
	}
	for _, f := range []string{files.JSON, files.XLSX, files.Quality} {
		if f != "" {
			fmt.Fprintf(out, "  Output:    %s\n", f)
		}
	}
	fmt.Fprintf(out, "\n")

	return nil
}

// collectReports prints one line per document and returns the successful
// reports in input order
func collectReports(out io.Writer, results []*worker.ExtractResult) ([]model.Report, int) {
	reports := make([]model.Report, 0, len(results))
	failed := 0

	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		reports = append(reports, *result.Report)
		fmt.Fprintf(out, "✓ %s (confidence: %.2f)\n", result.Report.DocumentID, result.Report.Quality.Confidence)
	}
	fmt.Fprintf(out, "\n")

	return reports, failed
}
