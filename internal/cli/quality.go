package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/steelminer/internal/pipeline"
	"github.com/ppiankov/steelminer/internal/quality"
)

var qualityOutputDir string

// qualityCmd represents the quality command
var qualityCmd = &cobra.Command{
	Use:   "quality <steel_data.json>",
	Short: "Re-run quality checks on an exported dataset",
	Long: `Quality recomputes derived metrics and quality signals for a dataset
written by 'steelminer batch', using the rules of the current configuration.
Measurements are annotated, never altered.

Example:
  steelminer quality ./steelminer-output/steel_data.json
  steelminer quality steel_data.json --output-dir ./qa`,
	Args: cobra.ExactArgs(1),
	RunE: runQuality,
}

func init() {
	rootCmd.AddCommand(qualityCmd)

	qualityCmd.Flags().StringVar(&qualityOutputDir, "output-dir", "", "directory for quality_report.json (default: next to the dataset)")
}

func runQuality(cmd *cobra.Command, args []string) error {
	input := args[0]

	reports, err := pipeline.LoadDataset(input)
	if err != nil {
		return eris.Wrap(err, "quality failed")
	}

	dir := qualityOutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}

	dataset := quality.NewChecker(cfg.Quality).CheckDataset(reports)

	renderer := pipeline.NewRenderer().WithOutput(cmd.OutOrStdout())
	path := filepath.Join(dir, pipeline.QualityReportFile)
	if err := renderer.RenderJSON(dataset, path); err != nil {
		return eris.Wrap(err, "render failed")
	}

	renderer.RenderQualitySummary(dataset)
	for _, flagged := range dataset.Flagged {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s\n", flagged.DocumentID)
		for _, s := range flagged.Signals {
			fmt.Fprintf(cmd.OutOrStdout(), "    [%s] %s\n", s.Severity, s.Description)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Wrote quality report: %s\n", path)

	return nil
}
