package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ppiankov/steelminer/internal/model"
)

// Output file names written for a batch
const (
	DatasetJSONFile   = "steel_data.json"
	DatasetXLSXFile   = "steel_data.xlsx"
	QualityReportFile = "quality_report.json"
)

// XLSX sheet names
const (
	SheetSteelData    = "steel_data"
	SheetMeasurements = "measurements"
	SheetDerived      = "derived_metrics"
	SheetQuality      = "quality_metadata"
)

// Renderer writes reports as JSON and XLSX and prints terminal summaries
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer printing summaries to stdout
func NewRenderer() *Renderer {
	return &Renderer{out: os.Stdout}
}

// WithOutput redirects summaries
func (r *Renderer) WithOutput(w io.Writer) *Renderer {
	r.out = w
	return r
}

// Formats selects the dataset outputs besides the quality report
type Formats struct {
	JSON bool
	XLSX bool
}

// DatasetFiles lists the files written by RenderDataset
type DatasetFiles struct {
	JSON    string
	XLSX    string
	Quality string
}

// RenderJSON writes any value as indented JSON, creating parent directories
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "render: marshal JSON")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// RenderDataset writes the dataset files into dir. The quality report is
// always written.
func (r *Renderer) RenderDataset(reports []model.Report, dataset model.DatasetReport, dir string, formats Formats) (DatasetFiles, error) {
	var files DatasetFiles

	if formats.JSON {
		files.JSON = filepath.Join(dir, DatasetJSONFile)
		if err := r.RenderJSON(reports, files.JSON); err != nil {
			return files, err
		}
	}

	if formats.XLSX {
		files.XLSX = filepath.Join(dir, DatasetXLSXFile)
		if err := r.RenderXLSX(reports, files.XLSX); err != nil {
			return files, err
		}
	}

	files.Quality = filepath.Join(dir, QualityReportFile)
	if err := r.RenderJSON(dataset, files.Quality); err != nil {
		return files, err
	}

	return files, nil
}

// LoadDataset reads reports previously written by RenderDataset
func LoadDataset(path string) ([]model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read %s", path)
	}
	var reports []model.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, eris.Wrapf(err, "render: decode %s", path)
	}
	return reports, nil
}

// RenderXLSX writes a workbook with one wide row per document plus long
// measurement, derived metric and quality sheets
func (r *Renderer) RenderXLSX(reports []model.Report, path string) error {
	f := xlsx.NewFile()

	if err := addSteelDataSheet(f, reports); err != nil {
		return err
	}
	if err := addMeasurementsSheet(f, reports); err != nil {
		return err
	}
	if err := addDerivedSheet(f, reports); err != nil {
		return err
	}
	if err := addQualitySheet(f, reports); err != nil {
		return err
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "render: save %s", path)
	}
	return nil
}

// fieldColumns returns the fields present in any report, grouped by domain
func fieldColumns(reports []model.Report) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, domain := range model.Domains {
		merged := model.FieldMeasurements{}
		for _, rep := range reports {
			for field, ms := range rep.Result.Section(domain) {
				merged[field] = append(merged[field], ms...)
			}
		}
		for _, field := range merged.Fields() {
			if !seen[field] {
				seen[field] = true
				columns = append(columns, field)
			}
		}
	}
	return columns
}

func addSteelDataSheet(f *xlsx.File, reports []model.Report) error {
	sheet, err := f.AddSheet(SheetSteelData)
	if err != nil {
		return eris.Wrap(err, "render: add steel_data sheet")
	}

	columns := fieldColumns(reports)
	header := append([]string{"document_id", "source"}, columns...)
	header = append(header, "carbon_equivalent", "total_key_alloy", "confidence")
	addStringRow(sheet, header)

	for _, rep := range reports {
		row := sheet.AddRow()
		row.AddCell().SetString(rep.DocumentID)
		row.AddCell().SetString(rep.Source)
		for _, field := range columns {
			cell := row.AddCell()
			m, ok := firstMeasurement(rep.Result, field)
			if !ok {
				continue
			}
			if m.IsCategorical() {
				cell.SetString(m.Category)
			} else {
				cell.SetFloat(m.Value)
			}
		}
		setOptionalFloat(row.AddCell(), rep.Derived.CarbonEquivalent)
		setOptionalFloat(row.AddCell(), rep.Derived.TotalKeyAlloy)
		row.AddCell().SetFloat(rep.Quality.Confidence)
	}
	return nil
}

func addMeasurementsSheet(f *xlsx.File, reports []model.Report) error {
	sheet, err := f.AddSheet(SheetMeasurements)
	if err != nil {
		return eris.Wrap(err, "render: add measurements sheet")
	}

	addStringRow(sheet, []string{
		"document_id", "domain", "field", "value", "category", "unit",
		"range_min", "range_max", "approximate", "operator", "method", "page", "raw", "sentence",
	})

	for _, rep := range reports {
		for _, domain := range model.Domains {
			section := rep.Result.Section(domain)
			for _, field := range section.Fields() {
				for _, m := range section[field] {
					row := sheet.AddRow()
					row.AddCell().SetString(rep.DocumentID)
					row.AddCell().SetString(domain)
					row.AddCell().SetString(m.Field)
					if m.IsCategorical() {
						row.AddCell()
						row.AddCell().SetString(m.Category)
					} else {
						row.AddCell().SetFloat(m.Value)
						row.AddCell()
					}
					row.AddCell().SetString(m.Unit)
					if m.Range != nil {
						row.AddCell().SetFloat(m.Range.Min)
						row.AddCell().SetFloat(m.Range.Max)
					} else {
						row.AddCell()
						row.AddCell()
					}
					approx, op := false, ""
					if q := m.Metadata.Qualifiers; q != nil {
						approx, op = q.Approximate, q.Operator
					}
					row.AddCell().SetBool(approx)
					row.AddCell().SetString(op)
					row.AddCell().SetString(m.Metadata.Method)
					if m.Metadata.Page != nil {
						row.AddCell().SetInt(*m.Metadata.Page)
					} else {
						row.AddCell()
					}
					row.AddCell().SetString(m.Raw)
					row.AddCell().SetString(m.Metadata.Sentence)
				}
			}
		}
	}
	return nil
}

func addDerivedSheet(f *xlsx.File, reports []model.Report) error {
	sheet, err := f.AddSheet(SheetDerived)
	if err != nil {
		return eris.Wrap(err, "render: add derived_metrics sheet")
	}

	addStringRow(sheet, []string{"document_id", "carbon_equivalent", "total_key_alloy"})
	for _, rep := range reports {
		row := sheet.AddRow()
		row.AddCell().SetString(rep.DocumentID)
		setOptionalFloat(row.AddCell(), rep.Derived.CarbonEquivalent)
		setOptionalFloat(row.AddCell(), rep.Derived.TotalKeyAlloy)
	}
	return nil
}

func addQualitySheet(f *xlsx.File, reports []model.Report) error {
	sheet, err := f.AddSheet(SheetQuality)
	if err != nil {
		return eris.Wrap(err, "render: add quality_metadata sheet")
	}

	addStringRow(sheet, []string{
		"document_id", "adapter", "pages", "confidence",
		"filled_sections", "missing_sections", "signals", "flags",
	})
	for _, rep := range reports {
		row := sheet.AddRow()
		row.AddCell().SetString(rep.DocumentID)
		row.AddCell().SetString(rep.SourceMeta.Adapter)
		row.AddCell().SetInt(rep.SourceMeta.PageCount)
		row.AddCell().SetFloat(rep.Quality.Confidence)
		row.AddCell().SetString(strings.Join(rep.Quality.FilledSections, ","))
		row.AddCell().SetString(strings.Join(rep.Quality.MissingSections, ","))
		row.AddCell().SetInt(len(rep.Quality.Signals))
		row.AddCell().SetString(strings.Join(flagDescriptions(rep.Quality.Signals), "; "))
	}
	return nil
}

func firstMeasurement(r model.DocumentResult, field string) (model.Measurement, bool) {
	for _, domain := range model.Domains {
		if m, ok := r.Section(domain).First(field); ok {
			return m, true
		}
	}
	return model.Measurement{}, false
}

func flagDescriptions(signals []model.Signal) []string {
	var out []string
	for _, s := range signals {
		if s.Severity == model.SeverityInfo {
			continue
		}
		out = append(out, s.Description)
	}
	return out
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setOptionalFloat(cell *xlsx.Cell, v *float64) {
	if v != nil {
		cell.SetFloat(*v)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "render: create %s", dir)
	}
	return nil
}

// RenderSummary prints a short per-document summary
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s\n", report.DocumentID)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w)
	for _, domain := range model.Domains {
		section := report.Result.Section(domain)
		fmt.Fprintf(w, "  %-22s %3d measurements  %s\n", domain+":", section.Count(), strings.Join(section.Fields(), ", "))
	}
	fmt.Fprintln(w)
	if ce := report.Derived.CarbonEquivalent; ce != nil {
		fmt.Fprintf(w, "  Carbon equivalent:     %.4f\n", *ce)
	}
	fmt.Fprintf(w, "  Confidence:            %.2f\n", report.Quality.Confidence)
	for _, desc := range flagDescriptions(report.Quality.Signals) {
		fmt.Fprintf(w, "  ⚠ %s\n", desc)
	}
	fmt.Fprintln(w)
}

// RenderQualitySummary prints dataset-level quality totals
func (r *Renderer) RenderQualitySummary(ds model.DatasetReport) {
	w := r.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "  Data Quality")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Documents:        %d\n", ds.TotalDocuments)
	for _, domain := range model.Domains {
		fmt.Fprintf(w, "  Missing %-22s %5.1f%%\n", domain+":", ds.MissingRates[domain]*100)
	}
	fmt.Fprintf(w, "  Anomalies:        %d\n", ds.Anomalies)
	fmt.Fprintf(w, "  Logical issues:   %d\n", ds.LogicalIssues)
	fmt.Fprintf(w, "  Mean confidence:  %.3f\n", ds.MeanConfidence)
	fmt.Fprintf(w, "  Flagged:          %d\n", len(ds.Flagged))
	fmt.Fprintln(w)
}
