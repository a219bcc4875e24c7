package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/cache"
	"github.com/ppiankov/steelminer/internal/extract"
	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/quality"
	"github.com/ppiankov/steelminer/internal/source"
)

// Pipeline orchestrates the extraction of one document:
// read → cache lookup → parse → extract → quality annotation → cache store
type Pipeline struct {
	loader   *source.Loader
	engine   *extract.Engine
	checker  *quality.Checker
	reports  *cache.ReportCache // nil when caching is disabled
	layers   *cache.LayeredCache
	settings string
	renderer *Renderer
	config   *model.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.L()
	}

	p := &Pipeline{
		loader:   source.NewLoader(cfg.Source, logger.Named("source")),
		engine:   extract.NewEngine(extract.OptionsFromConfig(cfg.Extraction, logger.Named("extract"))),
		checker:  quality.NewChecker(cfg.Quality),
		settings: SettingsFingerprint(cfg.Extraction),
		renderer: NewRenderer(),
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}

	if cfg.Cache.Enabled {
		p.layers = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		p.reports = cache.NewReportCache(p.layers, 0)
	}

	return p
}

// SettingsFingerprint covers every option that changes extraction output.
// Quality rules are excluded: cached reports are re-annotated on every hit.
func SettingsFingerprint(cfg model.ExtractionConfig) string {
	return fmt.Sprintf("segmenter=%s;window=%d;fallback=%t;tables=%t",
		cfg.Segmenter, cfg.CompositionWindow, cfg.Fallback, cfg.Tables)
}

// Renderer exposes the output renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Checker exposes the quality checker
func (p *Pipeline) Checker() *quality.Checker {
	return p.checker
}

// FallbackMethod names the segmenter of the fallback pass, or "" when disabled
func (p *Pipeline) FallbackMethod() string {
	return p.engine.FallbackMethod()
}

// CacheStats returns cache hits and misses, zero when caching is disabled
func (p *Pipeline) CacheStats() (hits, misses int64) {
	if p.layers == nil {
		return 0, 0
	}
	return p.layers.Stats()
}

// ProcessFile extracts one file. Identical content under the same path and
// settings is served from the cache without parsing.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}

	// 1. Read raw bytes
	raw, err := p.loader.Read(path)
	if err != nil {
		return nil, err
	}

	// 2. Cache lookup
	id := documentID(path)
	key := cache.Key(id, raw.Hash, p.settings)
	if p.reports != nil {
		if report, ok := p.reports.Get(key); ok {
			p.checker.Annotate(&report)
			p.logger.Debug("cache hit", zap.String("path", path))
			return &report, nil
		}
	}

	// 3. Parse with the matching adapter
	doc, err := p.loader.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	doc.ID = id

	// 4. Extract and annotate
	report := p.ProcessDocument(doc)

	// 5. Store for later runs; a cache failure never fails the document
	if p.reports != nil {
		if err := p.reports.Set(key, *report); err != nil {
			p.logger.Warn("cache store failed", zap.String("path", path), zap.Error(err))
		}
	}

	return report, nil
}

// ProcessDocument extracts an already loaded document
func (p *Pipeline) ProcessDocument(doc model.Document) *model.Report {
	start := p.now()

	report := &model.Report{
		DocumentID:  doc.ID,
		Source:      doc.Source,
		ExtractedAt: start.UTC(),
		SourceMeta:  doc.Meta,
		Result:      p.engine.ExtractDocument(doc),
	}
	p.checker.Annotate(report)

	p.logger.Debug("document extracted",
		zap.String("document", doc.ID),
		zap.Int("composition", report.Result.Composition.Count()),
		zap.Int("heat_treatment", report.Result.HeatTreatment.Count()),
		zap.Int("mechanical_properties", report.Result.MechanicalProperties.Count()),
		zap.Int("microstructure", report.Result.Microstructure.Count()),
		zap.Float64("confidence", report.Quality.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return report
}

// documentID is the cleaned path; two spellings of the same file share it
func documentID(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// RenderReport renders one report to the requested outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, xlsxPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return eris.Wrap(err, "pipeline: render JSON")
		}
		if verbose {
			fmt.Fprintf(p.renderer.out, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if xlsxPath != "" {
		if err := p.renderer.RenderXLSX([]model.Report{*report}, xlsxPath); err != nil {
			return eris.Wrap(err, "pipeline: render XLSX")
		}
		if verbose {
			fmt.Fprintf(p.renderer.out, "✓ Wrote XLSX: %s\n", xlsxPath)
		}
	}

	p.renderer.RenderSummary(report)

	return nil
}
