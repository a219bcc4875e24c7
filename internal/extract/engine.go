package extract

import (
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/schema"
)

// Options configures an Engine
type Options struct {
	Segmenter         string // fallback segmenter mode: auto, punkt, heuristic, regex
	CompositionWindow int
	Fallback          bool
	Tables            bool
	Registry          *schema.Registry
	Logger            *zap.Logger
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		Segmenter:         SegmenterAuto,
		CompositionWindow: DefaultCompositionWindow,
		Fallback:          true,
		Tables:            true,
	}
}

// OptionsFromConfig maps the extraction config section
// onto engine options; an empty segmenter or window keeps the default
func OptionsFromConfig(cfg model.ExtractionConfig, logger *zap.Logger) Options {
	opts := DefaultOptions()
	if cfg.Segmenter != "" {
		opts.Segmenter = cfg.Segmenter
	}
	if cfg.CompositionWindow > 0 {
		opts.CompositionWindow = cfg.CompositionWindow
	}
	opts.Fallback = cfg.Fallback
	opts.Tables = cfg.Tables
	opts.Logger = logger
	return opts
}

// Engine runs every extraction pass over one document and merges the results.
// It holds only read-only tables and is safe for concurrent use.
type Engine struct {
	primary     Segmenter
	sentences   *SentenceExtractor
	composition *CompositionExtractor
	fallback    *FallbackExtractor
	tables      *TableExtractor
	registry    *schema.Registry
	logger      *zap.Logger
}

// NewEngine builds an engine; the fallback segmenter is selected here, once
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	reg := opts.Registry
	if reg == nil {
		reg = schema.Default()
	}

	e := &Engine{
		primary:     RegexSegmenter{},
		sentences:   NewSentenceExtractor(logger),
		composition: NewCompositionExtractor(reg.Schema(model.DomainComposition), opts.CompositionWindow, logger),
		registry:    reg,
		logger:      logger,
	}
	if opts.Fallback {
		e.fallback = NewFallbackExtractor(NewSegmenter(opts.Segmenter, logger), reg, logger)
	}
	if opts.Tables {
		e.tables = NewTableExtractor(reg, logger)
	}
	return e
}

// FallbackMethod returns the method label of the fallback pass, or "" when disabled
func (e *Engine) FallbackMethod() string {
	if e.fallback == nil {
		return ""
	}
	return e.fallback.Method()
}

// ExtractText runs composition, the rule pass over heat treatment, mechanical
// properties and microstructure, then the fallback pass, and merges them.
// Blank text yields empty sections.
func (e *Engine) ExtractText(text string) model.DocumentResult {
	clean := CleanText(text)
	if clean == "" {
		return model.NewDocumentResult()
	}

	sentences := e.primary.Split(clean)
	composition := e.composition.Extract(clean)
	heat := e.sentences.Extract(sentences, e.registry.Schema(model.DomainHeatTreatment), model.MethodRuleRegex)
	mechanical := e.sentences.Extract(sentences, e.registry.Schema(model.DomainMechanical), model.MethodRuleRegex)
	micro := e.sentences.Extract(sentences, e.registry.Schema(model.DomainMicrostructure), model.MethodRuleRegex)

	var fbHeat, fbMechanical model.FieldMeasurements
	if e.fallback != nil {
		fbHeat, fbMechanical = e.fallback.Extract(clean)
	}

	return model.DocumentResult{
		Composition:          Merge(composition),
		HeatTreatment:        Merge(heat, fbHeat),
		MechanicalProperties: Merge(mechanical, fbMechanical),
		Microstructure:       Merge(micro),
	}
}

// ExtractTable maps one table grid
func (e *Engine) ExtractTable(t model.Table) model.DocumentResult {
	if e.tables == nil {
		return model.NewDocumentResult()
	}
	return e.tables.Extract(t)
}

// ExtractDocument extracts a whole document. Paged documents are extracted
// page by page and every measurement records its page.
func (e *Engine) ExtractDocument(doc model.Document) model.DocumentResult {
	var parts []model.DocumentResult
	if doc.HasPages() {
		for i, page := range doc.Pages {
			r := e.ExtractText(page)
			stampPage(r, i+1)
			parts = append(parts, r)
		}
	} else {
		parts = append(parts, e.ExtractText(doc.Text))
	}

	for _, t := range doc.Tables {
		parts = append(parts, e.ExtractTable(t))
	}

	result := MergeResults(parts...)
	e.logger.Debug("document extracted",
		zap.String("document", doc.ID),
		zap.Int("composition", result.Composition.Count()),
		zap.Int("heat_treatment", result.HeatTreatment.Count()),
		zap.Int("mechanical_properties", result.MechanicalProperties.Count()),
		zap.Int("microstructure", result.Microstructure.Count()))
	return result
}

func stampPage(r model.DocumentResult, page int) {
	for _, domain := range model.Domains {
		for _, ms := range r.Section(domain) {
			for i := range ms {
				p := page
				ms[i].Metadata.Page = &p
			}
		}
	}
}
