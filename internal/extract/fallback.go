package extract

import (
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/schema"
)

// FallbackExtractor is a second pass over heat-treatment and mechanical
// fields: it segments the text with its own Segmenter, keeps only sentences
// that mention a field, and reruns the sentence extractor on them.
type FallbackExtractor struct {
	segmenter  Segmenter
	sentences  *SentenceExtractor
	heat       *schema.Schema
	mechanical *schema.Schema
}

// NewFallbackExtractor creates a fallback extractor
func NewFallbackExtractor(seg Segmenter, reg *schema.Registry, logger *zap.Logger) *FallbackExtractor {
	if seg == nil {
		seg = HeuristicSegmenter{}
	}
	return &FallbackExtractor{
		segmenter:  seg,
		sentences:  NewSentenceExtractor(logger),
		heat:       reg.Schema(model.DomainHeatTreatment),
		mechanical: reg.Schema(model.DomainMechanical),
	}
}

// Method is the label stamped on everything this pass emits
func (f *FallbackExtractor) Method() string {
	return f.segmenter.Method()
}

// Extract returns heat-treatment and mechanical measurements
func (f *FallbackExtractor) Extract(text string) (heat, mechanical model.FieldMeasurements) {
	var relevant []string
	for _, s := range f.segmenter.Split(text) {
		if f.heat.MentionsAny(s) || f.mechanical.MentionsAny(s) {
			relevant = append(relevant, s)
		}
	}
	method := f.segmenter.Method()
	return f.sentences.Extract(relevant, f.heat, method), f.sentences.Extract(relevant, f.mechanical, method)
}
