package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/numeric"
	"github.com/ppiankov/steelminer/internal/schema"
	"github.com/ppiankov/steelminer/internal/units"
)

// DefaultCompositionWindow is how far after an element the value search reaches
const DefaultCompositionWindow = 80

// contextRadius bounds the text recorded as a composition measurement's sentence
const contextRadius = 60

// CompositionExtractor reads element contents from running text and inline
// tables, searching both after ("C: 0.12%") and before ("0.12% C") each element.
type CompositionExtractor struct {
	schema *schema.Schema
	window int
	logger *zap.Logger
}

// NewCompositionExtractor creates a composition extractor over an element schema
func NewCompositionExtractor(s *schema.Schema, window int, logger *zap.Logger) *CompositionExtractor {
	if window <= 0 {
		window = DefaultCompositionWindow
	}
	if logger == nil {
		logger = zap.L()
	}
	return &CompositionExtractor{schema: s, window: window, logger: logger}
}

type compSpan struct {
	numeric.Span
	unit    *units.Unit
	unitEnd int
	claimed bool
}

// Extract returns element measurements found in cleaned text
func (e *CompositionExtractor) Extract(text string) model.FieldMeasurements {
	out := model.FieldMeasurements{}
	mentions := e.elementMentions(text)
	if len(mentions) == 0 {
		return out
	}

	var spans []*compSpan
	for _, sp := range numeric.FindSpans(text) {
		c := &compSpan{Span: sp, unitEnd: sp.End}
		if u, n, ok := units.MatchPrefix(text[sp.End:]); ok {
			c.unit = &u
			c.unitEnd = sp.End + n
		}
		spans = append(spans, c)
	}

	for i, m := range mentions {
		f, ok := e.schema.Field(m.Field)
		if !ok {
			continue
		}
		next, hasNext := len(text), i+1 < len(mentions)
		if hasNext {
			next = mentions[i+1].Start
		}

		before := e.beforeValue(text, m, spans)
		after := e.afterValue(text, m, next, hasNext, spans, before != nil)

		if before != nil {
			if meas, ok := e.measure(text, f, m, before, before.Start, m.End); ok {
				before.claimed = true
				out.Add(meas)
			}
		}
		if after != nil {
			if meas, ok := e.measure(text, f, m, after, m.Start, after.unitEnd); ok {
				after.claimed = true
				out.Add(meas)
			}
		}
	}
	return out
}

// elementMentions drops symbols that are really units: the C of "°C"
// and the N of "N/mm²"
func (e *CompositionExtractor) elementMentions(text string) []schema.Mention {
	var out []schema.Mention
	for _, m := range e.schema.FindMentions(text) {
		prefix := strings.TrimRightFunc(text[:m.Start], unicode.IsSpace)
		if prev, _ := utf8.DecodeLastRuneInString(prefix); prev == '°' {
			continue
		}
		if _, n, ok := units.MatchPrefix(text[m.Start:]); ok && n > m.End-m.Start {
			continue
		}
		out = append(out, m)
	}
	return out
}

// beforeValue finds an unclaimed value immediately preceding the mention:
// glued ("0.2C") or percent-marked with only whitespace between ("0.12% C")
func (e *CompositionExtractor) beforeValue(text string, m schema.Mention, spans []*compSpan) *compSpan {
	var last *compSpan
	for _, s := range spans {
		if s.unitEnd > m.Start {
			break
		}
		last = s
	}
	if last == nil || last.claimed {
		return nil
	}
	gap := text[last.unitEnd:m.Start]
	switch {
	case gap == "" && (last.unit == nil || last.unit.Type == units.Percent):
		return last
	case last.unit != nil && last.unit.Type == units.Percent && strings.TrimSpace(gap) == "":
		return last
	}
	return nil
}

// afterValue takes the first value inside the window after the mention.
// It needs a percent unit or a punctuation-only gap, and a value that sits
// right before the next element belongs to that element instead, unless
// this element has no preceding value of its own ("C 0.12% Si 0.25%").
// next is the start of the following element, or len(text) when hasNext is false.
func (e *CompositionExtractor) afterValue(text string, m schema.Mention, next int, hasNext bool, spans []*compSpan, hasBefore bool) *compSpan {
	limit := min(m.End+e.window, next, len(text))
	for _, s := range spans {
		if s.Start < m.End || s.claimed {
			continue
		}
		if s.Start >= limit {
			return nil
		}

		percent := s.unit != nil && s.unit.Type == units.Percent
		if s.unit != nil && !percent {
			return nil
		}
		if !percent && !punctuationOnly(text[m.End:s.Start]) {
			return nil
		}
		if !percent {
			rest := text[s.End:]
			tokStart := s.End + len(rest) - len(strings.TrimLeftFunc(rest, unicode.IsSpace))
			if tok := unitLikeToken(rest); tok != "" && !(hasNext && tokStart == next) {
				e.logger.Warn("unrecognized unit, value discarded",
					zap.String("unit", tok),
					zap.String("field", m.Field),
					zap.String("value", s.Text))
				return nil
			}
		}

		if hasNext {
			if s.unitEnd == next {
				return nil // glued to the next element
			}
			if percent && hasBefore && strings.TrimSpace(text[s.unitEnd:next]) == "" {
				return nil
			}
		}
		return s
	}
	return nil
}

func (e *CompositionExtractor) measure(text string, f *schema.FieldMeta, m schema.Mention, s *compSpan, start, end int) (model.Measurement, bool) {
	unitName := f.DefaultUnit
	if s.unit != nil && s.unit.Name != "%" {
		unitName = s.unit.Name
	}
	if !f.Allows(unitName) {
		e.logger.Debug("unit not allowed for element", zap.String("unit", unitName), zap.String("field", f.Name))
		return model.Measurement{}, false
	}
	meas, err := buildMeasurement(f, s.Expr, unitName)
	if err != nil {
		return model.Measurement{}, false
	}
	if f.Plausible != nil && !f.Plausible.Contains(meas.Value) {
		return model.Measurement{}, false
	}
	meas.Raw = text[start:end]
	meas.Metadata = model.Metadata{
		Method:     model.MethodCompositionWindow,
		Sentence:   contextWindow(text, start, end),
		Trigger:    m.Trigger,
		Qualifiers: qualifiers(s.Expr, approximateBefore(text[:s.Start])),
	}
	return meas, true
}

func punctuationOnly(gap string) bool {
	for _, r := range gap {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// contextWindow widens [start,end) by contextRadius bytes, snapped to rune boundaries
func contextWindow(text string, start, end int) string {
	lo := max(0, start-contextRadius)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := min(len(text), end+contextRadius)
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
