package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/numeric"
	"github.com/ppiankov/steelminer/internal/schema"
	"github.com/ppiankov/steelminer/internal/units"
)

// beforePenalty pushes spans that precede their mention behind every span that follows it
const beforePenalty = 1000

// SentenceExtractor pairs field mentions with the closest numeric span
// in the same sentence
type SentenceExtractor struct {
	logger *zap.Logger
}

// NewSentenceExtractor creates a sentence extractor; nil logger means zap.L()
func NewSentenceExtractor(logger *zap.Logger) *SentenceExtractor {
	if logger == nil {
		logger = zap.L()
	}
	return &SentenceExtractor{logger: logger}
}

// Extract runs every field of s over every sentence. It never fails;
// sentences without usable values contribute nothing.
func (e *SentenceExtractor) Extract(sentences []string, s *schema.Schema, method string) model.FieldMeasurements {
	out := model.FieldMeasurements{}
	for _, sentence := range sentences {
		e.extractSentence(sentence, s, method, out)
	}
	return out
}

// candidate is a numeric span with its unit context resolved once per sentence
type candidate struct {
	numeric.Span
	after     *units.Unit
	afterEnd  int
	before    *units.Unit
	beforeAt  int
	unknown   string
	claimedBy map[string]bool
}

func (e *SentenceExtractor) extractSentence(sentence string, s *schema.Schema, method string, out model.FieldMeasurements) {
	mentions := s.FindMentions(sentence)
	if len(mentions) == 0 {
		return
	}
	mentions = scopeGated(sentence, s, mentions)

	cands := candidates(sentence, mentions)

	byField := make(map[string][]schema.Mention)
	for _, m := range mentions {
		byField[m.Field] = append(byField[m.Field], m)
	}

	for _, f := range s.Fields() {
		ms := byField[f.Name]
		if len(ms) == 0 || !f.HasContext(sentence) {
			continue
		}

		if f.IsCategorical() {
			category, cs, ce, ok := f.Choice(sentence)
			if !ok {
				continue
			}
			m := ms[0]
			out.Add(model.Measurement{
				Field:    f.Name,
				Category: category,
				Raw:      sentence[min(m.Start, cs):max(m.End, ce)],
				Metadata: model.Metadata{Method: method, Sentence: sentence, Trigger: m.Trigger},
			})
			continue
		}

		for _, m := range ms {
			c := pick(f, m, mentions, cands)
			if c == nil {
				continue
			}
			c.claimedBy[f.Name] = true
			if meas, ok := e.measure(sentence, f, m, c, method); ok {
				out.Add(meas)
			}
		}
	}
}

// scopeGated keeps a gated field's mention only when the nearest context
// keyword before it belongs to that field, so in "austenitized ... for 30 min,
// tempered ... for 2 h" each "for" goes to its own stage. Mentions with no
// keyword before them are kept.
func scopeGated(sentence string, s *schema.Schema, mentions []schema.Mention) []schema.Mention {
	type keyword struct {
		pos   int
		field string
	}
	var keywords []keyword
	for _, f := range s.Fields() {
		if !f.Gated() {
			continue
		}
		for _, p := range f.ContextPositions(sentence) {
			keywords = append(keywords, keyword{pos: p, field: f.Name})
		}
	}
	if len(keywords) == 0 {
		return mentions
	}
	sort.SliceStable(keywords, func(i, j int) bool { return keywords[i].pos < keywords[j].pos })

	out := mentions[:0:0]
	for _, m := range mentions {
		f, ok := s.Field(m.Field)
		if !ok || !f.Gated() {
			out = append(out, m)
			continue
		}
		owner := ""
		for _, k := range keywords {
			if k.pos > m.Start {
				break
			}
			owner = k.field
		}
		if owner == "" || owner == m.Field {
			out = append(out, m)
		}
	}
	return out
}

func candidates(sentence string, mentions []schema.Mention) []*candidate {
	var out []*candidate
	for _, sp := range numeric.FindSpans(sentence) {
		if overlapsMention(sp, mentions) {
			continue
		}
		c := &candidate{Span: sp, claimedBy: make(map[string]bool)}
		if u, n, ok := units.MatchPrefix(sentence[sp.End:]); ok {
			c.after = &u
			c.afterEnd = sp.End + n
		} else {
			c.afterEnd = sp.End
			c.unknown = unitLikeToken(sentence[sp.End:])
		}
		if u, at, ok := units.MatchSuffix(sentence[:sp.Start]); ok {
			c.before = &u
			c.beforeAt = at
		}
		out = append(out, c)
	}
	return out
}

func overlapsMention(sp numeric.Span, mentions []schema.Mention) bool {
	for _, m := range mentions {
		if sp.Start < m.End && m.Start < sp.End {
			return true
		}
	}
	return false
}

// pick selects the closest unclaimed candidate for a mention.
// Spans after the mention win over spans before it; a span before the
// mention is only eligible when no other field is mentioned ahead of it.
func pick(f *schema.FieldMeta, m schema.Mention, mentions []schema.Mention, cands []*candidate) *candidate {
	var (
		best     *candidate
		bestDist int
	)
	for _, c := range cands {
		if c.claimedBy[f.Name] {
			continue
		}
		if c.after != nil && c.after.Type != f.UnitType {
			continue
		}
		dist := min(absInt(m.Start-c.Start), absInt(m.End-c.End))
		if c.Start < m.Start {
			if otherMentionBefore(f.Name, c.Start, mentions) {
				continue
			}
			dist += beforePenalty
		}
		if best == nil || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

func otherMentionBefore(field string, pos int, mentions []schema.Mention) bool {
	for _, o := range mentions {
		if o.Field != field && o.End <= pos {
			return true
		}
	}
	return false
}

func (e *SentenceExtractor) measure(sentence string, f *schema.FieldMeta, m schema.Mention, c *candidate, method string) (model.Measurement, bool) {
	var (
		unitName string
		start    = min(m.Start, c.Start)
		end      = max(m.End, c.End)
	)
	switch {
	case c.after != nil:
		unitName = c.after.Name
		end = max(m.End, c.afterEnd)
	case c.before != nil && c.before.Type == f.UnitType:
		unitName = c.before.Name
		start = min(m.Start, c.beforeAt)
	case c.unknown != "":
		e.logger.Warn("unrecognized unit, value discarded",
			zap.String("unit", c.unknown),
			zap.String("field", f.Name),
			zap.String("value", c.Text),
			zap.String("sentence", sentence))
		return model.Measurement{}, false
	case f.RequireUnit:
		return model.Measurement{}, false
	default:
		unitName = f.DefaultUnit
	}

	if unitName == "%" && f.UnitType == units.Percent {
		unitName = f.DefaultUnit
	}
	if !f.Allows(unitName) {
		e.logger.Debug("unit not allowed for field",
			zap.String("unit", unitName),
			zap.String("field", f.Name))
		return model.Measurement{}, false
	}

	meas, err := buildMeasurement(f, c.Expr, unitName)
	if err != nil {
		e.logger.Warn("unit conversion failed, value discarded",
			zap.String("unit", unitName),
			zap.String("field", f.Name),
			zap.Error(err))
		return model.Measurement{}, false
	}
	if f.Plausible != nil && !f.Plausible.Contains(meas.Value) {
		return model.Measurement{}, false
	}

	meas.Raw = sentence[start:end]
	meas.Metadata = model.Metadata{
		Method:     method,
		Sentence:   sentence,
		Trigger:    m.Trigger,
		Qualifiers: qualifiers(c.Expr, approximateBefore(sentence[:c.Start])),
	}
	return meas, true
}

// buildMeasurement converts a parsed expression into the field's base unit
func buildMeasurement(f *schema.FieldMeta, expr numeric.Expression, unitName string) (model.Measurement, error) {
	value, base, err := units.ConvertToBase(expr.Value, f.UnitType, unitName)
	if err != nil {
		return model.Measurement{}, err
	}
	meas := model.Measurement{Field: f.Name, Value: value, Unit: base}
	if expr.IsRange {
		lo, _, err := units.ConvertToBase(expr.Min, f.UnitType, unitName)
		if err != nil {
			return model.Measurement{}, err
		}
		hi, _, err := units.ConvertToBase(expr.Max, f.UnitType, unitName)
		if err != nil {
			return model.Measurement{}, err
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		meas.Range = &model.Range{Min: lo, Max: hi}
	}
	return meas, nil
}

func qualifiers(expr numeric.Expression, approximate bool) *model.Qualifiers {
	q := model.Qualifiers{Approximate: expr.Approximate || approximate, Operator: expr.Operator}
	if q.IsZero() {
		return nil
	}
	return &q
}

var approximateWords = []string{"approximately", "approx.", "approx", "about", "around", "nearly", "roughly", "ca.", "大约", "约为", "约"}

// approximateBefore reports whether the text right before a value hedges it
func approximateBefore(prefix string) bool {
	p := strings.ToLower(strings.TrimRightFunc(prefix, unicode.IsSpace))
	for _, w := range approximateWords {
		if !strings.HasSuffix(p, w) {
			continue
		}
		head := p[:len(p)-len(w)]
		if head == "" {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(head)
		first, _ := utf8.DecodeRuneInString(w)
		if first > unicode.MaxASCII || !isWordRune(prev) {
			return true
		}
	}
	return false
}

var unitStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "or": true, "to": true, "of": true, "in": true,
	"at": true, "for": true, "the": true, "was": true, "were": true, "is": true, "are": true,
	"be": true, "with": true, "by": true, "on": true, "as": true, "than": true, "from": true,
	"then": true, "each": true, "per": true, "vs": true, "via": true, "but": true, "when": true,
	"that": true, "this": true, "it": true, "its": true, "has": true, "had": true, "we": true,
	"up": true, "into": true, "both": true, "all": true, "only": true, "also": true, "after": true,
	"while": true, "which": true, "such": true, "more": true, "less": true,
	"max": true, "mean": true, "avg": true,
}

// unitLikeToken returns the token after a number when it looks like a unit
// the catalog does not know (psi, ksi), or "" when it reads as a word
func unitLikeToken(rest string) string {
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	end := strings.IndexFunc(rest, func(r rune) bool {
		return !isASCIILetter(r) && !strings.ContainsRune(unitSymbols, r)
	})
	if end < 0 {
		end = len(rest)
	}
	tok := rest[:end]
	if tok == "" || unitStopwords[strings.ToLower(tok)] {
		return ""
	}
	if strings.ContainsAny(tok, unitSymbols) || len(tok) <= 4 {
		return tok
	}
	return ""
}

const unitSymbols = "°%μ/·"

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
