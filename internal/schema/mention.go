package schema

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Mention is one alias or symbol occurrence. Offsets are byte offsets.
type Mention struct {
	Field   string
	Start   int
	End     int
	Trigger string
}

// coalesceGap is the widest non-digit gap joining two mentions of one field,
// as in "yield strength (YS)" or "屈服强度 Rp0.2"
const coalesceGap = 3

// FindMentions returns alias and symbol occurrences in text, ordered by start.
// A mention contained in a longer one is dropped; adjacent mentions of the
// same field are joined.
func (s *Schema) FindMentions(text string) []Mention {
	var all []Mention
	for _, f := range s.fields {
		all = append(all, f.mentions(text)...)
	}
	return coalesce(dropContained(all), text)
}

// MentionsAny reports whether any field of the schema occurs in text
func (s *Schema) MentionsAny(text string) bool {
	for _, f := range s.fields {
		if len(f.mentions(text)) > 0 {
			return true
		}
	}
	return false
}

func (f *FieldMeta) mentions(text string) []Mention {
	var out []Mention
	for _, re := range f.aliases {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] || !wordBounded(text, loc[0], loc[1]) {
				continue
			}
			out = append(out, Mention{Field: f.Name, Start: loc[0], End: loc[1], Trigger: text[loc[0]:loc[1]]})
		}
	}
	for _, re := range f.symbols {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] || !symbolBounded(text, loc[0], loc[1]) {
				continue
			}
			out = append(out, Mention{Field: f.Name, Start: loc[0], End: loc[1], Trigger: text[loc[0]:loc[1]]})
		}
	}
	return out
}

// ContextPositions returns the start offsets of the field's context keywords
func (f *FieldMeta) ContextPositions(text string) []int {
	lower := strings.ToLower(text)
	var out []int
	for _, kw := range f.Context {
		kw = strings.ToLower(kw)
		for from := 0; ; {
			i := strings.Index(lower[from:], kw)
			if i < 0 {
				break
			}
			out = append(out, from+i)
			from += i + len(kw)
		}
	}
	sort.Ints(out)
	return out
}

// HasContext reports whether an ungated field or one of its keywords is present
func (f *FieldMeta) HasContext(text string) bool {
	if !f.Gated() {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range f.Context {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Choice returns the category whose token occurs earliest in text
// and the token's byte offsets
func (f *FieldMeta) Choice(text string) (category string, start, end int, ok bool) {
	start = -1
	for _, c := range f.choices {
		for _, loc := range c.pattern.FindAllStringIndex(text, -1) {
			if !wordBounded(text, loc[0], loc[1]) {
				continue
			}
			if start < 0 || loc[0] < start {
				category, start, end = c.category, loc[0], loc[1]
			}
			break
		}
	}
	return category, start, end, start >= 0
}

// wordBounded rejects matches glued to Latin letters or digits.
// CJK aliases need no boundary.
func wordBounded(text string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(text[start:])
	if isASCIIAlnum(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isASCIIAlnum(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(text[:end])
	if isASCIIAlnum(last) && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isASCIIAlnum(next) {
			return false
		}
	}
	return true
}

// symbolBounded is wordBounded except a leading digit is allowed,
// so "0.2C" and "1.5Mn" still name their elements.
func symbolBounded(text string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isASCIILetter(prev) {
			return false
		}
	}
	if end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isASCIIAlnum(next) {
			return false
		}
	}
	return true
}

func dropContained(ms []Mention) []Mention {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Start != ms[j].Start {
			return ms[i].Start < ms[j].Start
		}
		return ms[i].End > ms[j].End
	})
	out := ms[:0:0]
	for i, m := range ms {
		contained := false
		for j, o := range ms {
			if i == j {
				continue
			}
			if o.Start <= m.Start && m.End <= o.End && (o.End-o.Start) > (m.End-m.Start) {
				contained = true
				break
			}
			// identical spans of one field: keep the first
			if o.Start == m.Start && o.End == m.End && o.Field == m.Field && j < i {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, m)
		}
	}
	return out
}

var digits = regexp.MustCompile(`\d`)

func coalesce(ms []Mention, text string) []Mention {
	if len(ms) < 2 {
		return ms
	}
	out := []Mention{ms[0]}
	for _, m := range ms[1:] {
		joined := false
		for k := len(out) - 1; k >= 0; k-- {
			prev := &out[k]
			if prev.Field != m.Field {
				continue
			}
			if m.Start >= prev.End && m.Start-prev.End <= coalesceGap && !digits.MatchString(text[prev.End:m.Start]) && !separatedByOther(out[k+1:], prev.End, m.Start) {
				prev.End = m.End
				joined = true
			}
			break
		}
		if !joined {
			out = append(out, m)
		}
	}
	return out
}

// separatedByOther reports whether another mention lies between two candidates
func separatedByOther(later []Mention, end, start int) bool {
	for _, o := range later {
		if o.Start >= end && o.Start < start {
			return true
		}
	}
	return false
}

func isASCIIAlnum(r rune) bool {
	return isASCIILetter(r) || (r >= '0' && r <= '9')
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
