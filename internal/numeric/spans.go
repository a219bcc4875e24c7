package numeric

import (
	"regexp"
	"unicode/utf8"
)

// Span is a numeric token located in text. Offsets are byte offsets.
type Span struct {
	Start int
	End   int
	Text  string
	Expr  Expression
}

const (
	numPart   = `(?:\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)`
	sciPart   = `(?:\s*[×xX*]\s*10(?:\^[-+]?\d+|-\d+)|[eE][-+]?\d+)?`
	valuePart = `(?:10\^[-+]?\d+|` + numPart + sciPart + `)`
	qualPart  = `(?:(?:[~≈]|<=|>=|[<>≤≥])\s*){0,2}`
	rangePart = `(?:\s*%?\s*(?:-|–|—|~|至)\s*` + valuePart + `|\s+to\s+` + valuePart + `)?`
)

var spanPattern = regexp.MustCompile(qualPart + valuePart + rangePart)

// FindSpans returns every parseable numeric token in text, in order.
// Digits glued to a preceding letter ("T1", "HV10", "mm2") are not values.
func FindSpans(text string) []Span {
	var spans []Span
	for _, loc := range spanPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			if isASCIILetter(prev) || prev == '^' || prev == '_' {
				continue
			}
			if prev == '-' && isDigit(text[start]) && signPosition(text, start-1) {
				start--
			}
		}
		raw := text[start:end]
		expr, err := Parse(raw)
		if err != nil {
			continue
		}
		spans = append(spans, Span{Start: start, End: end, Text: raw, Expr: expr})
	}
	return spans
}

// signPosition reports whether the '-' at i reads as a sign rather than a hyphen
func signPosition(text string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	switch prev {
	case ' ', '\t', '\n', '(', '[', '=', ':', ',', '，', '：', '（':
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
