package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/steelminer/internal/numeric"
)

var (
	hyphenBreak = regexp.MustCompile(`(\p{L})-[ \t]*\r?\n[ \t]*`)
	spaceRun    = regexp.MustCompile(`[ \t\r\n\f\v\x{00A0}\x{3000}]+`)
)

// CleanText prepares extracted document text for matching:
// joins words hyphenated across line breaks, folds typographic forms
// (superscripts, full-width digits, ℃) and collapses whitespace.
func CleanText(text string) string {
	text = hyphenBreak.ReplaceAllString(text, "$1")
	text = numeric.NormalizeText(text)
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
