package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
)

// Segmenter splits cleaned text into sentences.
// Method is stamped into every measurement extracted from its output.
type Segmenter interface {
	Method() string
	Split(text string) []string
}

// Segmenter modes accepted by NewSegmenter
const (
	SegmenterAuto      = "auto"
	SegmenterPunkt     = "punkt"
	SegmenterHeuristic = "heuristic"
	SegmenterRegex     = "regex"
)

// NewSegmenter selects a segmenter once. Auto prefers the punkt model and
// degrades to the heuristic splitter when the model cannot be loaded.
func NewSegmenter(mode string, logger *zap.Logger) Segmenter {
	if logger == nil {
		logger = zap.L()
	}
	switch mode {
	case SegmenterRegex:
		return RegexSegmenter{}
	case SegmenterHeuristic:
		return HeuristicSegmenter{}
	case SegmenterPunkt, SegmenterAuto, "":
		p, err := NewPunktSegmenter()
		if err == nil {
			return p
		}
		logger.Warn("punkt model unavailable, using heuristic sentence splitting", zap.Error(err))
		return HeuristicSegmenter{}
	default:
		logger.Warn("unknown segmenter mode, using heuristic", zap.String("mode", mode))
		return HeuristicSegmenter{}
	}
}

// RegexSegmenter splits on terminal punctuation followed by whitespace,
// and on CJK terminators unconditionally
type RegexSegmenter struct{}

// Method implements Segmenter
func (RegexSegmenter) Method() string { return model.MethodRegexSentences }

// Split implements Segmenter
func (RegexSegmenter) Split(text string) []string {
	return splitOn(text, func(text string, i int, r rune) bool {
		return isLatinBoundary(text, i, r)
	})
}

// HeuristicSegmenter is RegexSegmenter plus abbreviation, initial and
// decimal handling, so "approx. 950 °C" and "wt. %" stay in one sentence
type HeuristicSegmenter struct{}

// Method implements Segmenter
func (HeuristicSegmenter) Method() string { return model.MethodHeuristicSentences }

// Split implements Segmenter
func (HeuristicSegmenter) Split(text string) []string {
	return splitOn(text, func(text string, i int, r rune) bool {
		if !isLatinBoundary(text, i, r) {
			return false
		}
		if r != '.' {
			return true
		}
		word := lastWord(text[:i])
		if abbreviations[strings.ToLower(word)] {
			return false
		}
		// initials: "J. Smith"
		if utf8.RuneCountInString(word) == 1 && unicode.IsUpper([]rune(word)[0]) {
			return false
		}
		// a lowercase continuation is rarely a new sentence
		next := nextWord(text[i+1:])
		if next != "" {
			first, _ := utf8.DecodeRuneInString(next)
			if unicode.IsLower(first) {
				return false
			}
		}
		return true
	})
}

var abbreviations = map[string]bool{
	"approx": true, "ca": true, "e.g": true, "i.e": true, "al": true, "etc": true,
	"fig": true, "figs": true, "eq": true, "eqs": true, "ref": true, "refs": true,
	"no": true, "vs": true, "resp": true, "wt": true, "vol": true, "avg": true,
	"tab": true,
}

// PunktSegmenter uses the neurosnap/sentences English punkt model, then
// splits the result on CJK terminators the model does not know
type PunktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the embedded English model
func NewPunktSegmenter() (*PunktSegmenter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &PunktSegmenter{tokenizer: t}, nil
}

// Method implements Segmenter
func (p *PunktSegmenter) Method() string { return model.MethodNLPPunkt }

// Split implements Segmenter
func (p *PunktSegmenter) Split(text string) []string {
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		out = append(out, splitOn(s.Text, func(string, int, rune) bool { return false })...)
	}
	return out
}

func splitOn(text string, boundary func(text string, i int, r rune) bool) []string {
	var out []string
	start := 0
	for i, r := range text {
		if !isCJKTerminator(r) && !boundary(text, i, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isCJKTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；':
		return true
	}
	return false
}

// isLatinBoundary: '.', '!', '?' or ';' followed by whitespace, a CJK rune or the end
func isLatinBoundary(text string, i int, r rune) bool {
	switch r {
	case '.', '!', '?', ';':
	default:
		return false
	}
	rest := text[i+1:]
	if rest == "" {
		return true
	}
	next, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(next) || unicode.Is(unicode.Han, next)
}

func lastWord(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == '['
	})
	return s[i+1:]
}

func nextWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
