package numeric

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ErrUnparseable is returned when text holds no usable number
var ErrUnparseable = eris.New("numeric: unparseable expression")

// Expression is a parsed numeric token
type Expression struct {
	Value       float64 // midpoint when IsRange
	Min         float64
	Max         float64
	IsRange     bool
	Approximate bool
	Operator    string // <, >, ≤, ≥
}

var (
	// mantissa, then ×10^n or x10-n
	sciPattern = regexp.MustCompile(`^([-+]?[\d.,]+)[×xX*]10(?:\^([-+]?\d+)|([-+]\d+))$`)
	powPattern = regexp.MustCompile(`^10\^([-+]?\d+)$`)
	expPattern = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?[eE][-+]?\d+$`)
	thousands  = regexp.MustCompile(`^[-+]?[1-9]\d{0,2}(?:,\d{3})+$`)
)

var operators = []struct {
	glyph string
	op    string
}{
	{"<=", "≤"},
	{">=", "≥"},
	{"≤", "≤"},
	{"≥", "≥"},
	{"<", "<"},
	{">", ">"},
}

// Parse turns a raw numeric token into a value, optional range and qualifiers.
// "~0.25–0.30", "≤0.005", "1.2×10^3", "2.5×10^-1 to 3.0×10^-1", "12,5".
func Parse(raw string) (Expression, error) {
	s := strings.TrimSpace(NormalizeText(raw))
	var expr Expression

	// qualifiers may stack: "≈ <"
	for {
		switch {
		case strings.HasPrefix(s, "~"):
			expr.Approximate = true
			s = strings.TrimSpace(s[1:])
			continue
		case strings.HasPrefix(s, "≈"):
			expr.Approximate = true
			s = strings.TrimSpace(s[len("≈"):])
			continue
		}
		matched := false
		for _, o := range operators {
			if strings.HasPrefix(s, o.glyph) {
				expr.Operator = o.op
				s = strings.TrimSpace(s[len(o.glyph):])
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}

	s = strings.ReplaceAll(s, "%", "")
	if s == "" {
		return Expression{}, eris.Wrapf(ErrUnparseable, "empty expression %q", raw)
	}

	if left, right, ok := splitRange(s); ok {
		a, errA := parseSingle(left)
		b, errB := parseSingle(right)
		if errA == nil && errB == nil {
			expr.IsRange = true
			expr.Min = math.Min(a, b)
			expr.Max = math.Max(a, b)
			expr.Value = (a + b) / 2
			if math.IsInf(expr.Value, 0) {
				expr.Value = a/2 + b/2
			}
			return expr, nil
		}
	}

	v, err := parseSingle(s)
	if err != nil {
		return Expression{}, eris.Wrapf(ErrUnparseable, "expression %q", raw)
	}
	expr.Value = v
	expr.Min, expr.Max = v, v
	return expr, nil
}

// splitRange splits at the first separator that is not a sign
func splitRange(s string) (string, string, bool) {
	for i, r := range s {
		var sepLen int
		switch {
		case r == '-' || r == '–' || r == '—' || r == '~' || r == '～' || r == '至':
			sepLen = utf8.RuneLen(r)
		case r == ' ' && strings.HasPrefix(s[i:], " to "):
			sepLen = len(" to ")
		default:
			continue
		}

		left := strings.TrimSpace(s[:i])
		if left == "" || isSignContext(left) {
			continue
		}
		right := strings.TrimSpace(s[i+sepLen:])
		if right == "" {
			return "", "", false
		}
		return left, right, true
	}
	return "", "", false
}

// isSignContext reports whether a separator after prefix would be an exponent sign
func isSignContext(prefix string) bool {
	last, _ := utf8.DecodeLastRuneInString(prefix)
	switch last {
	case '^', 'e', 'E', '-', '–', '—', '~', '至':
		return true
	}
	p := strings.ReplaceAll(prefix, " ", "")
	for _, mark := range []string{"×10", "x10", "X10", "*10"} {
		if strings.HasSuffix(p, mark) {
			return true
		}
	}
	return false
}

func parseSingle(s string) (float64, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrUnparseable
	}

	if m := sciPattern.FindStringSubmatch(s); m != nil {
		mantissa, err := parseDecimal(m[1])
		if err != nil {
			return 0, err
		}
		expText := m[2]
		if expText == "" {
			expText = m[3]
		}
		exp, err := strconv.Atoi(strings.TrimPrefix(expText, "+"))
		if err != nil {
			return 0, ErrUnparseable
		}
		return finite(mantissa * math.Pow10(exp))
	}

	if m := powPattern.FindStringSubmatch(s); m != nil {
		exp, err := strconv.Atoi(strings.TrimPrefix(m[1], "+"))
		if err != nil {
			return 0, ErrUnparseable
		}
		return finite(math.Pow10(exp))
	}

	if expPattern.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ErrUnparseable
		}
		return v, nil
	}

	return parseDecimal(s)
}

// finite rejects exponents that overflow to Inf or NaN
func finite(v float64) (float64, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrUnparseable
	}
	return v, nil
}

// parseDecimal handles comma-as-decimal and comma-as-thousands.
// Without a '.', "0,125" and "12,5" are decimals while "1,200" is grouped.
func parseDecimal(s string) (float64, error) {
	if strings.Contains(s, ",") {
		switch {
		case strings.Contains(s, "."):
			s = strings.ReplaceAll(s, ",", "")
		case thousands.MatchString(s):
			s = strings.ReplaceAll(s, ",", "")
		case strings.Count(s, ",") == 1:
			s = strings.Replace(s, ",", ".", 1)
		default:
			return 0, ErrUnparseable
		}
	}

	for i, r := range s {
		if (r == '-' || r == '+') && i == 0 {
			continue
		}
		if r != '.' && (r < '0' || r > '9') {
			return 0, ErrUnparseable
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrUnparseable
	}
	return v, nil
}
