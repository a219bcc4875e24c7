package units

import (
	"strings"
	"unicode"
)

var unitReplacer = strings.NewReplacer(
	"℃", "°c",
	"℉", "°f",
	"％", "%",
	"º", "°",
	"˚", "°",
	"µ", "μ",
	"²", "2",
	"³", "3",
	"¹", "1",
	"⁻", "-",
	"⁺", "+",
	"−", "-",
	"·", "",
	"⋅", "",
	"•", "",
	"^", "",
	"．", ".",
	"／", "/",
)

// Normalize folds unit text to the form aliases are stored in:
// no whitespace or middle dots, unicode variants mapped, lowercase.
func Normalize(raw string) string {
	s := unitReplacer.Replace(raw)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isASCIILetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}
