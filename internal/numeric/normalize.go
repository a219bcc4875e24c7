package numeric

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var superscripts = map[rune]byte{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
	'⁻': '-', '⁺': '+',
}

var subscripts = map[rune]byte{
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
	'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
}

// folded after NFKC, which leaves these alone
var glyphReplacer = strings.NewReplacer(
	"−", "-", // minus sign
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"〜", "~",
	"∼", "~",
	"∆", "Δ",
)

// NormalizeText rewrites typographic number conventions into plain forms:
// superscript runs become ^digits, subscripts become digits, full-width
// characters fold through NFKC (℃ → °C, ％ → %, ～ → ~).
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSuper := false
	for _, r := range s {
		if d, ok := superscripts[r]; ok {
			if !inSuper {
				b.WriteByte('^')
				inSuper = true
			}
			b.WriteByte(d)
			continue
		}
		inSuper = false
		if d, ok := subscripts[r]; ok {
			b.WriteByte(d)
			continue
		}
		b.WriteRune(r)
	}

	return glyphReplacer.Replace(norm.NFKC.String(b.String()))
}
