package units

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxUnitRunes = 32

// stop runes never belong to a unit token
const unitStops = ",;:()[]{}=<>，。；：（）、"

// MatchPrefix detects a unit at the start of text, as found right after a
// number. Leading whitespace is skipped. It returns the unit and the number of
// bytes of text consumed, including the skipped whitespace.
func MatchPrefix(text string) (Unit, int, bool) {
	var (
		norm []byte
		ends []int // ends[i] is the text offset after the rune that produced norm[i]
		prev rune
	)

	i, runes := 0, 0
	for i < len(text) && runes < maxUnitRunes {
		r, w := utf8.DecodeRuneInString(text[i:])
		if strings.ContainsRune(unitStops, r) {
			break
		}
		if unicode.IsSpace(r) {
			if len(norm) > 0 {
				next, _ := utf8.DecodeRuneInString(strings.TrimLeftFunc(text[i:], unicode.IsSpace))
				// a space between two words ends the token
				if isASCIIAlnum(prev) && isASCIILetter(next) {
					break
				}
			}
			i += w
			continue
		}
		piece := Normalize(string(r))
		for j := 0; j < len(piece); j++ {
			norm = append(norm, piece[j])
			ends = append(ends, i+w)
		}
		prev = r
		i += w
		runes++
	}
	if len(norm) == 0 {
		return Unit{}, 0, false
	}

	key := string(norm)
	for _, e := range sortedAliases {
		if !strings.HasPrefix(key, e.alias) {
			continue
		}
		end := ends[len(e.alias)-1]
		last, _ := utf8.DecodeLastRuneInString(e.alias)
		if isASCIIAlnum(last) && end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if isASCIIAlnum(next) {
				continue
			}
		}
		return *e.unit, end, true
	}
	return Unit{}, 0, false
}

// MatchSuffix detects a unit token at the end of text, as found right before a
// number (HV 450). Only exact aliases count. It returns the unit and the byte
// offset where the token starts.
func MatchSuffix(text string) (Unit, int, bool) {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	start := len(trimmed)
	runes := 0
	for start > 0 && runes < maxUnitRunes {
		r, w := utf8.DecodeLastRuneInString(trimmed[:start])
		if unicode.IsSpace(r) || strings.ContainsRune(unitStops, r) {
			break
		}
		start -= w
		runes++
	}
	token := trimmed[start:]
	if token == "" {
		return Unit{}, 0, false
	}
	u, ok := byAlias[Normalize(token)]
	if !ok {
		return Unit{}, 0, false
	}
	return *u, start, true
}
