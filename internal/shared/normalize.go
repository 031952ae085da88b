package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName reduces an artist name to the form used for cache fingerprints and candidate matching.
//
// Steps: strip diacritics from Latin letters, case-fold, drop trailing "(...)" or "[...]" suffixes,
// collapse whitespace. "Björk" and "BJORK" normalize alike; "Sigur Rós (Live)" normalizes to "sigur ros".
// Marks on other scripts are letters in their own right, so "ガガ" and "カカ" stay distinct.
func NormalizeName(name string) string {
	folded := cases.Fold().String(stripLatinMarks(name))
	folded = trimSuffixGroups(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// stripLatinMarks drops nonspacing marks that follow a Latin base letter.
func stripLatinMarks(s string) string {
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	latin := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			if latin {
				continue
			}
		} else {
			latin = unicode.Is(unicode.Latin, r)
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// trimSuffixGroups removes trailing parenthetical or bracketed groups, keeping the name if nothing else remains.
func trimSuffixGroups(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return s
		}

		var open byte
		switch trimmed[len(trimmed)-1] {
		case ')':
			open = '('
		case ']':
			open = '['
		default:
			return trimmed
		}

		idx := strings.LastIndexByte(trimmed, open)
		if idx <= 0 || strings.TrimSpace(trimmed[:idx]) == "" {
			return trimmed
		}
		s = trimmed[:idx]
	}
}
