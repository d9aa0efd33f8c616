package migration

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes to NFD, drops combining marks and recomposes,
// so "Grúa" and "Grua" produce the same key.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func removeDiacritics(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTaxID reduces a Chilean RUT to its comparison key: lowercased
// with everything but digits and the check letter removed. "12.345.678-K",
// "RUT 12345678-k" and "12345678/K" normalize to the same key. Idempotent.
func NormalizeTaxID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= '0' && r <= '9') || r == 'k' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePlate reduces a vehicle plate to its comparison key: uppercase
// with everything but letters and digits removed. "ab-cd 12" → "ABCD12".
// Idempotent.
func NormalizePlate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeText reduces free text (names, headers, service types) to its
// comparison key: diacritics stripped, lowercased, punctuation dropped,
// runs of whitespace collapsed to single spaces, trimmed. Idempotent.
func NormalizeText(s string) string {
	s = strings.ToLower(removeDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			// punctuation and whitespace both act as soft separators
			space = true
		}
	}
	return b.String()
}

// CleanCell trims surrounding whitespace and zero-width/BOM characters
// from a raw cell value. Interior content is left untouched.
func CleanCell(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF' || r == '\u200B'
	})
}
