package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanLabel trims a label and collapses internal runs of whitespace
func CleanLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns a comparison key for s: accents removed, lower case,
// whitespace collapsed. "Vías " and "VIAS" fold to the same key.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(CleanLabel(folded))
}
