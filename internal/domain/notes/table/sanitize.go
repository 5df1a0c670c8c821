package table

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Transliterate folds s to its closest ASCII spelling. Accents are dropped,
// letters such as "ß" are spelled out and symbols get a readable form, so
// "°" becomes "deg" and "€" becomes "EUR".
func Transliterate(s string) string {
	return unidecode.Unidecode(norm.NFC.String(s))
}

// SanitizeLabel normalizes a column label to a stable key: ASCII only,
// spaces as underscores, nothing but [a-z0-9_], lowercase.
// Transliteration runs first so "ç" becomes "c" instead of being dropped.
func SanitizeLabel(label string) string {
	s := Transliterate(label)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// SanitizeColumns returns a copy of t with every label passed through
// SanitizeLabel. Cells are untouched. Distinct labels may collapse into the
// same key; sinks that need unique keys resolve that themselves.
func SanitizeColumns(t *Table) *Table {
	out := t.Clone()
	for i, c := range out.Columns {
		out.Columns[i] = SanitizeLabel(c)
	}
	return out
}
