package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldKey lower-cases s, strips combining diacritics and trims surrounding
// whitespace: "  Santa Maria do Suaçuí " -> "santa maria do suacui".
func FoldKey(s string) string {
	// A chained transformer keeps state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.TrimSpace(folded)
}

// joinKey is the composite key used for every gazetteer join.
type joinKey struct {
	name string
	uf   string
}

func newJoinKey(name, uf string) joinKey {
	return joinKey{name: FoldKey(name), uf: strings.ToUpper(strings.TrimSpace(uf))}
}
