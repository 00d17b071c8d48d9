// Package gazetteer resolves place names to coordinates against a maintained
// reference table. Matching is exact on the normalized name; there is no fuzzy
// lookup, so resolution stays deterministic and auditable.
package gazetteer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes characters and drops combining marks,
// so "Orléans" and "Orleans" normalize to the same key.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize produces the canonical lookup key for a place name:
// lowercased, diacritics stripped, trimmed, internal whitespace collapsed.
func Normalize(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		// Transform failures only occur on malformed input; fall back to the
		// raw string so lookup still behaves deterministically.
		stripped = name
	}

	lower := strings.ToLower(stripped)
	return strings.Join(strings.Fields(lower), " ")
}
