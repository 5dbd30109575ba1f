// Package normalize folds mention surface text for candidate grouping.
// Folding is deterministic and side-effect free; original surface text is
// never altered in pipeline output.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, making the
// fold diacritic-insensitive ("José" and "Jose" compare equal).
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// honorifics are leading title tokens that never distinguish entities.
var honorifics = map[string]bool{
	"mr":     true,
	"mrs":    true,
	"ms":     true,
	"mx":     true,
	"dr":     true,
	"prof":   true,
	"sir":    true,
	"dame":   true,
	"lord":   true,
	"lady":   true,
	"rev":    true,
	"fr":     true,
	"gen":    true,
	"col":    true,
	"sen":    true,
	"pres":   true,
	"madam":  true,
	"madame": true,
}

// Fold lowercases, removes diacritics, maps punctuation to spaces, collapses
// whitespace, and strips leading honorific tokens. If stripping honorifics
// would leave nothing (the surface was only a title), the pre-strip fold is
// returned so the mention still groups with its exact duplicates.
func Fold(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	stripped := tokens
	for len(stripped) > 0 && honorifics[stripped[0]] {
		stripped = stripped[1:]
	}
	if len(stripped) == 0 {
		stripped = tokens
	}
	return strings.Join(stripped, " ")
}

// Tokens returns the folded surface split into tokens.
func Tokens(s string) []string {
	folded := Fold(s)
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}
