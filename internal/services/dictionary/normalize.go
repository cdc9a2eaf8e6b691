package dictionary

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks: "é" becomes "e". Falls back to
// the input on transform failure.
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsStripper, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeToken lowercases, strips diacritics and stems a single token.
// Returns "" for tokens too short to carry signal.
func NormalizeToken(token, language string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = StripDiacritics(token)
	if len(token) < 2 {
		return ""
	}
	return StemmerFor(language)(token)
}

// Tokenize splits text on non-alphanumeric boundaries and normalizes each
// token. The scorers and the dictionary build share this path, so a keyword
// and the same word in a page always land on the same lemma.
func Tokenize(text, language string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if lemma := NormalizeToken(field, language); lemma != "" {
			tokens = append(tokens, lemma)
		}
	}
	return tokens
}
