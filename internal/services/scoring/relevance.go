package scoring

import "github.com/ternarybob/indago/internal/services/dictionary"

// Relevance is the weighted lemma-hit count over the three text fields:
// 3 per title hit, 2 per description hit, 1 per body hit. Pure function of
// its inputs; an empty dictionary always scores zero.
func Relevance(dict *dictionary.Dictionary, language, title, description, body string) int {
	if dict == nil || dict.Empty() {
		return 0
	}

	score := 3*countHits(dict, language, title) +
		2*countHits(dict, language, description) +
		countHits(dict, language, body)
	return score
}

// countHits counts dictionary lemma occurrences in the text, every
// occurrence counting once.
func countHits(dict *dictionary.Dictionary, language, text string) int {
	if text == "" {
		return 0
	}
	hits := 0
	for _, token := range dictionary.Tokenize(text, language) {
		if dict.Has(token) {
			hits++
		}
	}
	return hits
}
