package scoring

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ternarybob/indago/internal/services/dictionary"
	"gopkg.in/yaml.v3"
)

//go:embed lexicons/*.yaml
var lexiconFS embed.FS

// Lexicon holds polarity word sets for one language. Lookups run over
// lowercased, diacritics-stripped tokens.
type Lexicon struct {
	Language string
	positive map[string]struct{}
	negative map[string]struct{}
}

type lexiconFile struct {
	Language string   `yaml:"language"`
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// LoadLexicon reads the embedded lexicon for a language code.
func LoadLexicon(language string) (*Lexicon, error) {
	data, err := lexiconFS.ReadFile(fmt.Sprintf("lexicons/%s.yaml", strings.ToLower(language)))
	if err != nil {
		return nil, fmt.Errorf("no lexicon for language %q: %w", language, err)
	}

	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon for %q: %w", language, err)
	}

	lex := &Lexicon{
		Language: language,
		positive: make(map[string]struct{}, len(file.Positive)),
		negative: make(map[string]struct{}, len(file.Negative)),
	}
	for _, word := range file.Positive {
		lex.positive[normalizeLexiconWord(word)] = struct{}{}
	}
	for _, word := range file.Negative {
		lex.negative[normalizeLexiconWord(word)] = struct{}{}
	}
	return lex, nil
}

// Polarity returns +1, -1 or 0 for a token.
func (l *Lexicon) Polarity(token string) int {
	if _, ok := l.positive[token]; ok {
		return 1
	}
	if _, ok := l.negative[token]; ok {
		return -1
	}
	return 0
}

func normalizeLexiconWord(word string) string {
	return dictionary.StripDiacritics(strings.ToLower(strings.TrimSpace(word)))
}
