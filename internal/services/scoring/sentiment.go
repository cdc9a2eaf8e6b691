package scoring

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/dictionary"
)

// Sentiment statuses. Unsupported language and empty body are outcomes,
// not errors.
const (
	SentimentStatusOK          = "ok"
	SentimentStatusUnsupported = "unsupported_lang"
	SentimentStatusNoContent   = "no_content"
)

// SentimentResult is one analysis outcome.
type SentimentResult struct {
	Score      float64
	Label      string
	Confidence float64
	Status     string
	Model      string
}

// SentimentAnalyzer scores polarity with the per-language lexicon and asks
// the LLM for a second opinion when lexicon confidence is low.
type SentimentAnalyzer struct {
	config common.ScoringConfig
	llm    interfaces.LLMAdapter
	logger arbor.ILogger

	mu       sync.Mutex
	lexicons map[string]*Lexicon
}

// NewSentimentAnalyzer creates the analyzer. llm may be nil, which disables
// blending.
func NewSentimentAnalyzer(config common.ScoringConfig, llm interfaces.LLMAdapter, logger arbor.ILogger) *SentimentAnalyzer {
	return &SentimentAnalyzer{
		config:   config,
		llm:      llm,
		logger:   logger,
		lexicons: make(map[string]*Lexicon),
	}
}

// Analyze scores the text. useLLM gates the blend per job so batch runs can
// opt out regardless of global config.
func (a *SentimentAnalyzer) Analyze(ctx context.Context, text, language string, useLLM bool) SentimentResult {
	if strings.TrimSpace(text) == "" {
		return SentimentResult{Status: SentimentStatusNoContent}
	}
	if !a.supported(language) {
		return SentimentResult{Status: SentimentStatusUnsupported}
	}

	lexicon, err := a.lexicon(language)
	if err != nil {
		a.logger.Warn().Err(err).Str("language", language).Msg("Lexicon unavailable")
		return SentimentResult{Status: SentimentStatusUnsupported}
	}

	result := a.lexiconScore(lexicon, text)

	if useLLM && a.llm != nil && result.Confidence < a.config.SentimentLowConfidence {
		opinion, err := a.llm.BlendSentiment(ctx, text, language)
		if err != nil {
			a.logger.Warn().Err(err).Msg("LLM sentiment opinion failed, keeping lexicon score")
		} else {
			result.Score = (result.Score + opinion.Score) / 2
			result.Confidence = (result.Confidence + opinion.Confidence) / 2
			result.Label = labelFor(result.Score)
			result.Model = opinion.Model
		}
	}

	return result
}

// lexiconScore tallies polarity hits. Confidence grows smoothly with hit
// count: hits/(hits+10), so a handful of matches stays tentative.
func (a *SentimentAnalyzer) lexiconScore(lexicon *Lexicon, text string) SentimentResult {
	positive, negative := 0, 0
	for _, token := range tokenizePlain(text) {
		switch lexicon.Polarity(token) {
		case 1:
			positive++
		case -1:
			negative++
		}
	}

	hits := positive + negative
	result := SentimentResult{Status: SentimentStatusOK}
	if hits > 0 {
		result.Score = float64(positive-negative) / float64(hits)
	}
	result.Confidence = float64(hits) / float64(hits+10)
	result.Label = labelFor(result.Score)
	return result
}

func (a *SentimentAnalyzer) supported(language string) bool {
	for _, lang := range a.config.SentimentLanguages {
		if strings.EqualFold(lang, language) {
			return true
		}
	}
	return false
}

func (a *SentimentAnalyzer) lexicon(language string) (*Lexicon, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lex, ok := a.lexicons[language]; ok {
		return lex, nil
	}
	lex, err := LoadLexicon(language)
	if err != nil {
		return nil, err
	}
	a.lexicons[language] = lex
	return lex, nil
}

// tokenizePlain lowercases and strips diacritics without stemming, since
// lexicon entries are surface forms.
func tokenizePlain(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := dictionary.StripDiacritics(strings.ToLower(field))
		if len(token) >= 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func labelFor(score float64) string {
	switch {
	case score > 0.1:
		return models.SentimentPositive
	case score < -0.1:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
