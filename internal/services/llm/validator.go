package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// ErrCapExceeded signals the per-job call budget is spent. Callers record
// the expression with a NULL verdict and count cap_exceeded; this is an
// operational outcome, not an error path.
var ErrCapExceeded = errors.New("llm validation cap exceeded")

const (
	validateSystemPrompt = "You review web pages for a research project. " +
		"Answer with a single word, yes or no: does the page belong to the project topic?"

	sentimentSystemPrompt = "You estimate the sentiment of a text. " +
		`Reply with JSON only: {"score": <-1..1>, "confidence": <0..1>}.`
)

// NewAdapter selects the configured provider.
func NewAdapter(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.LLMAdapter, error) {
	switch config.LLM.Provider {
	case "gemini":
		return NewGeminiAdapter(ctx, config.Gemini, logger)
	case "claude":
		return NewClaudeAdapter(config.Claude, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.LLM.Provider)
	}
}

// Validator wraps the provider adapter with the per-job call cap, the
// per-content cache and the single transport retry. One Validator instance
// lives per job run, so the cap resets between jobs while the cache keyed
// by content hash survives within one.
type Validator struct {
	adapter interfaces.LLMAdapter
	config  common.LLMConfig
	logger  arbor.ILogger

	mu    sync.Mutex
	calls int
	cache map[string]*interfaces.Verdict
}

// NewValidator creates a validator with a fresh call budget.
func NewValidator(adapter interfaces.LLMAdapter, config common.LLMConfig, logger arbor.ILogger) *Validator {
	return &Validator{
		adapter: adapter,
		config:  config,
		logger:  logger,
		cache:   make(map[string]*interfaces.Verdict),
	}
}

// Validate produces a topic-fit verdict for one expression. The cache is
// consulted before the cap, so repeated content never burns budget.
func (v *Validator) Validate(ctx context.Context, land *models.Land, expr *models.Expression) (*interfaces.Verdict, error) {
	if v.adapter == nil {
		return nil, errors.New("no llm adapter configured")
	}

	v.mu.Lock()
	if cached, ok := v.cache[expr.ContentHash]; ok && expr.ContentHash != "" {
		v.mu.Unlock()
		return cached, nil
	}
	if v.config.ValidationCap > 0 && v.calls >= v.config.ValidationCap {
		v.mu.Unlock()
		return nil, ErrCapExceeded
	}
	v.calls++
	v.mu.Unlock()

	prompt := buildValidationPrompt(land, expr, v.config.ReadableChars)

	callCtx := ctx
	if v.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.config.Timeout)
		defer cancel()
	}

	verdict, err := v.adapter.Validate(callCtx, prompt)
	if err != nil && ctx.Err() == nil {
		// Single retry on transport error.
		v.logger.Warn().
			Err(err).
			Str("expression_id", expr.ID).
			Msg("LLM validation failed, retrying once")
		verdict, err = v.adapter.Validate(callCtx, prompt)
	}
	if err != nil {
		return nil, err
	}

	if expr.ContentHash != "" {
		v.mu.Lock()
		v.cache[expr.ContentHash] = verdict
		v.mu.Unlock()
	}
	return verdict, nil
}

// Calls returns the number of API calls spent so far.
func (v *Validator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// buildValidationPrompt assembles the land context and the page excerpt.
func buildValidationPrompt(land *models.Land, expr *models.Expression, readableChars int) string {
	if readableChars <= 0 {
		readableChars = 1500
	}
	excerpt := expr.Readable
	if len(excerpt) > readableChars {
		excerpt = excerpt[:readableChars]
	}

	var b strings.Builder
	b.WriteString("Project description: ")
	b.WriteString(land.Description)
	b.WriteString("\nProject keywords: ")
	b.WriteString(strings.Join(land.Keywords, ", "))
	b.WriteString("\n\nPage title: ")
	b.WriteString(expr.Title)
	b.WriteString("\nPage excerpt:\n")
	b.WriteString(excerpt)
	b.WriteString("\n\nDoes this page belong to the project topic? Answer yes or no.")
	return b.String()
}

// affirmativeTokens are matched case-insensitively when the reply is not
// strict JSON.
var affirmativeTokens = []string{"yes", "oui", "true", "relevant"}

// NormalizeVerdict folds a free-form reply onto yes/no. JSON replies with a
// verdict field are honored first, then affirmative-token substring match.
func NormalizeVerdict(raw string) string {
	trimmed := strings.TrimSpace(raw)

	var structured struct {
		Verdict string `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(trimmed), &structured); err == nil && structured.Verdict != "" {
		trimmed = structured.Verdict
	}

	lower := strings.ToLower(trimmed)
	for _, token := range affirmativeTokens {
		if strings.Contains(lower, token) {
			return models.VerdictYes
		}
	}
	return models.VerdictNo
}

// ParseSentimentReply reads the JSON sentiment estimate, tolerating code
// fences and surrounding prose.
func ParseSentimentReply(raw string) (score, confidence float64, err error) {
	trimmed := strings.TrimSpace(raw)
	if start := strings.IndexByte(trimmed, '{'); start >= 0 {
		if end := strings.LastIndexByte(trimmed, '}'); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var reply struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
		return 0, 0, fmt.Errorf("unparseable sentiment reply: %w", err)
	}

	score = clamp(reply.Score, -1, 1)
	confidence = clamp(reply.Confidence, 0, 1)
	return score, confidence, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sentimentPrompt(text, language string) string {
	const maxChars = 2000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return fmt.Sprintf("Language: %s\nText:\n%s", language, text)
}
