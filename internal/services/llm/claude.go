package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// ClaudeAdapter implements the LLM contract over the Anthropic API.
type ClaudeAdapter struct {
	config common.ClaudeConfig
	client anthropic.Client
	logger arbor.ILogger
}

// NewClaudeAdapter creates the adapter. The API key must be resolved by the
// config layer before this point.
func NewClaudeAdapter(config common.ClaudeConfig, logger arbor.ILogger) (*ClaudeAdapter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key)")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	adapter := &ClaudeAdapter{
		config: config,
		client: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		logger: logger,
	}

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", config.MaxTokens).
		Msg("Claude adapter initialized")
	return adapter, nil
}

// ModelName returns the configured model identifier.
func (a *ClaudeAdapter) ModelName() string {
	return a.config.Model
}

// Validate asks for a yes/no verdict on the prompt.
func (a *ClaudeAdapter) Validate(ctx context.Context, prompt string) (*interfaces.Verdict, error) {
	raw, err := a.complete(ctx, validateSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return &interfaces.Verdict{
		Verdict: NormalizeVerdict(raw),
		Model:   a.config.Model,
		Raw:     raw,
	}, nil
}

// BlendSentiment asks for a sentiment estimate used to blend with the
// lexicon score.
func (a *ClaudeAdapter) BlendSentiment(ctx context.Context, text, language string) (*interfaces.SentimentOpinion, error) {
	raw, err := a.complete(ctx, sentimentSystemPrompt, sentimentPrompt(text, language))
	if err != nil {
		return nil, err
	}
	score, confidence, err := ParseSentimentReply(raw)
	if err != nil {
		return nil, err
	}
	return &interfaces.SentimentOpinion{
		Score:      score,
		Confidence: confidence,
		Model:      a.config.Model,
	}, nil
}

func (a *ClaudeAdapter) complete(ctx context.Context, system, prompt string) (string, error) {
	maxTokens := a.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from claude API")
	}
	return text.String(), nil
}
