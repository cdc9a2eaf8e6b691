package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiAdapter implements the LLM contract over the Gemini API.
type GeminiAdapter struct {
	config common.GeminiConfig
	client *genai.Client
	logger arbor.ILogger
}

// NewGeminiAdapter creates the adapter.
func NewGeminiAdapter(ctx context.Context, config common.GeminiConfig, logger arbor.ILogger) (*GeminiAdapter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY or gemini.api_key)")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Msg("Gemini adapter initialized")

	return &GeminiAdapter{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// ModelName returns the configured model identifier.
func (a *GeminiAdapter) ModelName() string {
	return a.config.Model
}

// Validate asks for a yes/no verdict on the prompt.
func (a *GeminiAdapter) Validate(ctx context.Context, prompt string) (*interfaces.Verdict, error) {
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
func (a *GeminiAdapter) BlendSentiment(ctx context.Context, text, language string) (*interfaces.SentimentOpinion, error) {
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

func (a *GeminiAdapter) complete(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := a.client.Models.GenerateContent(ctx, a.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from gemini API")
	}
	return text.String(), nil
}
