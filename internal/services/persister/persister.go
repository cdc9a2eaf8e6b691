package persister

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// CrawlPatch carries every observable field of one terminal crawl attempt.
// Nil pointers leave the stored value untouched.
type CrawlPatch struct {
	HTTPStatus   int
	Title        *string
	Description  *string
	Language     *string
	CanonicalURL *string
	RawContent   *string
	Readable     *string
	WordCount    *int
	Source       *string

	Relevance           *int
	QualityScore        *float64
	SentimentScore      *float64
	SentimentLabel      *string
	SentimentConfidence *float64

	ValidLLM   *string
	ValidModel *string

	ContentHash *string
	CrawledAt   *time.Time
	ReadableAt  *time.Time
}

// Service owns per-expression commit discipline: every write covers exactly
// one expression, so a crashed or cancelled job leaves a consistent prefix
// of completed work behind. An expression is a single record in the store,
// which makes the record write the transaction.
type Service struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewService creates the persister.
func NewService(store interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// RecordCrawlOutcome applies the patch and stamps approved_at in one atomic
// write. This is the only code path that sets approved_at, and it sets it
// exactly once per terminal attempt: success and permanent failure both
// land here, transient failures with retries left never do.
func (s *Service) RecordCrawlOutcome(ctx context.Context, exprID string, patch CrawlPatch) (*models.Expression, error) {
	expr, err := s.store.Expressions().GetExpression(ctx, exprID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := patch.HTTPStatus
	expr.HTTPStatus = &status

	applyString(&expr.Title, patch.Title)
	applyString(&expr.Description, patch.Description)
	applyString(&expr.Language, patch.Language)
	applyString(&expr.CanonicalURL, patch.CanonicalURL)
	applyString(&expr.RawContent, patch.RawContent)
	applyString(&expr.Source, patch.Source)
	applyString(&expr.ContentHash, patch.ContentHash)
	applyString(&expr.ValidLLM, patch.ValidLLM)
	applyString(&expr.ValidModel, patch.ValidModel)
	applyString(&expr.SentimentLabel, patch.SentimentLabel)

	if patch.Readable != nil {
		expr.Readable = *patch.Readable
	}
	if patch.WordCount != nil {
		expr.WordCount = *patch.WordCount
	}
	if patch.Relevance != nil {
		expr.Relevance = *patch.Relevance
	}
	if patch.QualityScore != nil {
		expr.QualityScore = *patch.QualityScore
	}
	if patch.SentimentScore != nil {
		expr.SentimentScore = *patch.SentimentScore
	}
	if patch.SentimentConfidence != nil {
		expr.SentimentConfidence = *patch.SentimentConfidence
	}
	if patch.CrawledAt != nil {
		expr.CrawledAt = patch.CrawledAt
	}
	if patch.ReadableAt != nil {
		expr.ReadableAt = patch.ReadableAt
	}

	expr.ApprovedAt = &now
	expr.UpdatedAt = now

	if err := s.store.Expressions().SaveExpression(ctx, expr); err != nil {
		return nil, fmt.Errorf("failed to record crawl outcome: %w", err)
	}
	return expr, nil
}

// UpdateScores rewrites the analytic derivatives of an expression without
// touching approved_at. Used by consolidation and the LLM batch pipeline.
func (s *Service) UpdateScores(ctx context.Context, exprID string, relevance *int, validLLM, validModel *string, seoRank json.RawMessage) (*models.Expression, error) {
	expr, err := s.store.Expressions().GetExpression(ctx, exprID)
	if err != nil {
		return nil, err
	}

	if relevance != nil {
		expr.Relevance = *relevance
	}
	applyString(&expr.ValidLLM, validLLM)
	applyString(&expr.ValidModel, validModel)
	if seoRank != nil {
		expr.SEORank = seoRank
	}
	expr.UpdatedAt = time.Now().UTC()

	if err := s.store.Expressions().SaveExpression(ctx, expr); err != nil {
		return nil, fmt.Errorf("failed to update scores: %w", err)
	}
	return expr, nil
}

// AttachMedia upserts the media references of one expression. Duplicates by
// (expression_id, url) collapse onto the stored row.
func (s *Service) AttachMedia(ctx context.Context, landID, exprID string, refs []MediaRef) error {
	for _, ref := range refs {
		media := models.NewMedia(landID, exprID, ref.URL, ref.Kind)
		if err := s.store.Media().UpsertMedia(ctx, media); err != nil {
			return fmt.Errorf("failed to attach media %s: %w", ref.URL, err)
		}
	}
	return nil
}

// MediaRef is a discovered media reference to attach.
type MediaRef struct {
	URL  string
	Kind string
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Helper constructors for patch fields.

// String returns a pointer to s.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
