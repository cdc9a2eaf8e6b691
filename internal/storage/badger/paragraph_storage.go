package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ParagraphStorage implements the ParagraphStorage interface for Badger
type ParagraphStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewParagraphStorage creates a new ParagraphStorage instance
func NewParagraphStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ParagraphStorage {
	return &ParagraphStorage{
		db:     db,
		logger: logger,
	}
}

// ReplaceParagraphs swaps the full paragraph set for an expression. Segments
// are keyed by content so unchanged readable text keeps its ids across runs.
func (s *ParagraphStorage) ReplaceParagraphs(ctx context.Context, exprID string, paragraphs []*models.Paragraph) error {
	store := s.db.Store()
	if err := store.DeleteMatching(&models.Paragraph{}, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to clear paragraphs: %w", err)
	}
	for _, p := range paragraphs {
		if p.ID == "" {
			return fmt.Errorf("paragraph ID is required")
		}
		if err := store.Upsert(p.ID, p); err != nil {
			return fmt.Errorf("failed to save paragraph: %w", err)
		}
	}
	return nil
}

func (s *ParagraphStorage) GetParagraphsByExpression(ctx context.Context, exprID string) ([]*models.Paragraph, error) {
	var paragraphs []models.Paragraph
	query := badgerhold.Where("ExpressionID").Eq(exprID).SortBy("Index")
	if err := s.db.Store().Find(&paragraphs, query); err != nil {
		return nil, fmt.Errorf("failed to list paragraphs: %w", err)
	}
	result := make([]*models.Paragraph, len(paragraphs))
	for i := range paragraphs {
		result[i] = &paragraphs[i]
	}
	return result, nil
}

func (s *ParagraphStorage) DeleteParagraphsForExpression(ctx context.Context, exprID string) error {
	if err := s.db.Store().DeleteMatching(&models.Paragraph{}, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete paragraphs: %w", err)
	}
	return nil
}
