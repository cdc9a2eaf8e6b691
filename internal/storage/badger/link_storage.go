package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LinkStorage implements the LinkStorage interface for Badger
type LinkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLinkStorage creates a new LinkStorage instance
func NewLinkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LinkStorage {
	return &LinkStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertLink stores the edge. The key is derived from source and target so
// re-crawling the same page never duplicates edges.
func (s *LinkStorage) UpsertLink(ctx context.Context, link *models.ExpressionLink) error {
	if link.ID == "" {
		return fmt.Errorf("link ID is required")
	}
	if err := s.db.Store().Upsert(link.ID, link); err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	return nil
}

func (s *LinkStorage) GetLinksBySource(ctx context.Context, sourceID string) ([]*models.ExpressionLink, error) {
	var links []models.ExpressionLink
	if err := s.db.Store().Find(&links, badgerhold.Where("SourceID").Eq(sourceID)); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	result := make([]*models.ExpressionLink, len(links))
	for i := range links {
		result[i] = &links[i]
	}
	return result, nil
}

func (s *LinkStorage) GetLinksByLand(ctx context.Context, landID string) ([]*models.ExpressionLink, error) {
	var links []models.ExpressionLink
	if err := s.db.Store().Find(&links, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	result := make([]*models.ExpressionLink, len(links))
	for i := range links {
		result[i] = &links[i]
	}
	return result, nil
}

func (s *LinkStorage) DeleteLinksByLand(ctx context.Context, landID string) error {
	if err := s.db.Store().DeleteMatching(&models.ExpressionLink{}, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return fmt.Errorf("failed to delete links: %w", err)
	}
	return nil
}

func (s *LinkStorage) DeleteLinksForExpression(ctx context.Context, exprID string) error {
	store := s.db.Store()
	if err := store.DeleteMatching(&models.ExpressionLink{}, badgerhold.Where("SourceID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete outgoing links: %w", err)
	}
	if err := store.DeleteMatching(&models.ExpressionLink{}, badgerhold.Where("TargetID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete incoming links: %w", err)
	}
	return nil
}

func (s *LinkStorage) CountByLand(ctx context.Context, landID string) (int, error) {
	count, err := s.db.Store().Count(&models.ExpressionLink{}, badgerhold.Where("LandID").Eq(landID))
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return int(count), nil
}
