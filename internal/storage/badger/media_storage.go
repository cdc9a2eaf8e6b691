package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MediaStorage implements the MediaStorage interface for Badger
type MediaStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMediaStorage creates a new MediaStorage instance
func NewMediaStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MediaStorage {
	return &MediaStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertMedia stores the media reference. The key is derived from the
// expression and URL so repeated extraction passes stay idempotent.
func (s *MediaStorage) UpsertMedia(ctx context.Context, media *models.Media) error {
	if media.ID == "" {
		return fmt.Errorf("media ID is required")
	}
	err := s.db.Store().Insert(media.ID, media)
	if err == nil || err == badgerhold.ErrKeyExists {
		return nil
	}
	return fmt.Errorf("failed to insert media: %w", err)
}

func (s *MediaStorage) SaveMedia(ctx context.Context, media *models.Media) error {
	if media.ID == "" {
		return fmt.Errorf("media ID is required")
	}
	if err := s.db.Store().Upsert(media.ID, media); err != nil {
		return fmt.Errorf("failed to save media: %w", err)
	}
	return nil
}

func (s *MediaStorage) GetMedia(ctx context.Context, mediaID string) (*models.Media, error) {
	var media models.Media
	if err := s.db.Store().Get(mediaID, &media); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("media not found: %s", mediaID)
		}
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return &media, nil
}

func (s *MediaStorage) GetMediaByExpression(ctx context.Context, exprID string) ([]*models.Media, error) {
	var items []models.Media
	if err := s.db.Store().Find(&items, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	result := make([]*models.Media, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

// SelectUnprocessed returns image media not yet analyzed, oldest first.
func (s *MediaStorage) SelectUnprocessed(ctx context.Context, landID string, limit int) ([]*models.Media, error) {
	query := badgerhold.Where("LandID").Eq(landID).
		And("IsProcessed").Eq(false).
		And("Kind").Eq(models.MediaKindImage).
		SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []models.Media
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to select unprocessed media: %w", err)
	}
	result := make([]*models.Media, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *MediaStorage) GetMediaByLand(ctx context.Context, landID string) ([]*models.Media, error) {
	var items []models.Media
	if err := s.db.Store().Find(&items, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	result := make([]*models.Media, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *MediaStorage) DeleteMediaByLand(ctx context.Context, landID string) error {
	if err := s.db.Store().DeleteMatching(&models.Media{}, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

func (s *MediaStorage) DeleteMediaForExpression(ctx context.Context, exprID string) error {
	if err := s.db.Store().DeleteMatching(&models.Media{}, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}
