package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LandStorage implements the LandStorage interface for Badger
type LandStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLandStorage creates a new LandStorage instance
func NewLandStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LandStorage {
	return &LandStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LandStorage) SaveLand(ctx context.Context, land *models.Land) error {
	if land.ID == "" {
		return fmt.Errorf("land ID is required")
	}
	if err := s.db.Store().Upsert(land.ID, land); err != nil {
		return fmt.Errorf("failed to save land: %w", err)
	}
	return nil
}

func (s *LandStorage) GetLand(ctx context.Context, landID string) (*models.Land, error) {
	var land models.Land
	if err := s.db.Store().Get(landID, &land); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("land not found: %s", landID)
		}
		return nil, fmt.Errorf("failed to get land: %w", err)
	}
	return &land, nil
}

func (s *LandStorage) GetLandByName(ctx context.Context, owner, name string) (*models.Land, error) {
	var lands []models.Land
	query := badgerhold.Where("Owner").Eq(owner).And("Name").Eq(name).Limit(1)
	if err := s.db.Store().Find(&lands, query); err != nil {
		return nil, fmt.Errorf("failed to query land by name: %w", err)
	}
	if len(lands) == 0 {
		return nil, fmt.Errorf("land not found: %s", name)
	}
	return &lands[0], nil
}

func (s *LandStorage) ListLands(ctx context.Context, owner string) ([]*models.Land, error) {
	query := badgerhold.Where("ID").Ne("")
	if owner != "" {
		query = badgerhold.Where("Owner").Eq(owner)
	}
	var lands []models.Land
	if err := s.db.Store().Find(&lands, query.SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list lands: %w", err)
	}
	result := make([]*models.Land, len(lands))
	for i := range lands {
		result[i] = &lands[i]
	}
	return result, nil
}

// DeleteLand removes the land and everything it owns, children before
// parent, so a crash mid-delete never leaves orphans pointing at a missing
// land.
func (s *LandStorage) DeleteLand(ctx context.Context, landID string) error {
	store := s.db.Store()
	byLand := badgerhold.Where("LandID").Eq(landID)

	if err := store.DeleteMatching(&models.Paragraph{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land paragraphs: %w", err)
	}
	if err := store.DeleteMatching(&models.Media{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land media: %w", err)
	}
	if err := store.DeleteMatching(&models.ExpressionLink{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land links: %w", err)
	}
	if err := store.DeleteMatching(&models.Expression{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land expressions: %w", err)
	}
	if err := store.DeleteMatching(&models.Word{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land dictionary: %w", err)
	}
	if err := store.DeleteMatching(&models.Domain{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land domains: %w", err)
	}
	if err := store.DeleteMatching(&models.Job{}, byLand); err != nil {
		return fmt.Errorf("failed to delete land jobs: %w", err)
	}
	if err := store.Delete(landID, &models.Land{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete land: %w", err)
	}

	s.logger.Info().Str("land_id", landID).Msg("Deleted land and owned entities")
	return nil
}
