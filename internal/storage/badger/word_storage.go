package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// WordStorage implements the WordStorage interface for Badger
type WordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWordStorage creates a new WordStorage instance
func NewWordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WordStorage {
	return &WordStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WordStorage) SaveWords(ctx context.Context, words []*models.Word) error {
	for _, word := range words {
		if word.ID == "" {
			return fmt.Errorf("word ID is required")
		}
		if err := s.db.Store().Upsert(word.ID, word); err != nil {
			return fmt.Errorf("failed to save word %s: %w", word.Lemma, err)
		}
	}
	return nil
}

func (s *WordStorage) GetWordsByLand(ctx context.Context, landID string) ([]*models.Word, error) {
	var words []models.Word
	if err := s.db.Store().Find(&words, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}
	result := make([]*models.Word, len(words))
	for i := range words {
		result[i] = &words[i]
	}
	return result, nil
}

func (s *WordStorage) DeleteWordsByLand(ctx context.Context, landID string) error {
	if err := s.db.Store().DeleteMatching(&models.Word{}, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return fmt.Errorf("failed to delete words: %w", err)
	}
	return nil
}
