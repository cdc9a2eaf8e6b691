package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DomainStorage implements the DomainStorage interface for Badger
type DomainStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDomainStorage creates a new DomainStorage instance
func NewDomainStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DomainStorage {
	return &DomainStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertDomain inserts the domain or returns the stored row when the
// (land_id, name) key already exists.
func (s *DomainStorage) UpsertDomain(ctx context.Context, domain *models.Domain) (*models.Domain, error) {
	if domain.ID == "" {
		return nil, fmt.Errorf("domain ID is required")
	}
	err := s.db.Store().Insert(domain.ID, domain)
	if err == nil {
		return domain, nil
	}
	if err != badgerhold.ErrKeyExists {
		return nil, fmt.Errorf("failed to insert domain: %w", err)
	}

	var existing models.Domain
	if err := s.db.Store().Get(domain.ID, &existing); err != nil {
		return nil, fmt.Errorf("failed to read existing domain: %w", err)
	}
	return &existing, nil
}

func (s *DomainStorage) SaveDomain(ctx context.Context, domain *models.Domain) error {
	if domain.ID == "" {
		return fmt.Errorf("domain ID is required")
	}
	if err := s.db.Store().Upsert(domain.ID, domain); err != nil {
		return fmt.Errorf("failed to save domain: %w", err)
	}
	return nil
}

func (s *DomainStorage) GetDomain(ctx context.Context, domainID string) (*models.Domain, error) {
	var domain models.Domain
	if err := s.db.Store().Get(domainID, &domain); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("domain not found: %s", domainID)
		}
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return &domain, nil
}

func (s *DomainStorage) GetDomainsByLand(ctx context.Context, landID string) ([]*models.Domain, error) {
	var domains []models.Domain
	if err := s.db.Store().Find(&domains, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	result := make([]*models.Domain, len(domains))
	for i := range domains {
		result[i] = &domains[i]
	}
	return result, nil
}
