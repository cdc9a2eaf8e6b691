package lands

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/dictionary"
	"github.com/ternarybob/indago/internal/services/graph"
)

// Stats aggregates a land's corpus for reporting.
type Stats struct {
	LandID          string `json:"land_id"`
	Expressions     int    `json:"expressions"`
	Approved        int    `json:"approved"`
	Links           int    `json:"links"`
	Domains         int    `json:"domains"`
	Media           int    `json:"media"`
	PendingReadable int    `json:"pending_readable"`
}

// Service owns the land lifecycle: creation, seed and keyword management and
// the ordered cascade delete. Keyword edits re-fingerprint the dictionary so
// the next consolidation rebuilds it.
type Service struct {
	store    interfaces.StorageManager
	expander *graph.Expander
	dict     *dictionary.Service
	logger   arbor.ILogger
}

// NewService creates the land service.
func NewService(store interfaces.StorageManager, expander *graph.Expander, dict *dictionary.Service, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		expander: expander,
		dict:     dict,
		logger:   logger,
	}
}

// Create validates and persists a new land. Name is unique per owner.
func (s *Service) Create(ctx context.Context, name, description, owner string, languages []string) (*models.Land, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("land name is required")
	}
	if existing, err := s.store.Lands().GetLandByName(ctx, owner, name); err == nil && existing != nil {
		return nil, fmt.Errorf("land %q already exists for owner %q", name, owner)
	}

	land := models.NewLand(name, description, owner, languages)
	if err := s.store.Lands().SaveLand(ctx, land); err != nil {
		return nil, fmt.Errorf("failed to save land: %w", err)
	}

	s.logger.Info().
		Str("land_id", land.ID).
		Str("name", name).
		Str("owner", owner).
		Msg("Land created")
	return land, nil
}

// Get returns one land.
func (s *Service) Get(ctx context.Context, landID string) (*models.Land, error) {
	return s.store.Lands().GetLand(ctx, landID)
}

// List returns an owner's lands.
func (s *Service) List(ctx context.Context, owner string) ([]*models.Land, error) {
	return s.store.Lands().ListLands(ctx, owner)
}

// Delete removes the land and everything it owns, children first. The
// dictionary cache entry goes with it.
func (s *Service) Delete(ctx context.Context, landID string) error {
	if err := s.store.Lands().DeleteLand(ctx, landID); err != nil {
		return fmt.Errorf("failed to delete land: %w", err)
	}
	s.dict.Invalidate(landID)

	s.logger.Info().
		Str("land_id", landID).
		Msg("Land deleted")
	return nil
}

// AddSeeds registers URLs as depth-0 candidates. Already known URLs are
// counted but not re-inserted; a URL that fails canonicalization or hits the
// deny list is skipped with a warning rather than failing the batch.
func (s *Service) AddSeeds(ctx context.Context, landID string, urls []string) (added int, err error) {
	land, err := s.store.Lands().GetLand(ctx, landID)
	if err != nil {
		return 0, err
	}

	for _, rawURL := range urls {
		_, created, err := s.expander.Register(ctx, land, rawURL, 0)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("land_id", landID).
				Str("url", rawURL).
				Msg("Seed rejected")
			continue
		}
		if created {
			added++
		}
	}

	land.SeedURLs = mergeUnique(land.SeedURLs, urls)
	land.Touch()
	if err := s.store.Lands().SaveLand(ctx, land); err != nil {
		return added, fmt.Errorf("failed to save land: %w", err)
	}
	return added, nil
}

// AddKeywords appends terms to the land's keyword list. The keyword
// fingerprint changes with the list, which schedules a dictionary rebuild at
// the next consolidation.
func (s *Service) AddKeywords(ctx context.Context, landID string, terms []string) (*models.Land, error) {
	land, err := s.store.Lands().GetLand(ctx, landID)
	if err != nil {
		return nil, err
	}

	before := land.KeywordFingerprint()
	land.Keywords = mergeUnique(land.Keywords, terms)
	if land.KeywordFingerprint() == before {
		return land, nil
	}

	land.Touch()
	if err := s.store.Lands().SaveLand(ctx, land); err != nil {
		return nil, fmt.Errorf("failed to save land: %w", err)
	}
	s.dict.Invalidate(landID)

	s.logger.Info().
		Str("land_id", landID).
		Int("keywords", len(land.Keywords)).
		Msg("Keywords updated")
	return land, nil
}

// Stats aggregates corpus counts for one land.
func (s *Service) Stats(ctx context.Context, landID string) (*Stats, error) {
	if _, err := s.store.Lands().GetLand(ctx, landID); err != nil {
		return nil, err
	}

	stats := &Stats{LandID: landID}

	expressions, err := s.store.Expressions().GetExpressionsByLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	stats.Expressions = len(expressions)
	for _, expr := range expressions {
		if expr.ApprovedAt != nil {
			stats.Approved++
		}
		if expr.HTTPStatus != nil && *expr.HTTPStatus == 200 && expr.ApprovedAt != nil && expr.Readable == "" {
			stats.PendingReadable++
		}
	}

	if stats.Links, err = s.store.Links().CountByLand(ctx, landID); err != nil {
		return nil, err
	}

	domains, err := s.store.Domains().GetDomainsByLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	stats.Domains = len(domains)

	media, err := s.store.Media().GetMediaByLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	stats.Media = len(media)

	return stats, nil
}

// mergeUnique appends new entries preserving order, case-insensitive on the
// duplicate check.
func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}
	merged := existing
	for _, v := range incoming {
		trimmed := strings.TrimSpace(v)
		key := strings.ToLower(trimmed)
		if trimmed == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, trimmed)
	}
	return merged
}
