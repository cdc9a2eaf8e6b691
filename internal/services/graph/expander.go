package graph

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/extractor"
)

// ExpandStats summarizes one expansion pass over a parent's outbound links.
type ExpandStats struct {
	Inserted int // new child expressions created
	Linked   int // edges upserted
	Dropped  int // links discarded by scheme, deny list or depth budget
}

// Expander turns discovered outbound links into new candidate expressions
// and edges. Children get depth = parent.depth + 1 set at insert time only;
// rediscoveries keep their original depth.
type Expander struct {
	store      interfaces.StorageManager
	heuristics *Heuristics
	logger     arbor.ILogger
}

// NewExpander creates the link-graph expander.
func NewExpander(store interfaces.StorageManager, heuristics *Heuristics, logger arbor.ILogger) *Expander {
	return &Expander{
		store:      store,
		heuristics: heuristics,
		logger:     logger,
	}
}

// Rules exposes the active heuristics.
func (e *Expander) Rules() *Heuristics {
	return e.heuristics
}

// Register canonicalizes a URL and inserts it as an expression at the given
// depth, creating the owning domain row as needed. Returns the stored
// expression and whether this call created it. Used for seeds and for
// search-result insertion; expansion goes through Expand.
func (e *Expander) Register(ctx context.Context, land *models.Land, rawURL string, depth int) (*models.Expression, bool, error) {
	canonical, err := e.heuristics.Canonicalize(rawURL)
	if err != nil {
		return nil, false, err
	}
	if e.heuristics.Denied(canonical) {
		return nil, false, fmt.Errorf("host denied: %s", canonical)
	}

	domain, err := e.store.Domains().UpsertDomain(ctx, models.NewDomain(land.ID, HostOf(canonical)))
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert domain: %w", err)
	}

	expr, created, err := e.store.Expressions().InsertExpression(ctx, models.NewExpression(land.ID, domain.ID, canonical, depth))
	if err != nil {
		return nil, false, err
	}
	return expr, created, nil
}

// Expand processes every outbound link of a crawled parent: canonicalize,
// filter, insert children under the depth budget and upsert edges. A parent
// sitting exactly at the depth limit still links to already known
// expressions, but new children beyond the limit are dropped.
func (e *Expander) Expand(ctx context.Context, land *models.Land, parent *models.Expression, links []extractor.DiscoveredLink, depthLimit int) (ExpandStats, error) {
	var stats ExpandStats
	childDepth := parent.Depth + 1

	for _, link := range links {
		canonical, err := e.heuristics.Canonicalize(link.URL)
		if err != nil {
			stats.Dropped++
			continue
		}
		if e.heuristics.Denied(canonical) || canonical == parent.URL {
			stats.Dropped++
			continue
		}

		target, err := e.store.Expressions().GetExpressionByURL(ctx, land.ID, canonical)
		if err != nil {
			// Unknown URL: only insert when the child stays inside the
			// depth budget.
			if childDepth > depthLimit {
				stats.Dropped++
				continue
			}
			created := false
			target, created, err = e.Register(ctx, land, canonical, childDepth)
			if err != nil {
				e.logger.Warn().
					Err(err).
					Str("land_id", land.ID).
					Str("url", canonical).
					Msg("Failed to insert child expression")
				stats.Dropped++
				continue
			}
			if created {
				stats.Inserted++
			}
		}

		edge := models.NewExpressionLink(land.ID, parent.ID, target.ID, link.Anchor, link.LinkType)
		if err := e.store.Links().UpsertLink(ctx, edge); err != nil {
			e.logger.Warn().
				Err(err).
				Str("source", parent.ID).
				Str("target", target.ID).
				Msg("Failed to upsert link")
			continue
		}
		stats.Linked++
	}

	return stats, nil
}
