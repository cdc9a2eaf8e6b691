package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/indago/internal/models"
)

// handleHeuristic re-applies the current URL rewrite rules to every
// expression of a land. An expression whose canonical form changed is
// re-keyed; when the canonical form already exists the duplicate is dropped
// and its edges follow the survivor.
func (r *Runner) handleHeuristic(ctx context.Context, run *jobRun) error {
	expressions, err := r.store.Expressions().GetExpressionsByLand(ctx, run.land.ID)
	if err != nil {
		return fmt.Errorf("expression listing failed: %w", err)
	}
	run.setWave(0, len(expressions))

	heuristics := r.expander.Rules()

	for _, expr := range expressions {
		if ctx.Err() != nil || run.isFatal() {
			break
		}
		run.working(expr.URL)

		canonical, err := heuristics.Canonicalize(expr.URL)
		if err != nil || canonical == expr.URL {
			run.record(ctx, func(c *models.Counters) { c.Skipped++ })
			continue
		}
		run.rekeyExpression(ctx, expr, canonical)
	}
	return nil
}

// rekeyExpression moves an expression onto its new canonical URL. The new
// row keeps every field of the old one; inbound and outbound edges are
// re-pointed, then the old row and its leftovers are removed.
func (run *jobRun) rekeyExpression(ctx context.Context, expr *models.Expression, canonical string) {
	r := run.runner

	if existing, err := r.store.Expressions().GetExpressionByURL(ctx, expr.LandID, canonical); err == nil && existing != nil {
		// Canonical target already known: the duplicate merges away. Edges
		// from the duplicate re-point to the survivor.
		run.repointLinks(ctx, expr, existing.ID)
		if err := r.store.Expressions().DeleteExpression(ctx, expr.ID); err != nil {
			if fatal := run.internalFailure("persister", err); fatal != nil {
				return
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			return
		}
		run.internalOK("persister")
		run.record(ctx, func(c *models.Counters) { c.Skipped++ })
		return
	}

	rekeyed := *expr
	rekeyed.ID = models.ExpressionID(expr.LandID, canonical)
	rekeyed.URL = canonical

	if _, _, err := r.store.Expressions().InsertExpression(ctx, &rekeyed); err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.repointLinks(ctx, expr, rekeyed.ID)
	if err := r.store.Expressions().DeleteExpression(ctx, expr.ID); err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")
	run.record(ctx, func(c *models.Counters) { c.OK++ })
}

// repointLinks rewrites the graph edges that touch the old expression id.
func (run *jobRun) repointLinks(ctx context.Context, old *models.Expression, newID string) {
	r := run.runner

	links, err := r.store.Links().GetLinksByLand(ctx, old.LandID)
	if err != nil {
		r.logger.Warn().Err(err).Str("expression_id", old.ID).Msg("Link listing failed during re-key")
		return
	}
	for _, link := range links {
		if link.SourceID != old.ID && link.TargetID != old.ID {
			continue
		}
		source, target := link.SourceID, link.TargetID
		if source == old.ID {
			source = newID
		}
		if target == old.ID {
			target = newID
		}
		if source == target {
			continue
		}
		edge := models.NewExpressionLink(old.LandID, source, target, link.AnchorText, link.LinkType)
		if err := r.store.Links().UpsertLink(ctx, edge); err != nil {
			r.logger.Warn().Err(err).Str("link_id", edge.ID).Msg("Edge re-point failed")
		}
	}
	// Old edges disappear with the expression's cascade delete.
}
