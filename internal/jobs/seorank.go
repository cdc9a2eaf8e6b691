package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/adapters"
)

// handleSEORank fetches the SEO metric blob for every approved expression.
// The adapter paces itself and trips its breaker; once the breaker opens the
// remainder is counted adapter_unavailable and the job ends early.
func (r *Runner) handleSEORank(ctx context.Context, run *jobRun) error {
	if r.seo == nil {
		return fmt.Errorf("seorank adapter not configured")
	}

	limit := run.job.GetParamInt("limit", 0)
	force := run.job.GetParamBool("force_refresh", false)

	expressions, err := r.store.Expressions().GetExpressionsByLand(ctx, run.land.ID)
	if err != nil {
		return fmt.Errorf("expression listing failed: %w", err)
	}

	candidates := expressions[:0:0]
	for _, expr := range expressions {
		if expr.ApprovedAt == nil {
			continue
		}
		if expr.SEORank != nil && !force {
			continue
		}
		candidates = append(candidates, expr)
		if limit > 0 && len(candidates) >= limit {
			break
		}
	}
	run.setWave(0, len(candidates))

	// Serial: the provider's per-host delay makes parallelism pointless.
	for i, expr := range candidates {
		if ctx.Err() != nil || run.isFatal() {
			break
		}
		run.working(expr.URL)

		blob, err := r.seo.Fetch(ctx, expr.URL)
		if err != nil {
			if errors.Is(err, adapters.ErrSEOUnavailable) {
				remaining := len(candidates) - i
				run.mu.Lock()
				run.counters.AdapterUnavailable += remaining
				run.completed += remaining
				run.mu.Unlock()
				r.logger.Warn().
					Str("job_id", run.job.ID).
					Int("remaining", remaining).
					Msg("SEO provider unavailable, stopping early")
				break
			}
			if ctx.Err() != nil {
				run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
				break
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			continue
		}

		if _, err := r.persist.UpdateScores(ctx, expr.ID, nil, nil, nil, blob); err != nil {
			if fatal := run.internalFailure("persister", err); fatal != nil {
				return nil
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			continue
		}
		run.internalOK("persister")
		run.record(ctx, func(c *models.Counters) { c.OK++ })
	}
	return nil
}
