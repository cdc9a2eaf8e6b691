package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/indago/internal/models"
)

// handleMedia runs the media analyzer over a land's unprocessed media. With
// force_refresh every item is re-analyzed regardless of its processed flag.
func (r *Runner) handleMedia(ctx context.Context, run *jobRun) error {
	limit := run.job.GetParamInt("limit", 0)
	force := run.job.GetParamBool("force_refresh", false)

	var items []*models.Media
	var err error
	if force {
		items, err = r.store.Media().GetMediaByLand(ctx, run.land.ID)
		if err == nil && limit > 0 && len(items) > limit {
			items = items[:limit]
		}
	} else {
		items, err = r.store.Media().SelectUnprocessed(ctx, run.land.ID, limit)
	}
	if err != nil {
		return fmt.Errorf("media selection failed: %w", err)
	}
	run.setWave(0, len(items))

	run.forEach(ctx, r.concurrency(), len(items), func(ctx context.Context, i int) {
		item := items[i]
		run.working(item.URL)

		if ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}

		if err := r.analyzer.Analyze(ctx, item); err != nil {
			if ctx.Err() != nil {
				run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
				return
			}
			if fatal := run.internalFailure("media_analyzer", err); fatal != nil {
				return
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			return
		}
		run.internalOK("media_analyzer")
		run.record(ctx, func(c *models.Counters) { c.OK++ })
	})
	return nil
}
