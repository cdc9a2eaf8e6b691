package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// Merge strategies for the readable-refresh pipeline.
const (
	MergeSmart            = "smart_merge"
	MergeOverwrite        = "overwrite"
	MergePreserveExisting = "preserve_existing"
)

// handleReadable re-extracts the readable body of approved 200s whose
// readable text is empty, merging fresh content into the stored row by the
// job's merge strategy.
func (r *Runner) handleReadable(ctx context.Context, run *jobRun) error {
	limit := run.job.GetParamInt("limit", 0)
	strategy := run.job.GetParamString("merge_strategy", MergeSmart)
	switch strategy {
	case MergeSmart, MergeOverwrite, MergePreserveExisting:
	default:
		return fmt.Errorf("unknown merge strategy: %s", strategy)
	}

	candidates, err := r.store.Expressions().SelectForReadable(ctx, run.land.ID, limit)
	if err != nil {
		return fmt.Errorf("candidate selection failed: %w", err)
	}
	run.setWave(0, len(candidates))

	run.forEach(ctx, r.concurrency(), len(candidates), func(ctx context.Context, i int) {
		run.refreshReadable(ctx, candidates[i], strategy)
	})
	return nil
}

// refreshReadable processes one expression: fetch, extract, merge, save.
func (run *jobRun) refreshReadable(ctx context.Context, expr *models.Expression, strategy string) {
	r := run.runner
	run.working(expr.URL)

	result, err := r.fetch.Fetch(ctx, expr.URL)
	if err != nil || ctx.Err() != nil {
		if ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}

	content, err := r.extract.Extract(ctx, expr.URL, result)
	if err != nil {
		if ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}

	now := time.Now().UTC()
	switch strategy {
	case MergeOverwrite:
		expr.Title = content.Title
		expr.Description = content.Description
		expr.Language = content.Language
		expr.CanonicalURL = content.CanonicalURL
		expr.Readable = content.Readable
		expr.WordCount = content.WordCount
		expr.Source = content.Source
	case MergePreserveExisting:
		if expr.Readable == "" {
			expr.Readable = content.Readable
			expr.WordCount = content.WordCount
		}
		mergeEmpty(&expr.Title, content.Title)
		mergeEmpty(&expr.Description, content.Description)
		mergeEmpty(&expr.Language, content.Language)
		mergeEmpty(&expr.CanonicalURL, content.CanonicalURL)
	default: // smart_merge
		if len(content.Readable) > len(expr.Readable) {
			expr.Readable = content.Readable
			expr.WordCount = content.WordCount
			expr.Source = content.Source
		}
		mergeEmpty(&expr.Title, content.Title)
		mergeEmpty(&expr.Description, content.Description)
		mergeEmpty(&expr.Language, content.Language)
		mergeEmpty(&expr.CanonicalURL, content.CanonicalURL)
	}

	expr.ContentHash = models.HashContent(expr.Readable)
	expr.ReadableAt = &now
	expr.UpdatedAt = now

	if err := r.store.Expressions().SaveExpression(ctx, expr); err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")

	// Union merge: fresh links and media add to the graph, existing rows
	// collide on their deterministic keys.
	if strategy != MergePreserveExisting {
		depthLimit := run.job.GetParamInt("depth", 2)
		if _, err := r.expander.Expand(ctx, run.land, expr, content.Links, depthLimit); err != nil {
			r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Link expansion failed")
		}
		refs := mediaRefs(content.Media)
		if err := r.persist.AttachMedia(ctx, expr.LandID, expr.ID, refs); err != nil {
			r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Media attachment failed")
		}
	}

	if _, err := r.paragraphs.Refresh(ctx, expr); err != nil {
		r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Paragraph refresh failed")
	}

	run.record(ctx, func(c *models.Counters) { c.OK++ })
}

func mergeEmpty(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
