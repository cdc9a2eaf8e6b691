package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/dictionary"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/services/persister"
	"github.com/ternarybob/indago/internal/services/scoring"
)

// handleConsolidate rebuilds the derived state of a land from its stored
// pages: the lemma dictionary when the keywords changed, the link graph and
// media references from the stored raw content, and every relevance score.
// Running it twice back to back leaves the corpus identical apart from
// updated_at stamps.
func (r *Runner) handleConsolidate(ctx context.Context, run *jobRun) error {
	rebuilt := false
	if run.land.DictionaryFingerprint != run.land.KeywordFingerprint() {
		if _, err := r.dict.Rebuild(ctx, run.land); err != nil {
			return fmt.Errorf("dictionary rebuild failed: %w", err)
		}
		rebuilt = true
	}
	dict, err := r.dict.Get(ctx, run.land)
	if err != nil {
		return fmt.Errorf("dictionary unavailable: %w", err)
	}

	// Stale graph state goes first; re-discovery rebuilds both sets from the
	// stored pages on their deterministic keys.
	if err := r.store.Links().DeleteLinksByLand(ctx, run.land.ID); err != nil {
		return fmt.Errorf("link cleanup failed: %w", err)
	}
	if err := r.store.Media().DeleteMediaByLand(ctx, run.land.ID); err != nil {
		return fmt.Errorf("media cleanup failed: %w", err)
	}

	expressions, err := r.store.Expressions().GetExpressionsByLand(ctx, run.land.ID)
	if err != nil {
		return fmt.Errorf("expression listing failed: %w", err)
	}
	run.setWave(0, len(expressions))

	depthLimit := run.job.GetParamInt("depth", 2)

	for _, expr := range expressions {
		if ctx.Err() != nil || run.isFatal() {
			break
		}
		run.working(expr.URL)

		if expr.ApprovedAt == nil {
			run.record(ctx, func(c *models.Counters) { c.Skipped++ })
			continue
		}
		run.consolidateExpression(ctx, expr, dict, depthLimit)
	}

	run.job.Result = map[string]interface{}{"dictionary_rebuilt": rebuilt}
	return nil
}

// consolidateExpression recomputes one expression: relevance from the
// current dictionary, links and media re-discovered from the stored raw
// content. One save per expression.
func (run *jobRun) consolidateExpression(ctx context.Context, expr *models.Expression, dict *dictionary.Dictionary, depthLimit int) {
	r := run.runner

	relevance := scoring.Relevance(dict, expr.Language, expr.Title, expr.Description, expr.Readable)
	if _, err := r.persist.UpdateScores(ctx, expr.ID, persister.Int(relevance), nil, nil, nil); err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")

	// Re-discovery replays the stored body through the cascade; same bytes,
	// same links and media, same deterministic keys.
	if expr.RawContent != "" {
		status := 200
		if expr.HTTPStatus != nil {
			status = *expr.HTTPStatus
		}
		content, err := r.extract.Extract(ctx, expr.URL, &fetcher.FetchResult{
			URL:        expr.URL,
			FinalURL:   expr.URL,
			StatusCode: status,
			Body:       []byte(expr.RawContent),
		})
		if err == nil {
			if _, err := r.expander.Expand(ctx, run.land, expr, content.Links, depthLimit); err != nil {
				r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Link re-discovery failed")
			}
			if err := r.persist.AttachMedia(ctx, expr.LandID, expr.ID, mediaRefs(content.Media)); err != nil {
				r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Media re-discovery failed")
			}
		}
	}

	run.record(ctx, func(c *models.Counters) { c.OK++ })
}
