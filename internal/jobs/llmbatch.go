package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/llm"
	"github.com/ternarybob/indago/internal/services/persister"
)

// handleLLMBatch asks the LLM for a topic-fit verdict on expressions without
// one. The validator is per-job: the call cap resets between jobs, the
// content-hash cache lives for the run.
func (r *Runner) handleLLMBatch(ctx context.Context, run *jobRun) error {
	if r.llm == nil || !r.config.LLM.Enabled {
		return fmt.Errorf("llm validation not configured")
	}

	minRelevance := run.job.GetParamInt("min_relevance", 1)
	limit := run.job.GetParamInt("limit", 0)

	candidates, err := r.store.Expressions().SelectForLLM(ctx, run.land.ID, minRelevance, limit)
	if err != nil {
		return fmt.Errorf("candidate selection failed: %w", err)
	}
	run.setWave(0, len(candidates))

	validator := llm.NewValidator(r.llm, r.config.LLM, r.logger)

	// Serial on purpose: the call cap and provider rate limits make
	// parallel validation counterproductive.
	for _, expr := range candidates {
		if ctx.Err() != nil || run.isFatal() {
			break
		}
		run.working(expr.URL)

		verdict, err := validator.Validate(ctx, run.land, expr)
		if err != nil {
			if errors.Is(err, llm.ErrCapExceeded) {
				// Budget spent; everything left shares the outcome.
				run.record(ctx, func(c *models.Counters) { c.CapExceeded++ })
				continue
			}
			if ctx.Err() != nil {
				run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
				break
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			continue
		}

		if _, err := r.persist.UpdateScores(ctx, expr.ID, nil,
			persister.String(verdict.Verdict), persister.String(verdict.Model), nil); err != nil {
			if fatal := run.internalFailure("persister", err); fatal != nil {
				return nil
			}
			run.record(ctx, func(c *models.Counters) { c.Failed++ })
			continue
		}
		run.internalOK("persister")
		run.record(ctx, func(c *models.Counters) { c.OK++ })
	}

	run.job.Result = map[string]interface{}{"llm_calls": validator.Calls()}
	return nil
}
