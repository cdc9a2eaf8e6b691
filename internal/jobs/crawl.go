package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/indago/internal/interfaces"
)

// handleCrawl drives the main crawl pipeline for a land: candidates are
// processed in depth waves, each wave drained before the next begins, so
// expansion inserts only ever join later waves.
func (r *Runner) handleCrawl(ctx context.Context, run *jobRun) error {
	depthLimit := run.job.GetParamInt("depth", 2)
	limit := run.job.GetParamInt("limit", 0)
	httpStatus := run.job.GetParamIntPtr("http_status")
	useLLM := run.job.GetParamBool("use_llm", false)

	dict, err := r.dict.Get(ctx, run.land)
	if err != nil {
		return fmt.Errorf("dictionary unavailable: %w", err)
	}

	// Without a status filter, candidates already at a terminal outcome are
	// out of scope for this run; report them as skipped up front.
	if httpStatus == nil {
		skipped, err := r.countTerminal(ctx, run.land.ID, depthLimit)
		if err != nil {
			return err
		}
		run.addSkipped(skipped)
	}

	opts := pipelineOptions{depthLimit: depthLimit, useLLM: useLLM}
	processed := 0

	// A candidate whose attempt ended without a terminal record (internal
	// persist error, cancellation) must not be re-selected within this run.
	seen := make(map[string]bool)

	for ctx.Err() == nil && !run.isFatal() {
		waveLimit := r.config.Scheduler.WaveSizeLimit
		if limit > 0 && limit-processed < waveLimit {
			waveLimit = limit - processed
		}
		if waveLimit <= 0 {
			break
		}

		candidates, err := r.store.Expressions().SelectCandidates(ctx, run.land.ID, interfaces.CandidateFilter{
			DepthLimit: depthLimit,
			HTTPStatus: httpStatus,
			Limit:      waveLimit,
		})
		if err != nil {
			return fmt.Errorf("candidate selection failed: %w", err)
		}
		fresh := candidates[:0:0]
		for _, expr := range candidates {
			if !seen[expr.ID] {
				fresh = append(fresh, expr)
			}
		}
		if len(fresh) == 0 {
			break
		}

		// One wave = the shallowest depth present among the candidates.
		waveDepth := fresh[0].Depth
		wave := fresh[:0:0]
		for _, expr := range fresh {
			if expr.Depth == waveDepth {
				wave = append(wave, expr)
				seen[expr.ID] = true
			}
		}

		run.setWave(waveDepth, run.countersTotal()+len(wave))
		r.logger.Info().
			Str("job_id", run.job.ID).
			Str("land_id", run.land.ID).
			Int("depth", waveDepth).
			Int("wave_size", len(wave)).
			Msg("Crawl wave starting")

		run.forEach(ctx, r.concurrency(), len(wave), func(ctx context.Context, i int) {
			run.processExpression(ctx, wave[i], dict, opts)
		})
		processed += len(wave)
	}

	return nil
}

// countTerminal counts expressions already at a terminal outcome under the
// depth limit.
func (r *Runner) countTerminal(ctx context.Context, landID string, depthLimit int) (int, error) {
	expressions, err := r.store.Expressions().GetExpressionsByLand(ctx, landID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, expr := range expressions {
		if expr.ApprovedAt != nil && expr.Depth <= depthLimit {
			count++
		}
	}
	return count, nil
}

// countersTotal reads the completed counter under the lock.
func (run *jobRun) countersTotal() int {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.completed
}

// handleSearch seeds a land from the search adapter's results, then runs a
// normal crawl over them in the same job.
func (r *Runner) handleSearch(ctx context.Context, run *jobRun) error {
	if r.search == nil {
		return fmt.Errorf("search adapter not configured")
	}

	query := run.job.GetParamString("query", "")
	if query == "" {
		return fmt.Errorf("search job requires a query parameter")
	}

	urls, err := r.search.Search(ctx, interfaces.SearchQuery{
		Query:    query,
		Engine:   run.job.GetParamString("engine", ""),
		Language: run.job.GetParamString("language", run.land.PrimaryLanguage()),
		DateFrom: run.job.GetParamString("date_from", ""),
		DateTo:   run.job.GetParamString("date_to", ""),
		Window:   run.job.GetParamInt("window", 0),
	})
	if err != nil {
		return fmt.Errorf("search expansion failed: %w", err)
	}

	seeded := 0
	for _, rawURL := range urls {
		if ctx.Err() != nil {
			break
		}
		if _, created, err := r.expander.Register(ctx, run.land, rawURL, 0); err != nil {
			r.logger.Warn().
				Err(err).
				Str("land_id", run.land.ID).
				Str("url", rawURL).
				Msg("Search result rejected")
		} else if created {
			seeded++
		}
	}

	run.job.Result = map[string]interface{}{"seeded": seeded}
	r.logger.Info().
		Str("job_id", run.job.ID).
		Str("land_id", run.land.ID).
		Int("results", len(urls)).
		Int("seeded", seeded).
		Msg("Search seeding complete")

	return r.handleCrawl(ctx, run)
}
