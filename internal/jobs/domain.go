package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// handleDomainCrawl refreshes every Domain of a land: home page fetched
// through the same fetcher/extractor, title and description lifted onto the
// domain row, expression counts recomputed.
func (r *Runner) handleDomainCrawl(ctx context.Context, run *jobRun) error {
	domains, err := r.store.Domains().GetDomainsByLand(ctx, run.land.ID)
	if err != nil {
		return fmt.Errorf("domain listing failed: %w", err)
	}
	run.setWave(0, len(domains))

	expressions, err := r.store.Expressions().GetExpressionsByLand(ctx, run.land.ID)
	if err != nil {
		return fmt.Errorf("expression listing failed: %w", err)
	}
	perDomain := make(map[string]int, len(domains))
	for _, expr := range expressions {
		perDomain[expr.DomainID]++
	}

	run.forEach(ctx, r.concurrency(), len(domains), func(ctx context.Context, i int) {
		run.refreshDomain(ctx, domains[i], perDomain[domains[i].ID])
	})
	return nil
}

// refreshDomain fetches one domain's home page and updates its row. A failed
// fetch still records the status and the fetch time.
func (run *jobRun) refreshDomain(ctx context.Context, domain *models.Domain, exprCount int) {
	r := run.runner
	homeURL := "https://" + domain.Name + "/"
	run.working(homeURL)

	now := time.Now().UTC()
	domain.ExpressionCount = exprCount
	domain.FetchedAt = &now
	domain.UpdatedAt = now

	result, err := r.fetch.Fetch(ctx, homeURL)
	if err != nil {
		if ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}
		status := 0
		domain.HTTPStatus = &status
		run.saveDomain(ctx, domain, false)
		return
	}

	domain.HTTPStatus = &result.StatusCode

	if content, err := r.extract.Extract(ctx, homeURL, result); err == nil {
		domain.Title = content.Title
		domain.Description = content.Description
	}
	run.saveDomain(ctx, domain, result.StatusCode == 200)
}

func (run *jobRun) saveDomain(ctx context.Context, domain *models.Domain, reachable bool) {
	r := run.runner
	if err := r.store.Domains().SaveDomain(ctx, domain); err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")

	if reachable {
		run.record(ctx, func(c *models.Counters) { c.OK++ })
	} else {
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
	}
}
