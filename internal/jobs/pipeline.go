package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/dictionary"
	"github.com/ternarybob/indago/internal/services/extractor"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/services/persister"
	"github.com/ternarybob/indago/internal/services/scoring"
)

// ExtractService is the extraction cascade as the pipeline consumes it.
type ExtractService interface {
	Extract(ctx context.Context, pageURL string, result *fetcher.FetchResult) (*extractor.ExtractedContent, error)
}

// pipelineOptions carries the per-job knobs of the crawl pipeline.
type pipelineOptions struct {
	depthLimit int
	useLLM     bool
}

// processExpression runs one candidate through fetch, extract, score,
// persist and expand. Every return path that observed a terminal outcome
// records it through the persister; cancellation leaves the candidate
// untouched for the next run.
func (run *jobRun) processExpression(ctx context.Context, expr *models.Expression, dict *dictionary.Dictionary, opts pipelineOptions) {
	r := run.runner
	run.working(expr.URL)

	result, err := r.fetch.Fetch(ctx, expr.URL)
	if err != nil {
		var fe *fetcher.FetchError
		if (errors.As(err, &fe) && fe.Kind == fetcher.ErrKindCancelled) || ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}

		// No usable response at all. http_status 0 records the transport
		// failure; 4xx from the classifier keeps its code.
		status := 0
		if errors.As(err, &fe) && fe.StatusCode > 0 {
			status = fe.StatusCode
		}
		run.recordFailure(ctx, expr, status)
		return
	}

	// The cascade runs regardless of status: an archived snapshot can still
	// rescue a 404.
	content, extractErr := r.extract.Extract(ctx, expr.URL, result)
	if extractErr != nil {
		if ctx.Err() != nil {
			run.record(ctx, func(c *models.Counters) { c.CancelledInflight++ })
			return
		}
		run.recordFailure(ctx, expr, result.StatusCode)
		return
	}

	run.recordSuccess(ctx, expr, result, content, dict, opts)
}

// recordFailure persists a terminal failed attempt.
func (run *jobRun) recordFailure(ctx context.Context, expr *models.Expression, status int) {
	r := run.runner
	now := time.Now().UTC()

	_, err := r.persist.RecordCrawlOutcome(ctx, expr.ID, persister.CrawlPatch{
		HTTPStatus: status,
		CrawledAt:  persister.Time(now),
	})
	if err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")
	run.record(ctx, func(c *models.Counters) { c.Failed++ })
}

// recordSuccess scores and persists a completed-with-content attempt, then
// expands the link graph and attaches discovered media.
func (run *jobRun) recordSuccess(ctx context.Context, expr *models.Expression, result *fetcher.FetchResult, content *extractor.ExtractedContent, dict *dictionary.Dictionary, opts pipelineOptions) {
	r := run.runner
	now := time.Now().UTC()

	contentHash := models.HashContent(content.Readable)
	duplicates, err := r.store.Expressions().CountByContentHash(ctx, expr.LandID, contentHash)
	if err != nil {
		duplicates = 0
	}

	relevance := scoring.Relevance(dict, content.Language, content.Title, content.Description, content.Readable)
	quality := scoring.QualityScore(r.config.Scoring.QualityWeights, scoring.QualityInputs{
		HTTPStatus:       result.StatusCode,
		Elapsed:          result.Elapsed,
		ContentType:      result.ContentType,
		Title:            content.Title,
		Body:             content.Readable,
		Language:         content.Language,
		HeadingCount:     scoring.CountHeadings(content.Readable),
		ParagraphCount:   scoring.CountParagraphs(content.Readable),
		WordCount:        content.WordCount,
		MediaCount:       len(content.Media),
		LinkCount:        len(content.Links),
		CanonicalPresent: content.CanonicalURL != "",
		LanguageDetected: content.Language != "",
		DuplicateContent: duplicates > 0,
	})
	sentiment := r.sentiment.Analyze(ctx, content.Readable, content.Language, opts.useLLM)

	patch := persister.CrawlPatch{
		HTTPStatus:   result.StatusCode,
		Title:        persister.String(content.Title),
		Description:  persister.String(content.Description),
		Language:     persister.String(content.Language),
		CanonicalURL: persister.String(content.CanonicalURL),
		RawContent:   persister.String(string(result.Body)),
		Readable:     persister.String(content.Readable),
		WordCount:    persister.Int(content.WordCount),
		Source:       persister.String(content.Source),
		Relevance:    persister.Int(relevance),
		QualityScore: persister.Float(quality),
		ContentHash:  persister.String(contentHash),
		CrawledAt:    persister.Time(now),
		ReadableAt:   persister.Time(now),
	}
	if sentiment.Status == scoring.SentimentStatusOK {
		patch.SentimentScore = persister.Float(sentiment.Score)
		patch.SentimentLabel = persister.String(sentiment.Label)
		patch.SentimentConfidence = persister.Float(sentiment.Confidence)
	}

	saved, err := r.persist.RecordCrawlOutcome(ctx, expr.ID, patch)
	if err != nil {
		if fatal := run.internalFailure("persister", err); fatal != nil {
			return
		}
		run.record(ctx, func(c *models.Counters) { c.Failed++ })
		return
	}
	run.internalOK("persister")

	// Graph and media attachment failures degrade the candidate, never the
	// outcome already recorded.
	if _, err := r.expander.Expand(ctx, run.land, saved, content.Links, opts.depthLimit); err != nil {
		r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Link expansion failed")
	}

	if err := r.persist.AttachMedia(ctx, expr.LandID, expr.ID, mediaRefs(content.Media)); err != nil {
		r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Media attachment failed")
	}

	if _, err := r.paragraphs.Refresh(ctx, saved); err != nil {
		r.logger.Warn().Err(err).Str("expression_id", expr.ID).Msg("Paragraph refresh failed")
	}

	run.record(ctx, func(c *models.Counters) { c.OK++ })
}

// mediaRefs converts extractor media references to persister refs.
func mediaRefs(media []extractor.MediaRef) []persister.MediaRef {
	refs := make([]persister.MediaRef, len(media))
	for i, m := range media {
		refs[i] = persister.MediaRef{URL: m.URL, Kind: m.Kind}
	}
	return refs
}
