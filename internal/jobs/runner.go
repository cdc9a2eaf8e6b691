package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/dictionary"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/services/graph"
	"github.com/ternarybob/indago/internal/services/media"
	"github.com/ternarybob/indago/internal/services/paragraphs"
	"github.com/ternarybob/indago/internal/services/persister"
	"github.com/ternarybob/indago/internal/services/scoring"
)

// errIdle is the watchdog's fatal verdict.
var errIdle = errors.New("job made no progress within max_idle")

// Runner owns the per-kind job handlers and the shared pipeline services
// they compose. One Runner serves every worker; per-job state lives in
// jobRun.
type Runner struct {
	config     *common.Config
	store      interfaces.StorageManager
	fetch      *fetcher.Service
	mediaFetch *fetcher.Service
	extract    ExtractService
	dict       *dictionary.Service
	sentiment  *scoring.SentimentAnalyzer
	expander   *graph.Expander
	persist    *persister.Service
	progress   interfaces.ProgressPublisher
	llm        interfaces.LLMAdapter
	seo        interfaces.SEOAdapter
	search     interfaces.SearchAdapter
	analyzer   *media.Analyzer
	paragraphs *paragraphs.Service
	logger     arbor.ILogger
}

// Deps bundles the services a Runner composes.
type Deps struct {
	Config     *common.Config
	Store      interfaces.StorageManager
	Fetch      *fetcher.Service
	MediaFetch *fetcher.Service
	Extract    ExtractService
	Dict       *dictionary.Service
	Sentiment  *scoring.SentimentAnalyzer
	Expander   *graph.Expander
	Persist    *persister.Service
	Progress   interfaces.ProgressPublisher
	LLM        interfaces.LLMAdapter
	SEO        interfaces.SEOAdapter
	Search     interfaces.SearchAdapter
	Analyzer   *media.Analyzer
	Paragraphs *paragraphs.Service
	Logger     arbor.ILogger
}

// NewRunner creates the runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{
		config:     deps.Config,
		store:      deps.Store,
		fetch:      deps.Fetch,
		mediaFetch: deps.MediaFetch,
		extract:    deps.Extract,
		dict:       deps.Dict,
		sentiment:  deps.Sentiment,
		expander:   deps.Expander,
		persist:    deps.Persist,
		progress:   deps.Progress,
		llm:        deps.LLM,
		seo:        deps.SEO,
		search:     deps.Search,
		analyzer:   deps.Analyzer,
		paragraphs: deps.Paragraphs,
		logger:     deps.Logger,
	}
}

// RegisterAll wires every job kind onto the worker pool.
func (r *Runner) RegisterAll(pool interfaces.WorkerPool) {
	pool.RegisterHandler(models.JobKindCrawl, r.wrap(r.handleCrawl))
	pool.RegisterHandler(models.JobKindSearch, r.wrap(r.handleSearch))
	pool.RegisterHandler(models.JobKindReadable, r.wrap(r.handleReadable))
	pool.RegisterHandler(models.JobKindMedia, r.wrap(r.handleMedia))
	pool.RegisterHandler(models.JobKindLLM, r.wrap(r.handleLLMBatch))
	pool.RegisterHandler(models.JobKindConsolidate, r.wrap(r.handleConsolidate))
	pool.RegisterHandler(models.JobKindSEORank, r.wrap(r.handleSEORank))
	pool.RegisterHandler(models.JobKindDomainCrawl, r.wrap(r.handleDomainCrawl))
	pool.RegisterHandler(models.JobKindHeuristic, r.wrap(r.handleHeuristic))
}

// jobRun is the mutable state of one running job: counters, progress
// position, the cancel flag and the internal-error ledger.
type jobRun struct {
	runner *Runner
	job    *models.Job
	land   *models.Land

	mu           sync.Mutex
	counters     models.Counters
	depth        int
	completed    int
	total        int
	currentURL   string
	lastActivity time.Time
	cancelled    bool

	// consecutive internal errors per component; the second in a row from
	// the same component is fatal.
	internalErrs map[string]int
	fatal        error
}

// wrap builds the common harness around a kind handler: land resolution,
// pre-start cancel, the cancel-flag poller, the idle watchdog and the
// terminal transition with its final progress event.
func (r *Runner) wrap(body func(ctx context.Context, run *jobRun) error) interfaces.JobHandler {
	return func(ctx context.Context, job *models.Job) error {
		land, err := r.store.Lands().GetLand(ctx, job.LandID)
		if err != nil {
			job.MarkFailed(fmt.Sprintf("land not found: %v", err))
			r.saveAndPublish(ctx, job, nil)
			return nil
		}

		run := &jobRun{
			runner:       r,
			job:          job,
			land:         land,
			lastActivity: time.Now(),
			internalErrs: make(map[string]int),
		}

		if job.CancelRequested {
			job.MarkCancelled()
			r.saveAndPublish(ctx, job, run)
			return nil
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var watch sync.WaitGroup
		watch.Add(1)
		go func() {
			defer watch.Done()
			run.watch(runCtx, cancel)
		}()

		bodyErr := body(runCtx, run)
		cancel()
		watch.Wait()

		run.mu.Lock()
		cancelled := run.cancelled
		fatal := run.fatal
		counters := run.counters
		run.mu.Unlock()

		job.Counters = counters
		switch {
		case cancelled:
			job.MarkCancelled()
		case fatal != nil:
			job.MarkFailed(fatal.Error())
		case bodyErr != nil && !errors.Is(bodyErr, context.Canceled):
			job.MarkFailed(bodyErr.Error())
		default:
			job.MarkSucceeded()
		}
		r.saveAndPublish(ctx, job, run)
		return nil
	}
}

// saveAndPublish persists the terminal job row, then emits the terminal
// progress event past the throttle.
func (r *Runner) saveAndPublish(ctx context.Context, job *models.Job, run *jobRun) {
	if err := r.store.Jobs().SaveJob(ctx, job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist terminal job state")
	}

	event := models.ProgressEvent{
		JobID:    job.ID,
		LandID:   job.LandID,
		Kind:     job.Kind,
		Status:   job.Status,
		Counters: job.Counters,
		Percent:  job.Progress,
	}
	if run != nil {
		run.mu.Lock()
		event.Depth = run.depth
		event.Completed = run.completed
		event.Total = run.total
		run.mu.Unlock()
	}
	if job.Status == models.JobStatusSucceeded {
		event.Percent = 100
	}
	r.progress.Publish(ctx, event)
}

// watch polls the cancel flag and the idle clock until the run context ends.
func (run *jobRun) watch(ctx context.Context, cancel context.CancelFunc) {
	maxIdle := run.runner.config.Scheduler.MaxIdle
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := run.runner.store.Jobs().GetJob(ctx, run.job.ID)
			if err == nil && current.CancelRequested {
				run.mu.Lock()
				run.cancelled = true
				run.mu.Unlock()
				cancel()
				return
			}

			run.mu.Lock()
			idle := time.Since(run.lastActivity)
			run.mu.Unlock()
			if maxIdle > 0 && idle > maxIdle {
				run.mu.Lock()
				run.fatal = errIdle
				run.mu.Unlock()
				cancel()
				return
			}
		}
	}
}

// Progress and counter helpers. Every mutation touches the activity clock.

func (run *jobRun) setWave(depth, total int) {
	run.mu.Lock()
	run.depth = depth
	run.total = total
	run.lastActivity = time.Now()
	run.mu.Unlock()
}

func (run *jobRun) working(url string) {
	run.mu.Lock()
	run.currentURL = url
	run.lastActivity = time.Now()
	run.mu.Unlock()
}

// record applies a counter mutation and publishes a progress snapshot.
func (run *jobRun) record(ctx context.Context, mutate func(c *models.Counters)) {
	run.mu.Lock()
	mutate(&run.counters)
	run.completed++
	run.lastActivity = time.Now()
	event := run.snapshotLocked()
	run.mu.Unlock()

	run.runner.progress.Publish(ctx, event)
}

// addSkipped counts candidates excluded before processing starts.
func (run *jobRun) addSkipped(n int) {
	run.mu.Lock()
	run.counters.Skipped += n
	run.lastActivity = time.Now()
	run.mu.Unlock()
}

func (run *jobRun) snapshotLocked() models.ProgressEvent {
	total := run.total
	if total < run.completed {
		total = run.completed
	}
	percent := 0.0
	if total > 0 {
		percent = float64(run.completed) / float64(total) * 100
	}
	return models.ProgressEvent{
		JobID:      run.job.ID,
		LandID:     run.job.LandID,
		Kind:       run.job.Kind,
		Status:     models.JobStatusRunning,
		Depth:      run.depth,
		Completed:  run.completed,
		Total:      total,
		Percent:    percent,
		Counters:   run.counters,
		CurrentURL: run.currentURL,
	}
}

// internalFailure records an internal error for a component. The first one
// marks the candidate failed and the job continues; the second consecutive
// from the same component becomes the job's fatal error.
func (run *jobRun) internalFailure(component string, err error) error {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.internalErrs[component]++
	count := run.internalErrs[component]

	run.runner.logger.Error().
		Err(err).
		Str("job_id", run.job.ID).
		Str("component", component).
		Int("consecutive", count).
		Msg("Internal error in pipeline component")

	if count >= 2 {
		run.fatal = fmt.Errorf("repeated internal error in %s: %w", component, err)
		return run.fatal
	}
	return nil
}

// internalOK resets a component's consecutive error count.
func (run *jobRun) internalOK(component string) {
	run.mu.Lock()
	delete(run.internalErrs, component)
	run.mu.Unlock()
}

func (run *jobRun) isFatal() bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.fatal != nil
}

// concurrency returns the per-job pipeline width.
func (r *Runner) concurrency() int {
	n := r.config.Scheduler.PerJobConcurrency
	if n <= 0 {
		n = 8
	}
	return n
}

// forEach runs work over items with bounded concurrency, stopping early on
// context cancellation or a fatal run error. Candidates start in slice order
// and complete in any order.
func (run *jobRun) forEach(ctx context.Context, n int, count int, work func(ctx context.Context, index int)) {
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup

	for i := 0; i < count; i++ {
		if ctx.Err() != nil || run.isFatal() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()
			work(ctx, index)
		}(i)
	}
	wg.Wait()
}
