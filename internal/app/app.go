package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/handlers"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/jobs"
	"github.com/ternarybob/indago/internal/queue"
	"github.com/ternarybob/indago/internal/services/adapters"
	"github.com/ternarybob/indago/internal/services/dictionary"
	"github.com/ternarybob/indago/internal/services/events"
	"github.com/ternarybob/indago/internal/services/extractor"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/services/graph"
	"github.com/ternarybob/indago/internal/services/lands"
	"github.com/ternarybob/indago/internal/services/llm"
	"github.com/ternarybob/indago/internal/services/media"
	"github.com/ternarybob/indago/internal/services/paragraphs"
	"github.com/ternarybob/indago/internal/services/persister"
	"github.com/ternarybob/indago/internal/services/scheduler"
	"github.com/ternarybob/indago/internal/services/scoring"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// App wires every component in dependency order: config → logging → store →
// queue → adapters → services → scheduler. The HTTP server sits on top in
// cmd/indago.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	Progress       interfaces.ProgressPublisher

	Queue      interfaces.QueueManager
	WorkerPool interfaces.WorkerPool
	JobService interfaces.JobService

	LandService *lands.Service
	Scheduler   *scheduler.Scheduler

	WSHandler  *handlers.WebSocketHandler
	APIHandler *handlers.APIHandler
}

// New builds the application from a loaded configuration.
func New(config *common.Config) (*App, error) {
	logger := common.InitLogger(config)
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := a.wire(); err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	config := a.Config
	logger := a.Logger

	// Storage.
	db, err := badger.NewBadgerDB(logger, &config.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.StorageManager = badger.NewManagerWithDB(logger, db)

	// Queue over the same Badger instance.
	queueManager, err := queue.NewManager(db.Store().Badger(), config.Queue.Name, config.Queue.VisibilityTimeout, config.Queue.MaxReceive, logger)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	a.Queue = queueManager

	// Events and progress.
	a.EventService = events.NewService(logger)
	a.Progress = events.NewProgressService(a.StorageManager.Jobs(), a.EventService, config.Scheduler.ProgressInterval, logger)

	// External adapters. The LLM adapter is optional; everything that uses
	// it degrades when absent.
	archive := adapters.NewArchiveClient(config.Adapters.Archive, logger)
	search := adapters.NewSearchClient(config.Adapters.Search, logger)
	seorank := adapters.NewSEORankClient(config.Adapters.SEORank, logger)

	var llmAdapter interfaces.LLMAdapter
	if config.LLM.Enabled {
		llmAdapter, err = llm.NewAdapter(a.ctx, config, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("LLM adapter unavailable, validation disabled")
			llmAdapter = nil
		}
	}

	// Pipeline services.
	fetch := fetcher.NewService(config.Fetcher, logger)
	mediaFetcherConfig := config.Fetcher
	mediaFetcherConfig.MaxBytes = config.Media.MaxBytes
	mediaFetcherConfig.Timeout = config.Media.Timeout
	mediaFetch := fetcher.NewService(mediaFetcherConfig, logger)

	extract := extractor.NewService(config.Extractor, archive, logger)
	dict := dictionary.NewService(a.StorageManager.Words(), a.StorageManager.Lands(), logger)
	sentiment := scoring.NewSentimentAnalyzer(config.Scoring, llmAdapter, logger)

	heuristics, err := graph.NewHeuristics(config.Heuristics, logger)
	if err != nil {
		return fmt.Errorf("failed to load heuristics: %w", err)
	}
	expander := graph.NewExpander(a.StorageManager, heuristics, logger)
	persist := persister.NewService(a.StorageManager, logger)
	paragrapher := paragraphs.NewService(a.StorageManager, logger)
	analyzer := media.NewAnalyzer(config.Media, mediaFetch, a.StorageManager, logger)

	a.LandService = lands.NewService(a.StorageManager, expander, dict, logger)
	a.JobService = jobs.NewService(a.StorageManager, a.Queue, logger)

	// Job runner and worker pool.
	runner := jobs.NewRunner(jobs.Deps{
		Config:     config,
		Store:      a.StorageManager,
		Fetch:      fetch,
		MediaFetch: mediaFetch,
		Extract:    extract,
		Dict:       dict,
		Sentiment:  sentiment,
		Expander:   expander,
		Persist:    persist,
		Progress:   a.Progress,
		LLM:        llmAdapter,
		SEO:        seorank,
		Search:     search,
		Analyzer:   analyzer,
		Paragraphs: paragrapher,
		Logger:     logger,
	})
	pool := queue.NewWorkerPool(a.Queue, a.StorageManager.Jobs(), config.Queue, logger)
	runner.RegisterAll(pool)
	a.WorkerPool = pool

	// Scheduler: recurring jobs and the stale-claim sweep.
	a.Scheduler = scheduler.New(config.Scheduler, a.JobService, a.StorageManager, a.Queue, logger)

	// HTTP-facing handlers.
	a.WSHandler, err = handlers.NewWebSocketHandler(a.EventService, a.Progress, config.WebSocket, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize websocket handler: %w", err)
	}
	a.APIHandler = handlers.NewAPIHandler(a.JobService, a.LandService, logger)

	return nil
}

// Start launches the worker pool and the scheduler.
func (a *App) Start() error {
	if err := a.WorkerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	if err := a.Scheduler.Start(a.ctx, a.Config.Cron.Entries); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Logger.Info().Msg("Application started")
	return nil
}

// Shutdown stops components in reverse dependency order.
func (a *App) Shutdown() {
	a.Logger.Info().Msg("Shutting down application...")

	a.Scheduler.Stop()
	if err := a.WorkerPool.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Worker pool stop failed")
	}
	a.cancelCtx()

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}
	if err := a.Queue.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Queue close failed")
	}
	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}

	a.Logger.Info().Msg("Application stopped")
}
