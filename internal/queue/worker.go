package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// WorkerPool pulls job ids off the queue, claims the job row and dispatches
// to the handler registered for the job kind. The pool owns the terminal
// transition backstop: a handler that returns without persisting a terminal
// state gets one written for it.
type WorkerPool struct {
	queue    interfaces.QueueManager
	jobs     interfaces.JobStorage
	handlers map[models.JobKind]interfaces.JobHandler
	config   common.QueueConfig
	hostname string
	logger   arbor.ILogger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
}

// NewWorkerPool creates a worker pool over the queue and job storage.
func NewWorkerPool(queue interfaces.QueueManager, jobs interfaces.JobStorage, config common.QueueConfig, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}

	return &WorkerPool{
		queue:    queue,
		jobs:     jobs,
		handlers: make(map[models.JobKind]interfaces.JobHandler),
		config:   config,
		hostname: hostname,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers the handler for a job kind.
func (wp *WorkerPool) RegisterHandler(kind models.JobKind, handler interfaces.JobHandler) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.handlers[kind] = handler
	wp.logger.Debug().
		Str("kind", string(kind)).
		Msg("Job handler registered")
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.config.Concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.config.Concurrency; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	return nil
}

// Stop signals every worker and waits for in-flight jobs to finish.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	wp.wg.Wait()
	return nil
}

func (wp *WorkerPool) worker(index int) {
	defer wp.wg.Done()

	// Stagger worker starts to spread polls across the interval.
	stagger := (wp.config.PollInterval / time.Duration(wp.config.Concurrency)) * time.Duration(index)
	if stagger > 0 {
		select {
		case <-time.After(stagger):
		case <-wp.ctx.Done():
			return
		}
	}

	workerID := fmt.Sprintf("%s-%d", wp.hostname, index)
	wp.logger.Debug().
		Str("worker_id", workerID).
		Msg("Worker started")

	ticker := time.NewTicker(wp.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Str("worker_id", workerID).
				Msg("Worker stopped")
			return
		case <-ticker.C:
			if err := wp.processOne(workerID); err != nil && err != ErrQueueEmpty {
				wp.logger.Warn().
					Err(err).
					Str("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

func (wp *WorkerPool) processOne(workerID string) error {
	jobID, done, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		return err
	}

	job, claimed, err := wp.jobs.ClaimJob(wp.ctx, jobID, workerID)
	if err != nil {
		// Ack messages for missing jobs so they stop circulating.
		if ackErr := done(); ackErr != nil {
			wp.logger.Warn().Err(ackErr).Str("job_id", jobID).Msg("Failed to ack message")
		}
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	if !claimed {
		// Another worker owns it, or the job is already terminal.
		if ackErr := done(); ackErr != nil {
			wp.logger.Warn().Err(ackErr).Str("job_id", jobID).Msg("Failed to ack message")
		}
		return nil
	}

	wp.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("worker_id", workerID).
		Msg("Processing job")

	wp.mu.RLock()
	handler, exists := wp.handlers[job.Kind]
	wp.mu.RUnlock()
	if !exists {
		job.MarkFailed(fmt.Sprintf("no handler for job kind: %s", job.Kind))
		if saveErr := wp.jobs.SaveJob(wp.ctx, job); saveErr != nil {
			wp.logger.Warn().Err(saveErr).Str("job_id", job.ID).Msg("Failed to persist job failure")
		}
		if ackErr := done(); ackErr != nil {
			wp.logger.Warn().Err(ackErr).Str("job_id", job.ID).Msg("Failed to ack message")
		}
		return fmt.Errorf("no handler for job kind: %s", job.Kind)
	}

	stopLease := wp.keepLeaseAlive(job.ID)
	started := time.Now()
	handlerErr := handler(wp.ctx, job)
	duration := time.Since(started)
	stopLease()

	wp.finalize(job, handlerErr)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Dur("duration", duration).
			Msg("Job handler failed")
	} else {
		wp.logger.Info().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Str("status", string(job.Status)).
			Dur("duration", duration).
			Msg("Job finished")
	}

	if err := done(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to ack message after processing")
		return err
	}
	return nil
}

// finalize writes the terminal state when the handler did not. Handlers that
// already marked the job cancelled or failed keep their outcome.
func (wp *WorkerPool) finalize(job *models.Job, handlerErr error) {
	current, err := wp.jobs.GetJob(wp.ctx, job.ID)
	if err == nil && current.IsTerminal() {
		job.Status = current.Status
		return
	}

	if handlerErr != nil {
		job.MarkFailed(handlerErr.Error())
	} else if !job.IsTerminal() {
		job.MarkSucceeded()
	}
	if err := wp.jobs.SaveJob(wp.ctx, job); err != nil {
		wp.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist terminal job state")
	}
}

// keepLeaseAlive renews the message visibility while the handler runs.
func (wp *WorkerPool) keepLeaseAlive(jobID string) func() {
	stop := make(chan struct{})
	interval := wp.config.VisibilityTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-wp.ctx.Done():
				return
			case <-ticker.C:
				if err := wp.queue.Extend(wp.ctx, jobID, wp.config.VisibilityTimeout); err != nil {
					wp.logger.Warn().
						Err(err).
						Str("job_id", jobID).
						Msg("Failed to extend message lease")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}
