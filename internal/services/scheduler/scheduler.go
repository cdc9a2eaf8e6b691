package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Scheduler hosts the recurring maintenance of the job system: cron-driven
// job creation from configuration, and the stale-claim sweep that requeues
// running jobs whose worker disappeared.
type Scheduler struct {
	config common.SchedulerConfig
	cron   *cron.Cron
	jobs   interfaces.JobService
	store  interfaces.StorageManager
	queue  interfaces.QueueManager
	logger arbor.ILogger
}

// New creates the scheduler. Call Start to begin ticking.
func New(config common.SchedulerConfig, jobs interfaces.JobService, store interfaces.StorageManager, queue interfaces.QueueManager, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		config: config,
		cron:   cron.New(),
		jobs:   jobs,
		store:  store,
		queue:  queue,
		logger: logger,
	}
}

// Start registers the configured entries plus the stale sweep and starts the
// cron loop.
func (s *Scheduler) Start(ctx context.Context, entries []common.CronEntryConfig) error {
	// The sweep runs every minute; the threshold itself decides staleness.
	if _, err := s.cron.AddFunc("* * * * *", func() { s.sweepStale(ctx) }); err != nil {
		return fmt.Errorf("failed to register stale sweep: %w", err)
	}

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		kind, err := models.ParseJobKind(entry.Kind)
		if err != nil {
			return fmt.Errorf("cron entry %q: %w", entry.Schedule, err)
		}
		landID := entry.LandID
		if _, err := s.cron.AddFunc(entry.Schedule, func() { s.enqueueScheduled(ctx, kind, landID) }); err != nil {
			return fmt.Errorf("cron entry %q: %w", entry.Schedule, err)
		}
		s.logger.Info().
			Str("schedule", entry.Schedule).
			Str("kind", string(kind)).
			Str("land_id", landID).
			Msg("Recurring job registered")
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for in-flight entries.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// enqueueScheduled creates one job from a cron entry. A land that already has
// a pending or running job of the kind is skipped to avoid pile-up.
func (s *Scheduler) enqueueScheduled(ctx context.Context, kind models.JobKind, landID string) {
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning} {
		active, err := s.store.Jobs().ListJobs(ctx, landID, status, 0)
		if err != nil {
			s.logger.Warn().Err(err).Str("land_id", landID).Msg("Scheduled enqueue check failed")
			return
		}
		for _, job := range active {
			if job.Kind == kind {
				s.logger.Debug().
					Str("land_id", landID).
					Str("kind", string(kind)).
					Str("job_id", job.ID).
					Msg("Scheduled job skipped, already active")
				return
			}
		}
	}

	job, err := s.jobs.CreateJob(ctx, kind, landID, nil)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("land_id", landID).
			Str("kind", string(kind)).
			Msg("Scheduled enqueue failed")
		return
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Str("land_id", landID).
		Msg("Scheduled job enqueued")
}

// sweepStale requeues running jobs whose heartbeat exceeded the stale
// threshold. The reset rows go back to pending and their ids re-enter the
// queue for another worker.
func (s *Scheduler) sweepStale(ctx context.Context) {
	reset, err := s.store.Jobs().ResetStale(ctx, s.config.StaleClaim)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stale sweep failed")
		return
	}
	for _, jobID := range reset {
		if err := s.queue.Enqueue(ctx, jobID); err != nil {
			s.logger.Error().
				Err(err).
				Str("job_id", jobID).
				Msg("Failed to requeue stale job")
			continue
		}
		s.logger.Warn().
			Str("job_id", jobID).
			Msg("Stale job requeued")
	}
}
