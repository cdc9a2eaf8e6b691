package jobs

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Service creates, inspects and cancels jobs. Creation persists the job row
// first, then enqueues the id; a crash between the two leaves a pending row
// the stale sweep will eventually requeue.
type Service struct {
	store  interfaces.StorageManager
	queue  interfaces.QueueManager
	logger arbor.ILogger
}

// NewService creates the job service.
func NewService(store interfaces.StorageManager, queue interfaces.QueueManager, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		queue:  queue,
		logger: logger,
	}
}

// CreateJob validates, persists and enqueues a new job.
func (s *Service) CreateJob(ctx context.Context, kind models.JobKind, landID string, params map[string]interface{}) (*models.Job, error) {
	if _, err := models.ParseJobKind(string(kind)); err != nil {
		return nil, err
	}
	if _, err := s.store.Lands().GetLand(ctx, landID); err != nil {
		return nil, fmt.Errorf("land not found: %w", err)
	}

	job := models.NewJob(kind, landID, params)
	if err := s.store.Jobs().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Str("land_id", landID).
		Msg("Job created")
	return job, nil
}

// GetJob returns one job row.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.Jobs().GetJob(ctx, jobID)
}

// ListJobs returns jobs filtered by land and status.
func (s *Service) ListJobs(ctx context.Context, landID string, status models.JobStatus, limit int) ([]*models.Job, error) {
	return s.store.Jobs().ListJobs(ctx, landID, status, limit)
}

// CancelJob requests cooperative cancellation. Running jobs observe the flag
// between candidates; a job cancelled before any worker claims it is marked
// cancelled the moment a worker picks it up.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	if err := s.store.Jobs().RequestCancel(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info().
		Str("job_id", jobID).
		Msg("Job cancellation requested")
	return nil
}
