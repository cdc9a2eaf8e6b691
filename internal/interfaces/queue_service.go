package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// QueueManager manages the durable at-least-once queue of job ids. A
// received id becomes invisible for the visibility timeout; the delete
// function acknowledges it, Extend renews the lease.
type QueueManager interface {
	Enqueue(ctx context.Context, jobID string) error
	// Receive pops the oldest visible job id. Returns ErrQueueEmpty when
	// nothing is visible.
	Receive(ctx context.Context) (jobID string, done func() error, err error)
	Extend(ctx context.Context, jobID string, duration time.Duration) error
	Length(ctx context.Context) (int, error)
	Close() error
}

// JobHandler runs one claimed job to completion.
type JobHandler func(ctx context.Context, job *models.Job) error

// WorkerPool dispatches claimed jobs to per-kind handlers.
type WorkerPool interface {
	RegisterHandler(kind models.JobKind, handler JobHandler)
	Start() error
	Stop() error
}

// JobService creates, inspects and cancels jobs.
type JobService interface {
	CreateJob(ctx context.Context, kind models.JobKind, landID string, params map[string]interface{}) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, landID string, status models.JobStatus, limit int) ([]*models.Job, error)
	CancelJob(ctx context.Context, jobID string) error
}
