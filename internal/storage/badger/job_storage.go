package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, landID string, status models.JobStatus, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")
	if landID != "" {
		query = query.And("LandID").Eq(landID)
	}
	if status != "" {
		query = query.And("Status").Eq(status)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// ClaimJob performs the pending → running transition inside a single Badger
// transaction. Two workers racing on the same job commit conflict, and the
// loser reports claimed=false.
func (s *JobStorage) ClaimJob(ctx context.Context, jobID, workerID string) (*models.Job, bool, error) {
	store := s.db.Store()
	var job models.Job

	err := store.Badger().Update(func(txn *badgerdb.Txn) error {
		if err := store.TxGet(txn, jobID, &job); err != nil {
			return err
		}
		if job.Status != models.JobStatusPending {
			return errAlreadyClaimed
		}
		if job.CancelRequested {
			job.MarkCancelled()
			return store.TxUpdate(txn, jobID, &job)
		}
		job.MarkRunning(workerID)
		return store.TxUpdate(txn, jobID, &job)
	})

	switch err {
	case nil:
		if job.Status != models.JobStatusRunning {
			return &job, false, nil
		}
		return &job, true, nil
	case errAlreadyClaimed, badgerdb.ErrConflict:
		return nil, false, nil
	case badgerhold.ErrNotFound:
		return nil, false, fmt.Errorf("job not found: %s", jobID)
	default:
		return nil, false, fmt.Errorf("failed to claim job: %w", err)
	}
}

var errAlreadyClaimed = fmt.Errorf("job already claimed")

// RequestCancel asks a job to stop. Pending jobs transition straight to
// cancelled since no worker owns them; running jobs get the flag and stop at
// the next checkpoint.
func (s *JobStorage) RequestCancel(ctx context.Context, jobID string) error {
	store := s.db.Store()

	err := store.Badger().Update(func(txn *badgerdb.Txn) error {
		var job models.Job
		if err := store.TxGet(txn, jobID, &job); err != nil {
			return err
		}
		if job.IsTerminal() {
			return nil
		}
		job.CancelRequested = true
		if job.Status == models.JobStatusPending {
			job.MarkCancelled()
		} else {
			job.Touch()
		}
		return store.TxUpdate(txn, jobID, &job)
	})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return nil
}

// ResetStale recovers jobs whose worker stopped heartbeating. Running jobs
// past the threshold go back to pending for another claim, except
// cancel-requested ones which finish as cancelled.
func (s *JobStorage) ResetStale(ctx context.Context, threshold time.Duration) ([]string, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return nil, fmt.Errorf("failed to scan running jobs: %w", err)
	}

	var reset []string
	for i := range jobs {
		job := &jobs[i]
		if !job.IsStale(threshold) {
			continue
		}
		if job.CancelRequested {
			job.MarkCancelled()
		} else {
			job.Status = models.JobStatusPending
			job.WorkerID = ""
			job.StartedAt = nil
			job.Touch()
		}
		if err := s.db.Store().Upsert(job.ID, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reset stale job")
			continue
		}
		if job.Status == models.JobStatusPending {
			reset = append(reset, job.ID)
		}
		s.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("Recovered stale job")
	}
	return reset, nil
}
