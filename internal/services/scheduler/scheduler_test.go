package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// fakeJobService records CreateJob calls and persists through the store so
// the pile-up check sees what it created.
type fakeJobService struct {
	store   interfaces.StorageManager
	queue   interfaces.QueueManager
	mu      sync.Mutex
	created []*models.Job
}

func (f *fakeJobService) CreateJob(ctx context.Context, kind models.JobKind, landID string, params map[string]interface{}) (*models.Job, error) {
	job := models.NewJob(kind, landID, params)
	if err := f.store.Jobs().SaveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := f.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.created = append(f.created, job)
	f.mu.Unlock()
	return job, nil
}

func (f *fakeJobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return f.store.Jobs().GetJob(ctx, jobID)
}

func (f *fakeJobService) ListJobs(ctx context.Context, landID string, status models.JobStatus, limit int) ([]*models.Job, error) {
	return f.store.Jobs().ListJobs(ctx, landID, status, limit)
}

func (f *fakeJobService) CancelJob(ctx context.Context, jobID string) error {
	return f.store.Jobs().RequestCancel(ctx, jobID)
}

func (f *fakeJobService) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// memQueue is an in-memory QueueManager for sweep tests.
type memQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *memQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *memQueue) Receive(ctx context.Context) (string, func() error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", nil, context.Canceled
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, func() error { return nil }, nil
}

func (q *memQueue) Extend(ctx context.Context, jobID string, d time.Duration) error { return nil }

func (q *memQueue) Length(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids), nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) contains(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.ids {
		if id == jobID {
			return true
		}
	}
	return false
}

func newSchedulerFixture(t *testing.T) (*Scheduler, *fakeJobService, *memQueue, interfaces.StorageManager) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := badger.NewManagerWithDB(logger, db)

	queue := &memQueue{}
	jobs := &fakeJobService{store: store, queue: queue}
	s := New(common.SchedulerConfig{StaleClaim: 15 * time.Minute}, jobs, store, queue, logger)
	return s, jobs, queue, store
}

func TestEnqueueScheduledCreatesJob(t *testing.T) {
	s, jobs, queue, _ := newSchedulerFixture(t)

	s.enqueueScheduled(context.Background(), models.JobKindCrawl, "land_1")

	if jobs.createdCount() != 1 {
		t.Fatalf("created %d jobs", jobs.createdCount())
	}
	length, _ := queue.Length(context.Background())
	if length != 1 {
		t.Errorf("queue length = %d", length)
	}
}

func TestEnqueueScheduledSkipsWhenActive(t *testing.T) {
	s, jobs, _, store := newSchedulerFixture(t)
	ctx := context.Background()

	pending := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := store.Jobs().SaveJob(ctx, pending); err != nil {
		t.Fatal(err)
	}

	s.enqueueScheduled(ctx, models.JobKindCrawl, "land_1")
	if jobs.createdCount() != 0 {
		t.Error("scheduled job piled onto a pending one")
	}

	// A different kind on the same land is not blocked.
	s.enqueueScheduled(ctx, models.JobKindMedia, "land_1")
	if jobs.createdCount() != 1 {
		t.Errorf("other kind blocked: created %d", jobs.createdCount())
	}

	// Another land is independent.
	s.enqueueScheduled(ctx, models.JobKindCrawl, "land_2")
	if jobs.createdCount() != 2 {
		t.Errorf("other land blocked: created %d", jobs.createdCount())
	}
}

func TestSweepStaleRequeues(t *testing.T) {
	s, _, queue, store := newSchedulerFixture(t)
	ctx := context.Background()

	stale := models.NewJob(models.JobKindCrawl, "land_1", nil)
	stale.MarkRunning("worker-gone")
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	if err := store.Jobs().SaveJob(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh := models.NewJob(models.JobKindCrawl, "land_1", nil)
	fresh.MarkRunning("worker-alive")
	if err := store.Jobs().SaveJob(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	s.sweepStale(ctx)

	if !queue.contains(stale.ID) {
		t.Error("stale job not requeued")
	}
	if queue.contains(fresh.ID) {
		t.Error("fresh job requeued")
	}

	recovered, err := store.Jobs().GetJob(ctx, stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if recovered.Status != models.JobStatusPending {
		t.Errorf("stale job status = %s", recovered.Status)
	}
}

func TestStartRejectsBadCronEntries(t *testing.T) {
	s, _, _, _ := newSchedulerFixture(t)
	defer s.Stop()

	err := s.Start(context.Background(), []common.CronEntryConfig{
		{Enabled: true, Schedule: "not a schedule", Kind: "crawl", LandID: "land_1"},
	})
	if err == nil {
		t.Fatal("invalid schedule accepted")
	}

	err = s.Start(context.Background(), []common.CronEntryConfig{
		{Enabled: true, Schedule: "@hourly", Kind: "unknown-kind", LandID: "land_1"},
	})
	if err == nil {
		t.Fatal("unknown job kind accepted")
	}
}
