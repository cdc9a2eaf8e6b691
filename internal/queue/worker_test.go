package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/storage/badger"
)

func newWorkerFixture(t *testing.T) (*WorkerPool, interfaces.QueueManager, interfaces.StorageManager) {
	t.Helper()
	logger := arbor.NewLogger()

	storeDB, err := badger.NewBadgerDB(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { storeDB.Close() })
	store := badger.NewManagerWithDB(logger, storeDB)

	queueDB, err := badgerdb.Open(badgerdb.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatalf("open queue badger: %v", err)
	}
	t.Cleanup(func() { queueDB.Close() })
	q, err := NewManager(queueDB, "jobs", time.Minute, 3, logger)
	if err != nil {
		t.Fatal(err)
	}

	pool := NewWorkerPool(q, store.Jobs(), common.QueueConfig{
		Name:              "jobs",
		PollInterval:      10 * time.Millisecond,
		VisibilityTimeout: time.Minute,
		MaxReceive:        3,
		Concurrency:       2,
	}, logger)
	return pool, q, store
}

func waitTerminal(t *testing.T, store interfaces.StorageManager, jobID string) *models.Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state", jobID)
		case <-time.After(10 * time.Millisecond):
		}
		job, err := store.Jobs().GetJob(context.Background(), jobID)
		if err != nil {
			continue
		}
		if job.IsTerminal() {
			return job
		}
	}
}

func TestWorkerPoolRunsJob(t *testing.T) {
	pool, q, store := newWorkerFixture(t)
	ctx := context.Background()

	ran := make(chan string, 1)
	pool.RegisterHandler(models.JobKindCrawl, func(ctx context.Context, job *models.Job) error {
		ran <- job.WorkerID
		job.MarkSucceeded()
		return store.Jobs().SaveJob(ctx, job)
	})

	job := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := store.Jobs().SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()

	select {
	case workerID := <-ran:
		if workerID == "" {
			t.Error("handler saw no worker id")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}

	done := waitTerminal(t, store, job.ID)
	if done.Status != models.JobStatusSucceeded {
		t.Errorf("job = %s", done.Status)
	}

	// The message was acked.
	length, err := q.Length(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if length != 0 {
		t.Errorf("queue length = %d after ack", length)
	}
}

func TestWorkerPoolBackstopsMissingTerminalState(t *testing.T) {
	pool, q, store := newWorkerFixture(t)
	ctx := context.Background()

	// The handler returns without persisting any terminal state.
	pool.RegisterHandler(models.JobKindMedia, func(ctx context.Context, job *models.Job) error {
		return nil
	})

	job := models.NewJob(models.JobKindMedia, "land_1", nil)
	if err := store.Jobs().SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()

	done := waitTerminal(t, store, job.ID)
	if done.Status != models.JobStatusSucceeded {
		t.Errorf("backstop wrote %s, want succeeded", done.Status)
	}
}

func TestWorkerPoolFailsOnHandlerError(t *testing.T) {
	pool, q, store := newWorkerFixture(t)
	ctx := context.Background()

	pool.RegisterHandler(models.JobKindCrawl, func(ctx context.Context, job *models.Job) error {
		return errors.New("pipeline exploded")
	})

	job := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := store.Jobs().SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()

	done := waitTerminal(t, store, job.ID)
	if done.Status != models.JobStatusFailed {
		t.Errorf("job = %s, want failed", done.Status)
	}
	if done.ErrorMessage == "" {
		t.Error("failure reason not recorded")
	}
}

func TestWorkerPoolFailsUnregisteredKind(t *testing.T) {
	pool, q, store := newWorkerFixture(t)
	ctx := context.Background()

	job := models.NewJob(models.JobKindSEORank, "land_1", nil)
	if err := store.Jobs().SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()

	done := waitTerminal(t, store, job.ID)
	if done.Status != models.JobStatusFailed {
		t.Errorf("job = %s, want failed without a handler", done.Status)
	}
}
