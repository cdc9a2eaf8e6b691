package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManagerWithDB(logger, db)
}

func TestClaimJobTransition(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	job := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := jobs.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	claimed, ok, err := jobs.ClaimJob(ctx, job.ID, "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if !ok {
		t.Fatal("pending job not claimed")
	}
	if claimed.Status != models.JobStatusRunning || claimed.WorkerID != "worker-1" {
		t.Errorf("claimed job = %s/%s", claimed.Status, claimed.WorkerID)
	}
	if claimed.StartedAt == nil {
		t.Error("claim must stamp started_at")
	}

	// Second claim loses.
	_, ok, err = jobs.ClaimJob(ctx, job.ID, "worker-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("already running job claimed again")
	}
}

func TestClaimCancelRequestedJob(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	job := models.NewJob(models.JobKindMedia, "land_1", nil)
	job.CancelRequested = true
	if err := jobs.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	claimed, ok, err := jobs.ClaimJob(ctx, job.ID, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("cancel-requested job must not start")
	}
	if claimed == nil || claimed.Status != models.JobStatusCancelled {
		t.Errorf("job should finish cancelled, got %+v", claimed)
	}
}

func TestRequestCancelPendingGoesTerminal(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	job := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := jobs.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := jobs.RequestCancel(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	stored, err := jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.JobStatusCancelled {
		t.Errorf("pending job after cancel = %s, want cancelled", stored.Status)
	}
}

func TestRequestCancelRunningSetsFlag(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	job := models.NewJob(models.JobKindCrawl, "land_1", nil)
	if err := jobs.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if _, _, err := jobs.ClaimJob(ctx, job.ID, "worker-1"); err != nil {
		t.Fatal(err)
	}
	if err := jobs.RequestCancel(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	stored, err := jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.JobStatusRunning {
		t.Errorf("running job flipped to %s, want running until checkpoint", stored.Status)
	}
	if !stored.CancelRequested {
		t.Error("cancel flag not set")
	}
}

func TestResetStale(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	stale := models.NewJob(models.JobKindCrawl, "land_1", nil)
	stale.MarkRunning("worker-gone")
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	if err := jobs.SaveJob(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh := models.NewJob(models.JobKindCrawl, "land_1", nil)
	fresh.MarkRunning("worker-alive")
	if err := jobs.SaveJob(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	cancelled := models.NewJob(models.JobKindMedia, "land_1", nil)
	cancelled.MarkRunning("worker-gone")
	cancelled.CancelRequested = true
	cancelled.UpdatedAt = time.Now().Add(-time.Hour)
	if err := jobs.SaveJob(ctx, cancelled); err != nil {
		t.Fatal(err)
	}

	reset, err := jobs.ResetStale(ctx, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(reset) != 1 || reset[0] != stale.ID {
		t.Errorf("reset = %v, want [%s]", reset, stale.ID)
	}

	recovered, _ := jobs.GetJob(ctx, stale.ID)
	if recovered.Status != models.JobStatusPending || recovered.WorkerID != "" {
		t.Errorf("stale job = %s/%q, want pending with no worker", recovered.Status, recovered.WorkerID)
	}

	untouched, _ := jobs.GetJob(ctx, fresh.ID)
	if untouched.Status != models.JobStatusRunning {
		t.Errorf("fresh job reset to %s", untouched.Status)
	}

	finished, _ := jobs.GetJob(ctx, cancelled.ID)
	if finished.Status != models.JobStatusCancelled {
		t.Errorf("stale cancel-requested job = %s, want cancelled", finished.Status)
	}
}

func TestListJobsFilters(t *testing.T) {
	store := newTestManager(t)
	jobs := store.Jobs()
	ctx := context.Background()

	a := models.NewJob(models.JobKindCrawl, "land_1", nil)
	b := models.NewJob(models.JobKindCrawl, "land_2", nil)
	c := models.NewJob(models.JobKindMedia, "land_1", nil)
	c.MarkRunning("w")
	for _, job := range []*models.Job{a, b, c} {
		if err := jobs.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	byLand, err := jobs.ListJobs(ctx, "land_1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byLand) != 2 {
		t.Errorf("land_1 jobs = %d, want 2", len(byLand))
	}

	running, err := jobs.ListJobs(ctx, "land_1", models.JobStatusRunning, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 1 || running[0].ID != c.ID {
		t.Errorf("running filter returned %d jobs", len(running))
	}
}
