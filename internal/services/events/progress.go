package events

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"golang.org/x/time/rate"
)

// progressTrack is the per-job publish state.
type progressTrack struct {
	limiter *rate.Limiter
	seq     uint64
	latest  models.ProgressEvent
}

// ProgressService throttles and fans out job progress. Non-terminal
// snapshots pass through at most once per interval; drops only skip the live
// feed because the newest snapshot is always retained and the job row is
// always persisted, which doubles as the worker heartbeat. Terminal
// snapshots bypass the throttle.
type ProgressService struct {
	jobs     interfaces.JobStorage
	bus      interfaces.EventService
	interval time.Duration
	logger   arbor.ILogger

	mu     sync.Mutex
	tracks map[string]*progressTrack
}

// NewProgressService creates the publisher.
func NewProgressService(jobs interfaces.JobStorage, bus interfaces.EventService, interval time.Duration, logger arbor.ILogger) *ProgressService {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &ProgressService{
		jobs:     jobs,
		bus:      bus,
		interval: interval,
		logger:   logger,
		tracks:   make(map[string]*progressTrack),
	}
}

// Publish records one progress snapshot.
func (p *ProgressService) Publish(ctx context.Context, event models.ProgressEvent) {
	terminal := event.Status == models.JobStatusSucceeded ||
		event.Status == models.JobStatusFailed ||
		event.Status == models.JobStatusCancelled

	p.mu.Lock()
	track, ok := p.tracks[event.JobID]
	if !ok {
		track = &progressTrack{limiter: rate.NewLimiter(rate.Every(p.interval), 1)}
		p.tracks[event.JobID] = track
	}
	track.seq++
	event.Seq = track.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	track.latest = event
	allowed := terminal || track.limiter.Allow()
	p.mu.Unlock()

	if !allowed {
		return
	}

	if !terminal {
		// Terminal job rows are saved by the runner before the terminal
		// snapshot arrives; persisting here would resurrect them.
		p.persist(ctx, event)
	}

	if err := p.bus.Publish(ctx, interfaces.Event{Type: eventTypeFor(event.Status), Payload: event}); err != nil {
		p.logger.Warn().
			Err(err).
			Str("job_id", event.JobID).
			Msg("Progress publish failed")
	}
}

// Latest returns the newest snapshot for a job.
func (p *ProgressService) Latest(jobID string) (models.ProgressEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	track, ok := p.tracks[jobID]
	if !ok {
		return models.ProgressEvent{}, false
	}
	return track.latest, true
}

// Snapshot returns the newest snapshot of every tracked job.
func (p *ProgressService) Snapshot() []models.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshots := make([]models.ProgressEvent, 0, len(p.tracks))
	for _, track := range p.tracks {
		snapshots = append(snapshots, track.latest)
	}
	return snapshots
}

// persist writes the snapshot onto the job row. UpdatedAt refreshes with the
// save, so this is also the heartbeat the stale sweep watches.
func (p *ProgressService) persist(ctx context.Context, event models.ProgressEvent) {
	job, err := p.jobs.GetJob(ctx, event.JobID)
	if err != nil || job == nil || job.IsTerminal() {
		return
	}
	job.Progress = event.Percent
	job.Counters = event.Counters
	job.Seq = event.Seq
	job.Touch()
	if err := p.jobs.SaveJob(ctx, job); err != nil {
		p.logger.Warn().
			Err(err).
			Str("job_id", event.JobID).
			Msg("Progress persist failed")
	}
}

func eventTypeFor(status models.JobStatus) interfaces.EventType {
	switch status {
	case models.JobStatusSucceeded:
		return interfaces.EventJobCompleted
	case models.JobStatusFailed:
		return interfaces.EventJobFailed
	case models.JobStatusCancelled:
		return interfaces.EventJobCancelled
	default:
		return interfaces.EventJobProgress
	}
}
