package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// EventType represents different event types in the system
type EventType string

const (
	EventJobProgress   EventType = "job_progress"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventJobCancelled  EventType = "job_cancelled"
	EventExpressionSaved EventType = "expression_saved"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers without blocking the publisher
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}

// ProgressPublisher fans out per-job progress: durable persistence on the
// job row, event-bus publish for live subscribers, latest-snapshot retention
// for late ones.
type ProgressPublisher interface {
	// Publish records a progress snapshot. Throttled publishes may be
	// dropped from the live feed but the terminal snapshot never is.
	Publish(ctx context.Context, event models.ProgressEvent)

	// Latest returns the newest snapshot for a job.
	Latest(jobID string) (models.ProgressEvent, bool)

	// Snapshot returns the newest snapshot of every tracked job.
	Snapshot() []models.ProgressEvent
}
