package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind selects the pipeline a job runs.
type JobKind string

const (
	JobKindCrawl       JobKind = "crawl"
	JobKindReadable    JobKind = "readable"
	JobKindMedia       JobKind = "media"
	JobKindLLM         JobKind = "llm"
	JobKindConsolidate JobKind = "consolidate"
	JobKindSEORank     JobKind = "seorank"
	JobKindDomainCrawl JobKind = "domain_crawl"
	JobKindHeuristic   JobKind = "heuristic"
	JobKindSearch      JobKind = "search"
)

// JobStatus is the job state machine: pending → running → terminal.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Counters aggregates per-candidate outcomes. Per-candidate failures land in
// Failed without failing the job.
type Counters struct {
	OK                int `json:"ok"`
	Failed            int `json:"failed"`
	Skipped           int `json:"skipped"`
	CapExceeded       int `json:"cap_exceeded"`
	CancelledInflight int `json:"cancelled_inflight"`
	AdapterUnavailable int `json:"adapter_unavailable"`
}

// Total sums every recorded outcome.
func (c Counters) Total() int {
	return c.OK + c.Failed + c.Skipped + c.CapExceeded + c.CancelledInflight + c.AdapterUnavailable
}

// Job is the durable record of one pipeline invocation. UpdatedAt doubles as
// the heartbeat: the runner persists progress at least every publish
// interval, so a running job whose UpdatedAt is older than the stale
// threshold lost its worker.
type Job struct {
	ID     string    `json:"id"`
	Kind   JobKind   `json:"kind" badgerhold:"index"`
	LandID string    `json:"land_id" badgerhold:"index"`
	Status JobStatus `json:"status" badgerhold:"index"`

	Params map[string]interface{} `json:"params"`

	Progress        float64                `json:"progress"`
	Counters        Counters               `json:"counters"`
	Result          map[string]interface{} `json:"result,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	CancelRequested bool                   `json:"cancel_requested"`
	WorkerID        string                 `json:"worker_id,omitempty"`
	Seq             uint64                 `json:"seq"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// NewJob creates a pending job for a land.
func NewJob(kind JobKind, landID string, params map[string]interface{}) *Job {
	if params == nil {
		params = make(map[string]interface{})
	}
	now := time.Now().UTC()
	return &Job{
		ID:        "job_" + uuid.New().String(),
		Kind:      kind,
		LandID:    landID,
		Status:    JobStatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkRunning transitions pending → running for the claiming worker.
func (j *Job) MarkRunning(workerID string) {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.WorkerID = workerID
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkSucceeded transitions running → succeeded.
func (j *Job) MarkSucceeded() {
	now := time.Now().UTC()
	j.Status = JobStatusSucceeded
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed transitions running → failed with a diagnostic message.
func (j *Job) MarkFailed(message string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkCancelled transitions running → cancelled.
func (j *Job) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Touch refreshes the heartbeat without changing anything else.
func (j *Job) Touch() {
	j.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// IsStale reports whether a running job's heartbeat is older than threshold.
func (j *Job) IsStale(threshold time.Duration) bool {
	return j.Status == JobStatusRunning && time.Since(j.UpdatedAt) > threshold
}

// Param accessors. Params decoded from JSON carry numbers as float64, so the
// integer accessor converts.

// GetParamString returns a string parameter or the default.
func (j *Job) GetParamString(key, defaultValue string) string {
	if v, ok := j.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

// GetParamInt returns an integer parameter or the default.
func (j *Job) GetParamInt(key string, defaultValue int) int {
	if v, ok := j.Params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return defaultValue
}

// GetParamBool returns a boolean parameter or the default.
func (j *Job) GetParamBool(key string, defaultValue bool) bool {
	if v, ok := j.Params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// GetParamIntPtr returns an integer parameter as a pointer, nil when absent.
// Used for optional filters such as http_status.
func (j *Job) GetParamIntPtr(key string) *int {
	if v, ok := j.Params[key]; ok {
		switch n := v.(type) {
		case int:
			return &n
		case int64:
			i := int(n)
			return &i
		case float64:
			i := int(n)
			return &i
		}
	}
	return nil
}

// ValidKinds lists every registered job kind.
func ValidKinds() []JobKind {
	return []JobKind{
		JobKindCrawl, JobKindReadable, JobKindMedia, JobKindLLM,
		JobKindConsolidate, JobKindSEORank, JobKindDomainCrawl,
		JobKindHeuristic, JobKindSearch,
	}
}

// ParseJobKind validates a job kind string.
func ParseJobKind(s string) (JobKind, error) {
	for _, kind := range ValidKinds() {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown job kind: %s", s)
}
