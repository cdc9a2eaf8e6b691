package models

import "time"

// ProgressEvent is one snapshot of a job's advancement. Seq is monotonic per
// job; late subscribers receive only the newest snapshot.
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	LandID     string    `json:"land_id"`
	Kind       JobKind   `json:"kind"`
	Status     JobStatus `json:"status"`
	Seq        uint64    `json:"seq"`
	Depth      int       `json:"depth"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percent    float64   `json:"percent"`
	Counters   Counters  `json:"counters"`
	CurrentURL string    `json:"current_url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
