package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrSnapshotNotFound signals the archive holds no snapshot for the URL.
var ErrSnapshotNotFound = errors.New("no archived snapshot available")

// Snapshot is an archived copy of a page.
type Snapshot struct {
	SnapshotURL string
	FetchedAt   time.Time
	Body        []byte
}

// ArchiveAdapter retrieves archived page snapshots for the extraction
// fallback chain.
type ArchiveAdapter interface {
	GetSnapshot(ctx context.Context, url string) (*Snapshot, error)
}

// SearchQuery describes one search-results expansion request.
type SearchQuery struct {
	Query    string
	Engine   string
	Language string
	DateFrom string
	DateTo   string
	Window   int
}

// SearchAdapter expands a query into result URLs for seed-from-search.
type SearchAdapter interface {
	Search(ctx context.Context, query SearchQuery) ([]string, error)
}

// Verdict is the LLM's topic-fit answer for one expression.
type Verdict struct {
	Verdict string // "yes" or "no"
	Model   string
	Raw     string
}

// SentimentOpinion is the LLM's sentiment estimate used for blending.
type SentimentOpinion struct {
	Score      float64
	Confidence float64
	Model      string
}

// LLMAdapter is the provider-neutral LLM contract.
type LLMAdapter interface {
	Validate(ctx context.Context, prompt string) (*Verdict, error)
	BlendSentiment(ctx context.Context, text, language string) (*SentimentOpinion, error)
	ModelName() string
}

// SEOAdapter fetches the opaque SEO metric blob for a URL.
type SEOAdapter interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}
