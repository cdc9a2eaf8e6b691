package models

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Extraction source tags recorded on an expression, in fallback order.
const (
	SourcePrimary   = "primary"
	SourceArchive   = "archive"
	SourceHeuristic = "heuristic"
	SourceMinimal   = "minimal"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// LLM verdict values. Empty string means no verdict recorded.
const (
	VerdictYes = "yes"
	VerdictNo  = "no"
)

// Expression is one crawled URL within a land. Nil pointer fields mean the
// value was never observed: HTTPStatus is nil only before the first fetch
// attempt (0 afterwards for non-HTTP transport failures), ApprovedAt is nil
// until a crawl attempt reaches a terminal outcome.
type Expression struct {
	ID       string `json:"id"`
	LandID   string `json:"land_id" badgerhold:"index"`
	DomainID string `json:"domain_id" badgerhold:"index"`
	URL      string `json:"url"`
	Depth    int    `json:"depth"`

	HTTPStatus   *int   `json:"http_status"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Language     string `json:"language"`
	CanonicalURL string `json:"canonical_url"`
	RawContent   string `json:"raw_content"`
	Readable     string `json:"readable"`
	WordCount    int    `json:"word_count"`

	Relevance           int     `json:"relevance"`
	QualityScore        float64 `json:"quality_score"`
	SentimentScore      float64 `json:"sentiment_score"`
	SentimentLabel      string  `json:"sentiment_label"`
	SentimentConfidence float64 `json:"sentiment_confidence"`

	ValidLLM   string          `json:"valid_llm"`
	ValidModel string          `json:"valid_model"`
	SEORank    json.RawMessage `json:"seo_rank,omitempty"`

	ContentHash string `json:"content_hash"`
	Source      string `json:"source"`

	CreatedAt  time.Time  `json:"created_at"`
	CrawledAt  *time.Time `json:"crawled_at"`
	ReadableAt *time.Time `json:"readable_at"`
	ApprovedAt *time.Time `json:"approved_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ExpressionID derives the storage key from the land and the normalized URL.
// (land_id, url) is unique, so rediscoveries collide on insert instead of
// duplicating the expression.
func ExpressionID(landID, url string) string {
	sum := sha256.Sum256([]byte(landID + "\n" + url))
	return "expr_" + hex.EncodeToString(sum[:16])
}

// NewExpression creates an unattempted expression at the given depth.
func NewExpression(landID, domainID, url string, depth int) *Expression {
	now := time.Now().UTC()
	return &Expression{
		ID:        ExpressionID(landID, url),
		LandID:    landID,
		DomainID:  domainID,
		URL:       url,
		Depth:     depth,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCandidate reports whether the expression is eligible for crawling under
// the given depth limit.
func (e *Expression) IsCandidate(depthLimit int) bool {
	return e.ApprovedAt == nil && e.Depth <= depthLimit
}

// HashContent computes the content hash over the readable body.
func HashContent(readable string) string {
	sum := sha256.Sum256([]byte(readable))
	return hex.EncodeToString(sum[:])
}

// Link types on an edge.
const (
	LinkTypeContent = "content"
	LinkTypeNav     = "nav"
	LinkTypeMedia   = "media"
)

// ExpressionLink is a directed edge between two expressions of the same
// land. (source_id, target_id) is unique.
type ExpressionLink struct {
	ID         string    `json:"id"`
	LandID     string    `json:"land_id" badgerhold:"index"`
	SourceID   string    `json:"source_id" badgerhold:"index"`
	TargetID   string    `json:"target_id" badgerhold:"index"`
	AnchorText string    `json:"anchor_text"`
	LinkType   string    `json:"link_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkID derives the storage key for an edge from its endpoints.
func LinkID(sourceID, targetID string) string {
	sum := sha1.Sum([]byte(sourceID + ">" + targetID))
	return "link_" + hex.EncodeToString(sum[:])
}

// NewExpressionLink creates the edge source → target.
func NewExpressionLink(landID, sourceID, targetID, anchorText, linkType string) *ExpressionLink {
	if linkType == "" {
		linkType = LinkTypeContent
	}
	return &ExpressionLink{
		ID:         LinkID(sourceID, targetID),
		LandID:     landID,
		SourceID:   sourceID,
		TargetID:   targetID,
		AnchorText: anchorText,
		LinkType:   linkType,
		CreatedAt:  time.Now().UTC(),
	}
}

// Paragraph is one stable segment of an expression's readable text, keyed so
// the external embeddings subsystem can reference it across rebuilds.
type Paragraph struct {
	ID           string    `json:"id"`
	ExpressionID string    `json:"expression_id" badgerhold:"index"`
	LandID       string    `json:"land_id" badgerhold:"index"`
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParagraphID derives the stable paragraph id. Identical readable text
// yields identical ids run over run.
func ParagraphID(expressionID string, index int, text string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%s", expressionID, index, text)))
	return "para_" + hex.EncodeToString(sum[:])
}
