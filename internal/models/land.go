package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Land is a research project: seed URLs plus topical keywords scoping a
// corpus of domains, expressions and the lemma dictionary built from the
// keywords.
type Land struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       string    `json:"owner" badgerhold:"index"`
	Languages   []string  `json:"languages"`
	SeedURLs    []string  `json:"seed_urls"`
	Keywords    []string  `json:"keywords"`
	CrawlStatus string    `json:"crawl_status"`

	// DictionaryFingerprint is the keyword fingerprint the lemma dictionary
	// was last built from. Consolidation rebuilds the dictionary only when
	// the current fingerprint differs.
	DictionaryFingerprint string `json:"dictionary_fingerprint"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLand creates a land with a generated id.
func NewLand(name, description, owner string, languages []string) *Land {
	now := time.Now().UTC()
	return &Land{
		ID:          "land_" + uuid.New().String(),
		Name:        name,
		Description: description,
		Owner:       owner,
		Languages:   languages,
		CrawlStatus: "idle",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// KeywordFingerprint hashes the keyword list independent of order and case,
// identifying the dictionary generation the land's scores belong to.
func (l *Land) KeywordFingerprint() string {
	keywords := make([]string, len(l.Keywords))
	for i, k := range l.Keywords {
		keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	sort.Strings(keywords)

	h := sha256.New()
	for _, k := range keywords {
		h.Write([]byte(k))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PrimaryLanguage returns the first configured language, defaulting to
// english when the land declares none.
func (l *Land) PrimaryLanguage() string {
	if len(l.Languages) > 0 {
		return l.Languages[0]
	}
	return "en"
}

// Touch refreshes the modification timestamp.
func (l *Land) Touch() {
	l.UpdatedAt = time.Now().UTC()
}

// Domain is a unique registrable host within a land with aggregate metadata
// filled in by the domain-crawl pipeline.
type Domain struct {
	ID          string     `json:"id"`
	LandID      string     `json:"land_id" badgerhold:"index"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	HTTPStatus  *int       `json:"http_status"`
	FetchedAt   *time.Time `json:"fetched_at"`

	ExpressionCount int `json:"expression_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DomainID derives the storage key for a domain. (land_id, name) is unique,
// so the key is deterministic and a second insert collides instead of
// duplicating.
func DomainID(landID, name string) string {
	sum := sha256.Sum256([]byte(landID + "\n" + strings.ToLower(name)))
	return "domain_" + hex.EncodeToString(sum[:16])
}

// NewDomain creates the domain row for a host discovered in a land.
func NewDomain(landID, name string) *Domain {
	now := time.Now().UTC()
	return &Domain{
		ID:        DomainID(landID, name),
		LandID:    landID,
		Name:      strings.ToLower(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
