package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/indago/internal/models"
)

// LandStorage - lands and their lifecycle
type LandStorage interface {
	SaveLand(ctx context.Context, land *models.Land) error
	GetLand(ctx context.Context, landID string) (*models.Land, error)
	GetLandByName(ctx context.Context, owner, name string) (*models.Land, error)
	ListLands(ctx context.Context, owner string) ([]*models.Land, error)
	// DeleteLand removes the land and every owned entity, children first.
	DeleteLand(ctx context.Context, landID string) error
}

// DomainStorage - registrable hosts within a land
type DomainStorage interface {
	// UpsertDomain inserts the domain or returns the existing row when the
	// (land_id, name) key is already present.
	UpsertDomain(ctx context.Context, domain *models.Domain) (*models.Domain, error)
	SaveDomain(ctx context.Context, domain *models.Domain) error
	GetDomain(ctx context.Context, domainID string) (*models.Domain, error)
	GetDomainsByLand(ctx context.Context, landID string) ([]*models.Domain, error)
}

// CandidateFilter bounds candidate selection for a pipeline run.
type CandidateFilter struct {
	DepthLimit int
	HTTPStatus *int
	Limit      int
}

// ExpressionStorage - crawled URLs and their derivatives
type ExpressionStorage interface {
	// InsertExpression adds a new expression. Returns the already stored row
	// and false when the (land_id, url) key exists.
	InsertExpression(ctx context.Context, expr *models.Expression) (*models.Expression, bool, error)
	SaveExpression(ctx context.Context, expr *models.Expression) error
	GetExpression(ctx context.Context, exprID string) (*models.Expression, error)
	GetExpressionByURL(ctx context.Context, landID, url string) (*models.Expression, error)
	GetExpressionsByLand(ctx context.Context, landID string) ([]*models.Expression, error)
	DeleteExpression(ctx context.Context, exprID string) error

	// SelectCandidates returns unapproved expressions under the depth limit,
	// ordered depth then insertion time. A non-nil HTTPStatus re-selects
	// terminal expressions carrying that status for re-processing.
	SelectCandidates(ctx context.Context, landID string, filter CandidateFilter) ([]*models.Expression, error)
	// SelectForReadable returns approved 200s whose readable body is empty.
	SelectForReadable(ctx context.Context, landID string, limit int) ([]*models.Expression, error)
	// SelectForLLM returns expressions without a verdict at or above the
	// relevance floor.
	SelectForLLM(ctx context.Context, landID string, minRelevance, limit int) ([]*models.Expression, error)
	// CountByContentHash counts expressions in the land carrying the hash.
	CountByContentHash(ctx context.Context, landID, contentHash string) (int, error)
	CountByLand(ctx context.Context, landID string) (int, error)
}

// LinkStorage - directed edges of the link graph
type LinkStorage interface {
	// UpsertLink inserts the edge, tolerating duplicates.
	UpsertLink(ctx context.Context, link *models.ExpressionLink) error
	GetLinksBySource(ctx context.Context, sourceID string) ([]*models.ExpressionLink, error)
	GetLinksByLand(ctx context.Context, landID string) ([]*models.ExpressionLink, error)
	DeleteLinksByLand(ctx context.Context, landID string) error
	DeleteLinksForExpression(ctx context.Context, exprID string) error
	CountByLand(ctx context.Context, landID string) (int, error)
}

// MediaStorage - media references and analysis results
type MediaStorage interface {
	UpsertMedia(ctx context.Context, media *models.Media) error
	SaveMedia(ctx context.Context, media *models.Media) error
	GetMedia(ctx context.Context, mediaID string) (*models.Media, error)
	GetMediaByExpression(ctx context.Context, exprID string) ([]*models.Media, error)
	// SelectUnprocessed returns media awaiting analysis for a land.
	SelectUnprocessed(ctx context.Context, landID string, limit int) ([]*models.Media, error)
	GetMediaByLand(ctx context.Context, landID string) ([]*models.Media, error)
	DeleteMediaByLand(ctx context.Context, landID string) error
	DeleteMediaForExpression(ctx context.Context, exprID string) error
}

// WordStorage - the persisted lemma dictionary
type WordStorage interface {
	SaveWords(ctx context.Context, words []*models.Word) error
	GetWordsByLand(ctx context.Context, landID string) ([]*models.Word, error)
	DeleteWordsByLand(ctx context.Context, landID string) error
}

// ParagraphStorage - stable readable-text segments
type ParagraphStorage interface {
	ReplaceParagraphs(ctx context.Context, exprID string, paragraphs []*models.Paragraph) error
	GetParagraphsByExpression(ctx context.Context, exprID string) ([]*models.Paragraph, error)
	DeleteParagraphsForExpression(ctx context.Context, exprID string) error
}

// JobStorage - durable job rows and the claim transition
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, landID string, status models.JobStatus, limit int) ([]*models.Job, error)

	// ClaimJob performs the atomic pending → running transition. Returns
	// false when the job was already claimed or is terminal.
	ClaimJob(ctx context.Context, jobID, workerID string) (*models.Job, bool, error)
	// RequestCancel flips the cancel flag on a pending or running job.
	RequestCancel(ctx context.Context, jobID string) error
	// ResetStale requeues running jobs whose heartbeat is older than
	// threshold and returns the ids reset to pending.
	ResetStale(ctx context.Context, threshold time.Duration) ([]string, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	Lands() LandStorage
	Domains() DomainStorage
	Expressions() ExpressionStorage
	Links() LinkStorage
	Media() MediaStorage
	Words() WordStorage
	Paragraphs() ParagraphStorage
	Jobs() JobStorage
	Close() error
}
