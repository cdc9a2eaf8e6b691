package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ExpressionStorage implements the ExpressionStorage interface for Badger
type ExpressionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExpressionStorage creates a new ExpressionStorage instance
func NewExpressionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExpressionStorage {
	return &ExpressionStorage{
		db:     db,
		logger: logger,
	}
}

// InsertExpression adds a new expression keyed by (land_id, url). When the
// key already exists the stored row is returned unchanged with ok=false,
// which is the read-then-link path for concurrent rediscoveries.
func (s *ExpressionStorage) InsertExpression(ctx context.Context, expr *models.Expression) (*models.Expression, bool, error) {
	if expr.ID == "" {
		return nil, false, fmt.Errorf("expression ID is required")
	}
	err := s.db.Store().Insert(expr.ID, expr)
	if err == nil {
		return expr, true, nil
	}
	if err != badgerhold.ErrKeyExists {
		return nil, false, fmt.Errorf("failed to insert expression: %w", err)
	}

	var existing models.Expression
	if err := s.db.Store().Get(expr.ID, &existing); err != nil {
		return nil, false, fmt.Errorf("failed to read existing expression: %w", err)
	}
	return &existing, false, nil
}

func (s *ExpressionStorage) SaveExpression(ctx context.Context, expr *models.Expression) error {
	if expr.ID == "" {
		return fmt.Errorf("expression ID is required")
	}
	if err := s.db.Store().Upsert(expr.ID, expr); err != nil {
		return fmt.Errorf("failed to save expression: %w", err)
	}
	return nil
}

func (s *ExpressionStorage) GetExpression(ctx context.Context, exprID string) (*models.Expression, error) {
	var expr models.Expression
	if err := s.db.Store().Get(exprID, &expr); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("expression not found: %s", exprID)
		}
		return nil, fmt.Errorf("failed to get expression: %w", err)
	}
	return &expr, nil
}

func (s *ExpressionStorage) GetExpressionByURL(ctx context.Context, landID, url string) (*models.Expression, error) {
	return s.GetExpression(ctx, models.ExpressionID(landID, url))
}

func (s *ExpressionStorage) GetExpressionsByLand(ctx context.Context, landID string) ([]*models.Expression, error) {
	var exprs []models.Expression
	if err := s.db.Store().Find(&exprs, badgerhold.Where("LandID").Eq(landID)); err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	result := make([]*models.Expression, len(exprs))
	for i := range exprs {
		result[i] = &exprs[i]
	}
	return result, nil
}

// DeleteExpression removes the expression and cascades to its media,
// paragraphs and both link directions.
func (s *ExpressionStorage) DeleteExpression(ctx context.Context, exprID string) error {
	store := s.db.Store()

	if err := store.DeleteMatching(&models.Paragraph{}, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete expression paragraphs: %w", err)
	}
	if err := store.DeleteMatching(&models.Media{}, badgerhold.Where("ExpressionID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete expression media: %w", err)
	}
	if err := store.DeleteMatching(&models.ExpressionLink{}, badgerhold.Where("SourceID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete outgoing links: %w", err)
	}
	if err := store.DeleteMatching(&models.ExpressionLink{}, badgerhold.Where("TargetID").Eq(exprID)); err != nil {
		return fmt.Errorf("failed to delete incoming links: %w", err)
	}
	if err := store.Delete(exprID, &models.Expression{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete expression: %w", err)
	}
	return nil
}

// SelectCandidates returns crawl candidates under the depth limit, ordered
// depth ascending then insertion time ascending, so waves drain in discovery
// order. Without a status filter only unapproved expressions qualify; with
// one, terminal expressions carrying that status are re-selected so a
// follow-up job can re-process them.
func (s *ExpressionStorage) SelectCandidates(ctx context.Context, landID string, filter interfaces.CandidateFilter) ([]*models.Expression, error) {
	query := badgerhold.Where("LandID").Eq(landID).
		And("Depth").Le(filter.DepthLimit)
	if filter.HTTPStatus == nil {
		query = query.And("ApprovedAt").IsNil()
	}

	var exprs []models.Expression
	if err := s.db.Store().Find(&exprs, query); err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}

	filtered := exprs[:0]
	for i := range exprs {
		if filter.HTTPStatus != nil {
			if exprs[i].HTTPStatus == nil || *exprs[i].HTTPStatus != *filter.HTTPStatus {
				continue
			}
		}
		filtered = append(filtered, exprs[i])
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Depth != filtered[j].Depth {
			return filtered[i].Depth < filtered[j].Depth
		}
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}

	result := make([]*models.Expression, len(filtered))
	for i := range filtered {
		result[i] = &filtered[i]
	}
	return result, nil
}

// SelectForReadable returns approved 200s whose readable body is empty.
func (s *ExpressionStorage) SelectForReadable(ctx context.Context, landID string, limit int) ([]*models.Expression, error) {
	query := badgerhold.Where("LandID").Eq(landID).And("Readable").Eq("")

	var exprs []models.Expression
	if err := s.db.Store().Find(&exprs, query); err != nil {
		return nil, fmt.Errorf("failed to select readable candidates: %w", err)
	}

	result := make([]*models.Expression, 0, len(exprs))
	for i := range exprs {
		if exprs[i].ApprovedAt == nil {
			continue
		}
		if exprs[i].HTTPStatus == nil || *exprs[i].HTTPStatus != 200 {
			continue
		}
		result = append(result, &exprs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// SelectForLLM returns expressions without a verdict at or above the
// relevance floor.
func (s *ExpressionStorage) SelectForLLM(ctx context.Context, landID string, minRelevance, limit int) ([]*models.Expression, error) {
	query := badgerhold.Where("LandID").Eq(landID).
		And("ValidLLM").Eq("").
		And("Relevance").Ge(minRelevance)

	var exprs []models.Expression
	if err := s.db.Store().Find(&exprs, query); err != nil {
		return nil, fmt.Errorf("failed to select llm candidates: %w", err)
	}

	sort.SliceStable(exprs, func(i, j int) bool {
		return exprs[i].Relevance > exprs[j].Relevance
	})

	if limit > 0 && len(exprs) > limit {
		exprs = exprs[:limit]
	}
	result := make([]*models.Expression, len(exprs))
	for i := range exprs {
		result[i] = &exprs[i]
	}
	return result, nil
}

func (s *ExpressionStorage) CountByContentHash(ctx context.Context, landID, contentHash string) (int, error) {
	if contentHash == "" {
		return 0, nil
	}
	count, err := s.db.Store().Count(&models.Expression{},
		badgerhold.Where("LandID").Eq(landID).And("ContentHash").Eq(contentHash))
	if err != nil {
		return 0, fmt.Errorf("failed to count by content hash: %w", err)
	}
	return int(count), nil
}

func (s *ExpressionStorage) CountByLand(ctx context.Context, landID string) (int, error) {
	count, err := s.db.Store().Count(&models.Expression{}, badgerhold.Where("LandID").Eq(landID))
	if err != nil {
		return 0, fmt.Errorf("failed to count expressions: %w", err)
	}
	return int(count), nil
}
