package persister

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/storage/badger"
)

func newTestStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return badger.NewManagerWithDB(logger, db)
}

func seedExpression(t *testing.T, store interfaces.StorageManager, landID, url string) *models.Expression {
	t.Helper()
	ctx := context.Background()
	domain, err := store.Domains().UpsertDomain(ctx, models.NewDomain(landID, "example.com"))
	if err != nil {
		t.Fatal(err)
	}
	expr, _, err := store.Expressions().InsertExpression(ctx, models.NewExpression(landID, domain.ID, url, 0))
	if err != nil {
		t.Fatal(err)
	}
	return expr
}

func TestRecordCrawlOutcomeSetsApproval(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	expr := seedExpression(t, store, "land_1", "https://example.com/page")
	if expr.ApprovedAt != nil {
		t.Fatal("fresh expression must not be approved")
	}

	crawledAt := time.Now().UTC()
	updated, err := svc.RecordCrawlOutcome(ctx, expr.ID, CrawlPatch{
		HTTPStatus:  200,
		Title:       String("Energy report"),
		Readable:    String("# Energy report\n\nBody."),
		WordCount:   Int(2),
		Relevance:   Int(5),
		ContentHash: String(models.HashContent("body")),
		CrawledAt:   Time(crawledAt),
	})
	if err != nil {
		t.Fatalf("RecordCrawlOutcome: %v", err)
	}

	if updated.ApprovedAt == nil {
		t.Fatal("terminal outcome must set approved_at")
	}
	if updated.HTTPStatus == nil || *updated.HTTPStatus != 200 {
		t.Error("http status not recorded")
	}
	if updated.Title != "Energy report" || updated.Relevance != 5 {
		t.Error("patch fields not applied")
	}

	stored, err := store.Expressions().GetExpression(ctx, expr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ApprovedAt == nil {
		t.Error("approval not persisted")
	}
}

func TestRecordCrawlOutcomeFailureAlsoTerminal(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	expr := seedExpression(t, store, "land_1", "https://example.com/missing")

	// A permanent 404 is a terminal attempt too: approved with the status,
	// no content fields.
	updated, err := svc.RecordCrawlOutcome(ctx, expr.ID, CrawlPatch{
		HTTPStatus: 404,
		CrawledAt:  Time(time.Now().UTC()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ApprovedAt == nil {
		t.Error("permanent failure must still be terminal")
	}
	if updated.Title != "" || updated.Readable != "" {
		t.Error("failure outcome must not invent content")
	}
}

func TestUpdateScoresNeverTouchesApproval(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	expr := seedExpression(t, store, "land_1", "https://example.com/page")
	recorded, err := svc.RecordCrawlOutcome(ctx, expr.ID, CrawlPatch{HTTPStatus: 200})
	if err != nil {
		t.Fatal(err)
	}
	approvedAt := *recorded.ApprovedAt

	blob := json.RawMessage(`{"da":42}`)
	updated, err := svc.UpdateScores(ctx, expr.ID, Int(9), String(models.VerdictYes), String("test-model"), blob)
	if err != nil {
		t.Fatalf("UpdateScores: %v", err)
	}

	if updated.Relevance != 9 || updated.ValidLLM != models.VerdictYes || updated.ValidModel != "test-model" {
		t.Error("score fields not updated")
	}
	if string(updated.SEORank) != `{"da":42}` {
		t.Errorf("seo blob = %s", updated.SEORank)
	}
	if updated.ApprovedAt == nil || !updated.ApprovedAt.Equal(approvedAt) {
		t.Error("UpdateScores must not move approved_at")
	}
}

func TestUpdateScoresNilFieldsLeaveValues(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	expr := seedExpression(t, store, "land_1", "https://example.com/page")
	if _, err := svc.RecordCrawlOutcome(ctx, expr.ID, CrawlPatch{HTTPStatus: 200, Relevance: Int(7)}); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateScores(ctx, expr.ID, nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Relevance != 7 {
		t.Errorf("nil relevance overwrote stored value: %d", updated.Relevance)
	}
}

func TestAttachMediaIdempotent(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, arbor.NewLogger())
	ctx := context.Background()

	expr := seedExpression(t, store, "land_1", "https://example.com/page")
	refs := []MediaRef{
		{URL: "https://example.com/a.jpg", Kind: models.MediaKindImage},
		{URL: "https://example.com/b.mp4", Kind: models.MediaKindVideo},
	}

	if err := svc.AttachMedia(ctx, "land_1", expr.ID, refs); err != nil {
		t.Fatal(err)
	}
	// Rediscovery of the same references must not duplicate.
	if err := svc.AttachMedia(ctx, "land_1", expr.ID, refs); err != nil {
		t.Fatal(err)
	}

	media, err := store.Media().GetMediaByExpression(ctx, expr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 2 {
		t.Errorf("expected 2 media rows, got %d", len(media))
	}
}
