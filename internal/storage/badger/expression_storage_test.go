package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

func insertExpr(t *testing.T, store interfaces.StorageManager, landID, url string, depth int) *models.Expression {
	t.Helper()
	expr, created, err := store.Expressions().InsertExpression(context.Background(),
		models.NewExpression(landID, models.DomainID(landID, "example.com"), url, depth))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatalf("expression %s already present", url)
	}
	return expr
}

func approve(t *testing.T, store interfaces.StorageManager, expr *models.Expression, status int) {
	t.Helper()
	now := time.Now().UTC()
	expr.HTTPStatus = &status
	expr.ApprovedAt = &now
	expr.UpdatedAt = now
	if err := store.Expressions().SaveExpression(context.Background(), expr); err != nil {
		t.Fatal(err)
	}
}

func TestInsertExpressionCollidesOnSameURL(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	first := insertExpr(t, store, "land_1", "https://example.com/page", 0)

	again, created, err := store.Expressions().InsertExpression(ctx,
		models.NewExpression("land_1", first.DomainID, "https://example.com/page", 3))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("rediscovery created a duplicate")
	}
	if again.Depth != 0 {
		t.Errorf("rediscovery depth = %d, stored depth must win", again.Depth)
	}

	// Same URL in another land is a distinct expression.
	_, created, err = store.Expressions().InsertExpression(ctx,
		models.NewExpression("land_2", models.DomainID("land_2", "example.com"), "https://example.com/page", 0))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("same URL in a different land should insert")
	}
}

func TestSelectCandidatesDepthAndApproval(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	shallow := insertExpr(t, store, "land_1", "https://example.com/a", 0)
	deep := insertExpr(t, store, "land_1", "https://example.com/b", 3)
	done := insertExpr(t, store, "land_1", "https://example.com/c", 1)
	approve(t, store, done, 200)
	insertExpr(t, store, "land_2", "https://example.com/other", 0)

	candidates, err := store.Expressions().SelectCandidates(ctx, "land_1",
		interfaces.CandidateFilter{DepthLimit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].ID != shallow.ID {
		t.Fatalf("candidates = %d, want only the shallow unapproved one", len(candidates))
	}
	_ = deep
}

func TestSelectCandidatesOrderedByDepthThenAge(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	older := models.NewExpression("land_1", "d", "https://example.com/older", 1)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := models.NewExpression("land_1", "d", "https://example.com/newer", 1)
	root := models.NewExpression("land_1", "d", "https://example.com/root", 0)
	for _, expr := range []*models.Expression{newer, older, root} {
		if _, _, err := store.Expressions().InsertExpression(ctx, expr); err != nil {
			t.Fatal(err)
		}
	}

	candidates, err := store.Expressions().SelectCandidates(ctx, "land_1",
		interfaces.CandidateFilter{DepthLimit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(candidates))
	}
	if candidates[0].ID != root.ID || candidates[1].ID != older.ID || candidates[2].ID != newer.ID {
		t.Errorf("order = %s, %s, %s", candidates[0].URL, candidates[1].URL, candidates[2].URL)
	}
}

func TestSelectCandidatesHTTPStatusReselectsTerminal(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	notFound := insertExpr(t, store, "land_1", "https://example.com/404", 0)
	approve(t, store, notFound, 404)
	ok := insertExpr(t, store, "land_1", "https://example.com/200", 0)
	approve(t, store, ok, 200)
	insertExpr(t, store, "land_1", "https://example.com/fresh", 0)

	status := 404
	candidates, err := store.Expressions().SelectCandidates(ctx, "land_1",
		interfaces.CandidateFilter{DepthLimit: 2, HTTPStatus: &status})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].ID != notFound.ID {
		t.Fatalf("status filter selected %d candidates", len(candidates))
	}
}

func TestSelectCandidatesLimit(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	insertExpr(t, store, "land_1", "https://example.com/1", 0)
	insertExpr(t, store, "land_1", "https://example.com/2", 0)
	insertExpr(t, store, "land_1", "https://example.com/3", 0)

	candidates, err := store.Expressions().SelectCandidates(ctx, "land_1",
		interfaces.CandidateFilter{DepthLimit: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Errorf("limit ignored: %d candidates", len(candidates))
	}
}

func TestSelectForReadable(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	eligible := insertExpr(t, store, "land_1", "https://example.com/empty", 0)
	approve(t, store, eligible, 200)

	filled := insertExpr(t, store, "land_1", "https://example.com/filled", 0)
	filled.Readable = "# Already extracted"
	approve(t, store, filled, 200)

	broken := insertExpr(t, store, "land_1", "https://example.com/broken", 0)
	approve(t, store, broken, 404)

	insertExpr(t, store, "land_1", "https://example.com/uncrawled", 0)

	got, err := store.Expressions().SelectForReadable(ctx, "land_1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != eligible.ID {
		t.Fatalf("SelectForReadable returned %d rows", len(got))
	}
}

func TestSelectForLLMRelevanceFloor(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	high := insertExpr(t, store, "land_1", "https://example.com/high", 0)
	high.Relevance = 9
	approve(t, store, high, 200)

	low := insertExpr(t, store, "land_1", "https://example.com/low", 0)
	low.Relevance = 1
	approve(t, store, low, 200)

	judged := insertExpr(t, store, "land_1", "https://example.com/judged", 0)
	judged.Relevance = 9
	judged.ValidLLM = models.VerdictYes
	approve(t, store, judged, 200)

	got, err := store.Expressions().SelectForLLM(ctx, "land_1", 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != high.ID {
		t.Fatalf("SelectForLLM returned %d rows", len(got))
	}
}

func TestCountByContentHash(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	hash := models.HashContent("identical body")
	a := insertExpr(t, store, "land_1", "https://example.com/a", 0)
	a.ContentHash = hash
	approve(t, store, a, 200)
	b := insertExpr(t, store, "land_1", "https://example.com/b", 0)
	b.ContentHash = hash
	approve(t, store, b, 200)

	count, err := store.Expressions().CountByContentHash(ctx, "land_1", hash)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	count, err = store.Expressions().CountByContentHash(ctx, "land_1", "")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("empty hash count = %d, want 0", count)
	}
}

func TestDeleteExpressionCascades(t *testing.T) {
	store := newTestManager(t)
	ctx := context.Background()

	parent := insertExpr(t, store, "land_1", "https://example.com/parent", 0)
	child := insertExpr(t, store, "land_1", "https://example.com/child", 1)

	if err := store.Links().UpsertLink(ctx,
		models.NewExpressionLink("land_1", parent.ID, child.ID, "child", models.LinkTypeContent)); err != nil {
		t.Fatal(err)
	}
	if err := store.Media().UpsertMedia(ctx,
		models.NewMedia("land_1", child.ID, "https://example.com/img.png", models.MediaKindImage)); err != nil {
		t.Fatal(err)
	}

	if err := store.Expressions().DeleteExpression(ctx, child.ID); err != nil {
		t.Fatal(err)
	}

	links, err := store.Links().GetLinksByLand(ctx, "land_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("links not cascaded: %d remain", len(links))
	}
	media, err := store.Media().GetMediaByExpression(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 0 {
		t.Errorf("media not cascaded: %d remain", len(media))
	}
}
