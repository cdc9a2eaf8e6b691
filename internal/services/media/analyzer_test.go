package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/fetcher"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// solidImage fills a rectangle with one color.
func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// splitImage is red on the left half, blue on the right.
func splitImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDominantColorsSolid(t *testing.T) {
	img := solidImage(32, 32, color.RGBA{R: 255, A: 255})

	colors := DominantColors(img, 3)
	if len(colors) == 0 {
		t.Fatal("no colors extracted")
	}
	if colors[0] != "#ff0000" {
		t.Errorf("dominant color = %s, want #ff0000", colors[0])
	}
}

func TestDominantColorsTwoTone(t *testing.T) {
	colors := DominantColors(splitImage(64, 64), 2)
	if len(colors) != 2 {
		t.Fatalf("colors = %v, want two clusters", colors)
	}

	found := map[string]bool{}
	for _, c := range colors {
		found[c] = true
	}
	// Bilinear sampling blurs the seam, so allow near-pure tones.
	var hasRed, hasBlue bool
	for c := range found {
		if c[1] == 'f' || c[1] == 'e' {
			hasRed = true
		}
		if c[5] == 'f' || c[5] == 'e' {
			hasBlue = true
		}
	}
	if !hasRed || !hasBlue {
		t.Errorf("colors = %v, want a red and a blue cluster", colors)
	}
}

func TestDominantColorsDeterministic(t *testing.T) {
	img := splitImage(64, 64)
	first := DominantColors(img, 4)
	second := DominantColors(img, 4)
	if len(first) != len(second) {
		t.Fatalf("runs disagree: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("runs disagree at %d: %v vs %v", i, first, second)
		}
	}
}

func TestPerceptualHashStability(t *testing.T) {
	img := splitImage(64, 64)

	a := PerceptualHash(img)
	b := PerceptualHash(img)
	if a != b {
		t.Errorf("hash unstable: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16 hex chars", len(a))
	}

	// A scaled copy of the same scene hashes close to the original.
	small := splitImage(32, 32)
	if d := HammingDistance(a, PerceptualHash(small)); d < 0 || d > 8 {
		t.Errorf("scaled copy distance = %d", d)
	}
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance("00000000000000ff", "00000000000000ff"); d != 0 {
		t.Errorf("identical hashes distance = %d", d)
	}
	if d := HammingDistance("0000000000000000", "0000000000000003"); d != 2 {
		t.Errorf("two-bit distance = %d", d)
	}
	if d := HammingDistance("not-hex", "0"); d != -1 {
		t.Errorf("malformed hash distance = %d, want -1", d)
	}
}

func newMediaTestStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return badger.NewManagerWithDB(logger, db)
}

func newMediaFetcher() *fetcher.Service {
	return fetcher.NewService(common.FetcherConfig{
		UserAgent:            "indago-test/1.0",
		MaxConcurrentGlobal:  2,
		MaxConcurrentPerHost: 2,
		Timeout:              5 * time.Second,
		MaxBytes:             1 << 20,
		FollowRedirects:      true,
		MaxRedirects:         3,
		RetryAttempts:        1,
		BackoffBase:          time.Millisecond,
		BackoffMax:           time.Millisecond,
	}, arbor.NewLogger())
}

func TestAnalyzeImage(t *testing.T) {
	payload := encodePNG(t, solidImage(40, 30, color.RGBA{G: 255, A: 255}))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	store := newMediaTestStore(t)
	analyzer := NewAnalyzer(common.MediaConfig{MaxBytes: 1 << 20, ColorCount: 3}, newMediaFetcher(), store, arbor.NewLogger())

	item := models.NewMedia("land_1", "expr_1", server.URL+"/img.png", models.MediaKindImage)
	if err := analyzer.Analyze(context.Background(), item); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !item.IsProcessed || item.AnalyzedAt == nil {
		t.Error("item not marked processed")
	}
	if item.Width == nil || *item.Width != 40 || item.Height == nil || *item.Height != 30 {
		t.Errorf("dimensions = %v x %v", item.Width, item.Height)
	}
	if item.ByteSize == nil || *item.ByteSize != int64(len(payload)) {
		t.Errorf("byte size = %v", item.ByteSize)
	}
	if len(item.DominantColors) == 0 || item.DominantColors[0] != "#00ff00" {
		t.Errorf("dominant colors = %v", item.DominantColors)
	}
	if item.PerceptualHash == "" {
		t.Error("perceptual hash missing")
	}

	stored, err := store.Media().GetMediaByExpression(context.Background(), "expr_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || !stored[0].IsProcessed {
		t.Fatalf("stored rows = %+v", stored)
	}
}

func TestAnalyzeFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := newMediaTestStore(t)
	analyzer := NewAnalyzer(common.MediaConfig{MaxBytes: 1 << 20, ColorCount: 3}, newMediaFetcher(), store, arbor.NewLogger())

	item := models.NewMedia("land_1", "expr_1", server.URL+"/missing.png", models.MediaKindImage)
	if err := analyzer.Analyze(context.Background(), item); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !item.IsProcessed {
		t.Error("failed download must still mark the item processed")
	}
	if item.Width != nil || item.ByteSize != nil {
		t.Errorf("failed download invented metrics: %+v", item)
	}
}

func TestAnalyzeNonImageRecordsSizeOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image payload"))
	}))
	defer server.Close()

	store := newMediaTestStore(t)
	analyzer := NewAnalyzer(common.MediaConfig{MaxBytes: 1 << 20, ColorCount: 3}, newMediaFetcher(), store, arbor.NewLogger())

	item := models.NewMedia("land_1", "expr_1", server.URL+"/clip.mp4", models.MediaKindVideo)
	if err := analyzer.Analyze(context.Background(), item); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if item.ByteSize == nil || *item.ByteSize != int64(len("not an image payload")) {
		t.Errorf("byte size = %v", item.ByteSize)
	}
	if item.Width != nil || item.PerceptualHash != "" {
		t.Error("non-image decoded")
	}
}
