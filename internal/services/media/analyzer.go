package media

import (
	"bytes"
	"context"
	"image"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/fetcher"
)

// Analyzer downloads media items and extracts dimensions, dominant colors
// and a perceptual hash. Only images are decoded; other kinds just record
// their byte size.
type Analyzer struct {
	config common.MediaConfig
	fetch  *fetcher.Service
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewAnalyzer creates the analyzer. The fetcher instance is expected to
// carry the media byte cap and timeout, not the crawl ones.
func NewAnalyzer(config common.MediaConfig, fetch *fetcher.Service, store interfaces.StorageManager, logger arbor.ILogger) *Analyzer {
	return &Analyzer{
		config: config,
		fetch:  fetch,
		store:  store,
		logger: logger,
	}
}

// Analyze processes one media item to a terminal state. Failures still mark
// the item processed with empty metrics so it is not retried forever; a job
// run with force refresh clears the flag first.
func (a *Analyzer) Analyze(ctx context.Context, item *models.Media) error {
	now := time.Now().UTC()
	item.IsProcessed = true
	item.AnalyzedAt = &now

	result, err := a.fetch.Fetch(ctx, item.URL)
	if err != nil || result.StatusCode != 200 {
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("media_id", item.ID).
				Str("url", item.URL).
				Msg("Media download failed")
		}
		return a.store.Media().SaveMedia(ctx, item)
	}

	size := int64(len(result.Body))
	item.ByteSize = &size

	if item.Kind == models.MediaKindImage {
		if img, _, err := image.Decode(bytes.NewReader(result.Body)); err == nil {
			bounds := img.Bounds()
			width, height := bounds.Dx(), bounds.Dy()
			item.Width = &width
			item.Height = &height
			item.DominantColors = DominantColors(img, a.config.ColorCount)
			item.PerceptualHash = PerceptualHash(img)
		} else {
			a.logger.Debug().
				Err(err).
				Str("media_id", item.ID).
				Msg("Image decode failed")
		}
	}

	return a.store.Media().SaveMedia(ctx, item)
}
