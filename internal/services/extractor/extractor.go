package extractor

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/fetcher"
)

// ErrContentUnusable is raised when every strategy in the cascade failed to
// produce a readable body of at least min_readable_chars.
var ErrContentUnusable = errors.New("content unusable: no strategy produced a readable body")

// Service runs the extraction cascade: primary structured parse, archived
// snapshot, heuristic HTML, minimal regex. Each strategy runs only when the
// previous one produced no usable body, and the accepted result records
// which strategy won.
type Service struct {
	config  common.ExtractorConfig
	archive interfaces.ArchiveAdapter
	logger  arbor.ILogger
}

// NewService creates the extractor. The archive adapter may be nil, which
// disables the snapshot fallback regardless of config.
func NewService(config common.ExtractorConfig, archive interfaces.ArchiveAdapter, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		archive: archive,
		logger:  logger,
	}
}

// Extract turns a fetch outcome into canonical content. result may be nil
// when the fetch produced no response at all; the archive fallback still
// gets its chance.
func (s *Service) Extract(ctx context.Context, pageURL string, result *fetcher.FetchResult) (*ExtractedContent, error) {
	var body []byte
	if result != nil {
		body = result.Body
	}

	if len(body) > 0 {
		content, err := s.extractPrimary(body, pageURL)
		if err == nil && content.Usable(s.config.MinReadableChars) {
			s.fillCanonical(content, result, pageURL)
			return content, nil
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("url", pageURL).Msg("Primary extraction failed")
		}
	}

	if s.config.EnableArchiveFallback && s.archive != nil {
		content, err := s.extractArchive(ctx, pageURL)
		if err == nil && content.Usable(s.config.MinReadableChars) {
			s.fillCanonical(content, result, pageURL)
			return content, nil
		}
		if err != nil && !errors.Is(err, interfaces.ErrSnapshotNotFound) {
			s.logger.Debug().Err(err).Str("url", pageURL).Msg("Archive fallback failed")
		}
	}

	if s.config.EnableHeuristicFallback && len(body) > 0 {
		content, err := s.extractHeuristic(body, pageURL)
		if err == nil && content.Usable(s.config.MinReadableChars) {
			s.fillCanonical(content, result, pageURL)
			return content, nil
		}
	}

	if len(body) > 0 {
		content, err := s.extractMinimal(body, pageURL)
		if err == nil && content.Usable(s.config.MinReadableChars) {
			s.fillCanonical(content, result, pageURL)
			return content, nil
		}
	}

	return nil, ErrContentUnusable
}

// extractArchive fetches the most recent snapshot and runs the structured
// parse over its body, tagging the result as archive sourced.
func (s *Service) extractArchive(ctx context.Context, pageURL string) (*ExtractedContent, error) {
	snapshot, err := s.archive.GetSnapshot(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	content, err := s.extractPrimary(snapshot.Body, pageURL)
	if err != nil {
		return nil, err
	}
	content.Source = models.SourceArchive
	return content, nil
}

// fillCanonical defaults the canonical URL to the post-redirect URL when
// the page declared none.
func (s *Service) fillCanonical(content *ExtractedContent, result *fetcher.FetchResult, pageURL string) {
	if content.CanonicalURL != "" {
		return
	}
	if result != nil && result.FinalURL != "" {
		content.CanonicalURL = result.FinalURL
		return
	}
	content.CanonicalURL = pageURL
}
