package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ternarybob/indago/internal/models"
)

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptPattern     = regexp.MustCompile(`(?is)<(script|style|noscript)\b[^>]*>.*?</\s*(script|style|noscript)\s*>`)
	titlePattern      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	hrefPattern       = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
	srcPattern        = regexp.MustCompile(`(?i)src\s*=\s*["']([^"']+)["']`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// extractMinimal is the last resort: regex-level text and attribute
// scraping from raw bytes. No structure is assumed.
func (s *Service) extractMinimal(body []byte, pageURL string) (*ExtractedContent, error) {
	raw := string(body)
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		baseURL = nil
	}

	content := &ExtractedContent{Source: models.SourceMinimal}

	if m := titlePattern.FindStringSubmatch(raw); len(m) > 1 {
		content.Title = strings.TrimSpace(whitespacePattern.ReplaceAllString(m[1], " "))
	}

	text := scriptPattern.ReplaceAllString(raw, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	content.Readable = strings.TrimSpace(text)
	content.WordCount = countWords(content.Readable)
	content.Language = detectLanguageStatistical(content.Readable)

	seen := make(map[string]bool)
	for _, m := range hrefPattern.FindAllStringSubmatch(raw, -1) {
		if shouldSkipLink(m[1]) {
			continue
		}
		resolved := resolveURL(m[1], baseURL)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		content.Links = append(content.Links, DiscoveredLink{URL: resolved, LinkType: models.LinkTypeContent})
	}

	for _, m := range srcPattern.FindAllStringSubmatch(raw, -1) {
		if shouldSkipLink(m[1]) {
			continue
		}
		resolved := resolveURL(m[1], baseURL)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		content.Media = append(content.Media, MediaRef{URL: resolved, Kind: models.MediaKindFromURL(resolved)})
	}

	return content, nil
}
