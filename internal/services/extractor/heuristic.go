package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/models"
)

// extractHeuristic is the forgiving parse for pages the structured pass
// could not digest: strip everything that is not prose, join what remains
// as plain text paragraphs.
func (s *Service) extractHeuristic(body []byte, pageURL string) (*ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	baseURL, err := url.Parse(pageURL)
	if err != nil {
		baseURL = nil
	}

	content := &ExtractedContent{
		Title:        extractTitle(doc),
		Description:  extractDescription(doc),
		CanonicalURL: extractCanonical(doc, baseURL),
		Links:        extractLinks(doc, baseURL),
		Media:        extractMedia(doc, baseURL),
		Source:       models.SourceHeuristic,
	}

	body2 := doc.Find("body")
	body2.Find("nav, header, footer, aside, script, style, noscript, iframe, form, button, [class*=sidebar], [class*=menu], [id*=sidebar], [id*=menu]").Remove()

	var blocks []string
	body2.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, td").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 20 && !strings.HasPrefix(goquery.NodeName(sel), "h") {
			return
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		blocks = append(blocks, strings.TrimSpace(body2.Text()))
	}

	content.Readable = strings.TrimSpace(strings.Join(blocks, "\n\n"))
	content.WordCount = countWords(content.Readable)
	content.Language = detectLanguage(doc, content.Readable)

	return content, nil
}
