package extractor

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/models"
)

// extractPrimary is the structured parse: full metadata, main-content
// markdown, links and media from well formed HTML.
func (s *Service) extractPrimary(body []byte, pageURL string) (*ExtractedContent, error) {
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
		Source:       models.SourcePrimary,
	}

	main := mainContent(doc)
	mainHTML, err := main.Html()
	if err != nil || strings.TrimSpace(mainHTML) == "" {
		mainHTML = string(body)
	}

	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(mainHTML)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("Markdown conversion failed")
		markdown = strings.TrimSpace(main.Text())
	}
	content.Readable = strings.TrimSpace(markdown)
	content.WordCount = countWords(content.Readable)
	content.Language = detectLanguage(doc, main.Text())

	return content, nil
}

// mainContent narrows the document to its main container when one exists,
// otherwise strips boilerplate from the full body.
func mainContent(doc *goquery.Document) *goquery.Selection {
	main := doc.Find("main, article, [role=main]").First()
	if main.Length() > 0 {
		return main
	}

	body := doc.Find("body")
	body.Find("nav, header, footer, aside, script, style, noscript").Remove()
	return body
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

func extractCanonical(doc *goquery.Document, baseURL *url.URL) string {
	href, ok := doc.Find(`link[rel="canonical"]`).Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return resolveURL(strings.TrimSpace(href), baseURL)
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
