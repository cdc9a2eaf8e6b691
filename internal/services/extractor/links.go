package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/indago/internal/models"
)

// mediaSrcAttrs are checked in order; lazy-loading themes stash the real
// URL in data attributes.
var mediaSrcAttrs = []string{"src", "data-src", "data-original"}

// extractLinks walks anchor tags, resolves hrefs against the base and tags
// each link content or nav by its position in the document.
func extractLinks(doc *goquery.Document, baseURL *url.URL) []DiscoveredLink {
	var links []DiscoveredLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if shouldSkipLink(href) {
			return
		}
		resolved := resolveURL(href, baseURL)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true

		linkType := models.LinkTypeContent
		if sel.ParentsFiltered("nav, header, footer, aside").Length() > 0 {
			linkType = models.LinkTypeNav
		}

		links = append(links, DiscoveredLink{
			URL:      resolved,
			Anchor:   strings.TrimSpace(sel.Text()),
			LinkType: linkType,
		})
	})

	return links
}

// extractMedia collects media references from img, video, audio and nested
// source elements.
func extractMedia(doc *goquery.Document, baseURL *url.URL) []MediaRef {
	var refs []MediaRef
	seen := make(map[string]bool)

	add := func(raw, kind string) {
		if shouldSkipLink(raw) {
			return
		}
		resolved := resolveURL(raw, baseURL)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		if kind == "" {
			kind = models.MediaKindFromURL(resolved)
		}
		refs = append(refs, MediaRef{URL: resolved, Kind: kind})
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range mediaSrcAttrs {
			if src, ok := sel.Attr(attr); ok && src != "" {
				add(src, models.MediaKindImage)
				return
			}
		}
	})

	doc.Find("video").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			add(src, models.MediaKindVideo)
		}
		sel.Find("source[src]").Each(func(_ int, source *goquery.Selection) {
			src, _ := source.Attr("src")
			add(src, models.MediaKindVideo)
		})
	})

	doc.Find("audio").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			add(src, models.MediaKindAudio)
		}
		sel.Find("source[src]").Each(func(_ int, source *goquery.Selection) {
			src, _ := source.Attr("src")
			add(src, models.MediaKindAudio)
		})
	})

	return refs
}

// shouldSkipLink filters schemes that can never become expressions.
func shouldSkipLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "sms:", "ftp:", "data:", "file:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// resolveURL resolves href against the base, returning "" when it cannot
// yield an absolute http(s) URL.
func resolveURL(href string, baseURL *url.URL) string {
	var resolved *url.URL
	var err error

	if baseURL != nil {
		resolved, err = baseURL.Parse(href)
	} else {
		resolved, err = url.Parse(href)
	}
	if err != nil || !resolved.IsAbs() {
		return ""
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
