package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RadhiFadlillah/whatlanggo"
)

// detectLanguage resolves the page language: declared lang attribute, then
// meta tags, then statistical detection over the body text when at least
// 200 characters are available. Returns "" when nothing is conclusive.
func detectLanguage(doc *goquery.Document, bodyText string) string {
	if doc != nil {
		if lang, ok := doc.Find("html").Attr("lang"); ok {
			if code := normalizeLangCode(lang); code != "" {
				return code
			}
		}
		if lang, ok := doc.Find(`meta[http-equiv="content-language"]`).Attr("content"); ok {
			if code := normalizeLangCode(lang); code != "" {
				return code
			}
		}
		if lang, ok := doc.Find(`meta[property="og:locale"]`).Attr("content"); ok {
			if code := normalizeLangCode(lang); code != "" {
				return code
			}
		}
	}

	return detectLanguageStatistical(bodyText)
}

// detectLanguageStatistical runs whatlanggo over the text. Short texts give
// unreliable answers, so anything under 200 characters is undetected.
func detectLanguageStatistical(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < 200 {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// normalizeLangCode reduces "en-US" or "fr_FR" to the bare two-letter code.
func normalizeLangCode(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	for _, sep := range []string{"-", "_"} {
		if idx := strings.Index(raw, sep); idx > 0 {
			raw = raw[:idx]
		}
	}
	if len(raw) != 2 {
		return ""
	}
	for _, r := range raw {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return raw
}
