package extractor

// DiscoveredLink is one outbound URL found in a page, tagged by where it
// sat in the document.
type DiscoveredLink struct {
	URL      string
	Anchor   string
	LinkType string
}

// MediaRef is one media URL found in a page.
type MediaRef struct {
	URL  string
	Kind string
}

// ExtractedContent is the canonical output of the extraction cascade.
type ExtractedContent struct {
	Title        string
	Description  string
	Language     string
	CanonicalURL string
	Readable     string
	WordCount    int
	Links        []DiscoveredLink
	Media        []MediaRef
	Source       string
}

// Usable reports whether the readable body clears the minimum size for the
// cascade to accept it.
func (c *ExtractedContent) Usable(minChars int) bool {
	return c != nil && len(c.Readable) >= minChars
}
