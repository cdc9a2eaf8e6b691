package scoring

import (
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/services/dictionary"
)

// QualityInputs are the observations the five blocks score over. All fields
// come from the fetch and extraction results; nothing here touches storage,
// so the score is deterministic given inputs.
type QualityInputs struct {
	HTTPStatus  int
	Elapsed     time.Duration
	ContentType string

	Title    string
	Body     string
	Language string

	HeadingCount   int
	ParagraphCount int
	WordCount      int
	MediaCount     int
	LinkCount      int

	CanonicalPresent bool
	LanguageDetected bool
	DuplicateContent bool
}

// QualityScore combines five weighted blocks, each bounded to [0,1], into a
// final score in [0,1].
func QualityScore(weights common.QualityWeightsConfig, in QualityInputs) float64 {
	score := weights.Access*accessBlock(in) +
		weights.Structure*structureBlock(in) +
		weights.Richness*richnessBlock(in) +
		weights.Coherence*coherenceBlock(in) +
		weights.Integrity*integrityBlock(in)

	return clamp01(score)
}

// accessBlock: reachable, fast, actually HTML.
func accessBlock(in QualityInputs) float64 {
	score := 0.0
	if in.HTTPStatus == 200 {
		score += 1.0 / 3
	}
	if in.Elapsed > 0 && in.Elapsed < 5*time.Second {
		score += 1.0 / 3
	}
	if isHTMLContentType(in.ContentType) {
		score += 1.0 / 3
	}
	return clamp01(score)
}

// structureBlock: title present, heading density, enough paragraphs.
func structureBlock(in QualityInputs) float64 {
	score := 0.0
	if strings.TrimSpace(in.Title) != "" {
		score += 1.0 / 3
	}
	headings := float64(in.HeadingCount)
	if headings > 3 {
		headings = 3
	}
	score += headings / 3 * (1.0 / 3)
	if in.ParagraphCount >= 3 {
		score += 1.0 / 3
	}
	return clamp01(score)
}

// richnessBlock: substantial text, at least one media, a healthy but not
// spammy outbound link count.
func richnessBlock(in QualityInputs) float64 {
	score := 0.0
	if in.WordCount >= 300 {
		score += 1.0 / 3
	}
	if in.MediaCount >= 1 {
		score += 1.0 / 3
	}
	if in.LinkCount >= 3 && in.LinkCount <= 50 {
		score += 1.0 / 3
	}
	return clamp01(score)
}

// coherenceBlock: share of title lemmas that reappear in the body.
func coherenceBlock(in QualityInputs) float64 {
	titleTokens := dictionary.Tokenize(in.Title, in.Language)
	if len(titleTokens) == 0 {
		return 0
	}

	bodyTokens := make(map[string]struct{})
	for _, token := range dictionary.Tokenize(in.Body, in.Language) {
		bodyTokens[token] = struct{}{}
	}

	unique := make(map[string]struct{})
	overlap := 0
	for _, token := range titleTokens {
		if _, dup := unique[token]; dup {
			continue
		}
		unique[token] = struct{}{}
		if _, ok := bodyTokens[token]; ok {
			overlap++
		}
	}
	return clamp01(float64(overlap) / float64(len(unique)))
}

// integrityBlock: canonical declared, language known, content not a
// duplicate of another expression in the land.
func integrityBlock(in QualityInputs) float64 {
	score := 0.0
	if in.CanonicalPresent {
		score += 1.0 / 3
	}
	if in.LanguageDetected {
		score += 1.0 / 3
	}
	if !in.DuplicateContent {
		score += 1.0 / 3
	}
	return clamp01(score)
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var (
	headingPattern   = regexp.MustCompile(`(?m)^#{1,2}\s+\S`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

// CountHeadings counts markdown h1/h2 lines in readable text.
func CountHeadings(markdown string) int {
	return len(headingPattern.FindAllString(markdown, -1))
}

// CountParagraphs counts blank-line separated blocks in readable text.
func CountParagraphs(markdown string) int {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return 0
	}
	return len(paragraphPattern.Split(markdown, -1))
}
