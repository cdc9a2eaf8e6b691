package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/indago/internal/common"
)

func defaultWeights() common.QualityWeightsConfig {
	return common.QualityWeightsConfig{
		Access:    0.30,
		Structure: 0.15,
		Richness:  0.25,
		Coherence: 0.20,
		Integrity: 0.10,
	}
}

func TestQualityScorePerfectPage(t *testing.T) {
	in := QualityInputs{
		HTTPStatus:  200,
		Elapsed:     800 * time.Millisecond,
		ContentType: "text/html; charset=utf-8",

		Title:    "renewable energy",
		Body:     "renewable energy is growing fast",
		Language: "en",

		HeadingCount:   4,
		ParagraphCount: 5,
		WordCount:      600,
		MediaCount:     2,
		LinkCount:      10,

		CanonicalPresent: true,
		LanguageDetected: true,
		DuplicateContent: false,
	}

	score := QualityScore(defaultWeights(), in)
	assert.InDelta(t, 1.0, score, 1e-9, "every block saturated should score 1")
}

func TestQualityScoreWorstPage(t *testing.T) {
	in := QualityInputs{
		HTTPStatus:       500,
		ContentType:      "application/pdf",
		DuplicateContent: true,
	}
	score := QualityScore(defaultWeights(), in)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestQualityScoreBounded(t *testing.T) {
	// Even absurd inputs stay in [0,1].
	in := QualityInputs{
		HTTPStatus:     200,
		Elapsed:        time.Millisecond,
		ContentType:    "text/html",
		Title:          "x y z",
		Body:           "x y z",
		HeadingCount:   1000,
		ParagraphCount: 1000,
		WordCount:      1 << 20,
		MediaCount:     1000,
		LinkCount:      10,
	}
	score := QualityScore(defaultWeights(), in)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestQualityDuplicatePenalty(t *testing.T) {
	in := QualityInputs{
		HTTPStatus:       200,
		Elapsed:          time.Second,
		ContentType:      "text/html",
		CanonicalPresent: true,
		LanguageDetected: true,
	}
	unique := QualityScore(defaultWeights(), in)
	in.DuplicateContent = true
	duplicate := QualityScore(defaultWeights(), in)
	assert.Greater(t, unique, duplicate, "duplicate content must lower the score")
}

func TestCountHeadings(t *testing.T) {
	markdown := "# Top\n\nsome text\n\n## Section\n\n### Deep\n\n#not a heading"
	assert.Equal(t, 2, CountHeadings(markdown), "only h1 and h2 count")
}

func TestCountParagraphs(t *testing.T) {
	assert.Equal(t, 0, CountParagraphs(""))
	assert.Equal(t, 1, CountParagraphs("one block"))
	assert.Equal(t, 3, CountParagraphs("a\n\nb\n\nc"))
}
