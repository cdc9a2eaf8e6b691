package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// scriptedAdapter returns canned verdicts and counts calls.
type scriptedAdapter struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls before succeeding
	verdict  string
}

func (a *scriptedAdapter) Validate(ctx context.Context, prompt string) (*interfaces.Verdict, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failures > 0 {
		a.failures--
		return nil, errors.New("transport error")
	}
	verdict := a.verdict
	if verdict == "" {
		verdict = models.VerdictYes
	}
	return &interfaces.Verdict{Verdict: verdict, Model: "scripted", Raw: verdict}, nil
}

func (a *scriptedAdapter) BlendSentiment(ctx context.Context, text, language string) (*interfaces.SentimentOpinion, error) {
	return nil, errors.New("not scripted")
}

func (a *scriptedAdapter) ModelName() string { return "scripted" }

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func testLand() *models.Land {
	land := models.NewLand("energy", "renewable energy research", "tester", []string{"en"})
	land.Keywords = []string{"solar", "wind"}
	return land
}

func testExpression(hash string) *models.Expression {
	expr := models.NewExpression("land_1", "domain_1", "https://example.com/"+hash, 0)
	expr.Title = "Solar growth"
	expr.Readable = "Solar capacity keeps growing."
	expr.ContentHash = hash
	return expr
}

func newTestValidator(adapter interfaces.LLMAdapter, budget int) *Validator {
	return NewValidator(adapter, common.LLMConfig{
		ValidationCap: budget,
		ReadableChars: 500,
	}, arbor.NewLogger())
}

func TestValidatorCap(t *testing.T) {
	adapter := &scriptedAdapter{}
	v := newTestValidator(adapter, 2)
	ctx := context.Background()

	for i, hash := range []string{"aaa", "bbb"} {
		if _, err := v.Validate(ctx, testLand(), testExpression(hash)); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	_, err := v.Validate(ctx, testLand(), testExpression("ccc"))
	if !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
	if v.Calls() != 2 {
		t.Errorf("calls = %d, want 2", v.Calls())
	}
}

func TestValidatorCacheByContentHash(t *testing.T) {
	adapter := &scriptedAdapter{}
	v := newTestValidator(adapter, 10)
	ctx := context.Background()

	first, err := v.Validate(ctx, testLand(), testExpression("same"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Validate(ctx, testLand(), testExpression("same"))
	if err != nil {
		t.Fatal(err)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter called %d times, want 1 (cache hit)", adapter.callCount())
	}
	if first.Verdict != second.Verdict {
		t.Error("cached verdict differs")
	}
}

func TestValidatorCacheServedPastCap(t *testing.T) {
	adapter := &scriptedAdapter{}
	v := newTestValidator(adapter, 1)
	ctx := context.Background()

	if _, err := v.Validate(ctx, testLand(), testExpression("seen")); err != nil {
		t.Fatal(err)
	}
	// Budget is spent, but repeated content must not burn it.
	if _, err := v.Validate(ctx, testLand(), testExpression("seen")); err != nil {
		t.Fatalf("cache hit past cap: %v", err)
	}
	if _, err := v.Validate(ctx, testLand(), testExpression("fresh")); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("fresh content past cap: %v", err)
	}
}

func TestValidatorRetriesOnce(t *testing.T) {
	adapter := &scriptedAdapter{failures: 1}
	v := newTestValidator(adapter, 10)

	verdict, err := v.Validate(context.Background(), testLand(), testExpression("retry"))
	if err != nil {
		t.Fatalf("single failure should be retried: %v", err)
	}
	if verdict.Verdict != models.VerdictYes {
		t.Errorf("verdict = %q", verdict.Verdict)
	}
	if adapter.callCount() != 2 {
		t.Errorf("adapter called %d times, want 2", adapter.callCount())
	}
}

func TestValidatorTwoFailuresSurface(t *testing.T) {
	adapter := &scriptedAdapter{failures: 2}
	v := newTestValidator(adapter, 10)

	if _, err := v.Validate(context.Background(), testLand(), testExpression("down")); err == nil {
		t.Fatal("expected error after retry exhausted")
	}
}

func TestNormalizeVerdict(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"yes", models.VerdictYes},
		{"  Yes.  ", models.VerdictYes},
		{"Oui, absolument", models.VerdictYes},
		{`{"verdict": "yes"}`, models.VerdictYes},
		{`{"verdict": "no"}`, models.VerdictNo},
		{"no", models.VerdictNo},
		{"I cannot tell", models.VerdictNo},
		{"", models.VerdictNo},
	}
	for _, tt := range tests {
		if got := NormalizeVerdict(tt.raw); got != tt.want {
			t.Errorf("NormalizeVerdict(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseSentimentReply(t *testing.T) {
	score, confidence, err := ParseSentimentReply(`{"score": 0.6, "confidence": 0.9}`)
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.6 || confidence != 0.9 {
		t.Errorf("got score=%v confidence=%v", score, confidence)
	}

	// Code fences and prose around the JSON are tolerated.
	wrapped := "Here is my estimate:\n```json\n{\"score\": -0.2, \"confidence\": 0.5}\n```\n"
	score, confidence, err = ParseSentimentReply(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if score != -0.2 || confidence != 0.5 {
		t.Errorf("wrapped reply: score=%v confidence=%v", score, confidence)
	}

	// Out-of-range values clamp.
	score, confidence, err = ParseSentimentReply(`{"score": 3, "confidence": -1}`)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1 || confidence != 0 {
		t.Errorf("clamped: score=%v confidence=%v", score, confidence)
	}

	if _, _, err := ParseSentimentReply("not json at all"); err == nil {
		t.Error("expected error for unparseable reply")
	}
}
