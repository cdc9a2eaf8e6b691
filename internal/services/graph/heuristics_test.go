package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

func newTestHeuristics(t *testing.T, config common.HeuristicsConfig) *Heuristics {
	t.Helper()
	h, err := NewHeuristics(config, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewHeuristics: %v", err)
	}
	return h
}

func socialConfig() common.HeuristicsConfig {
	return common.HeuristicsConfig{
		Rules: map[string]common.RewriteConfig{
			"*.twitter.com": {
				Match:    `^https?://(?:www\.)?twitter\.com/([^/?#]+)`,
				Template: "https://twitter.com/$1",
			},
		},
		DenyHosts:      []string{"ads.example.com", "spam.net"},
		TrackingParams: []string{"utm_source", "fbclid"},
	}
}

func TestHeuristicsCanonicalize(t *testing.T) {
	h := newTestHeuristics(t, socialConfig())

	tests := []struct {
		in   string
		want string
	}{
		// Profile URL collapses to its logical form.
		{"https://www.twitter.com/someuser/status/123", "https://twitter.com/someuser"},
		// Already canonical: unchanged.
		{"https://twitter.com/someuser", "https://twitter.com/someuser"},
		// Non-matching host passes through normalization only.
		{"https://Example.com/page?utm_source=x", "https://example.com/page"},
	}
	for _, tt := range tests {
		got, err := h.Canonicalize(tt.in)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeuristicsCanonicalizeIdempotent(t *testing.T) {
	h := newTestHeuristics(t, socialConfig())

	once, err := h.Canonicalize("https://www.twitter.com/someuser/status/123?fbclid=abc")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := h.Canonicalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("not idempotent: %q -> %q", once, twice)
	}
}

func TestHeuristicsDenied(t *testing.T) {
	h := newTestHeuristics(t, socialConfig())

	tests := []struct {
		url  string
		want bool
	}{
		{"https://ads.example.com/banner", true},
		{"https://tracker.ads.example.com/pixel", true}, // subdomain of a denied host
		{"https://spam.net/", true},
		{"https://example.com/page", false},
		{"https://notspam.net.example.org/", false},
	}
	for _, tt := range tests {
		if got := h.Denied(tt.url); got != tt.want {
			t.Errorf("Denied(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestHeuristicsRulesFileOverride(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	rules := `
"*.twitter.com":
  match: '^https?://(?:www\.)?twitter\.com/intent/follow\?screen_name=([^&]+)'
  template: "https://twitter.com/$1"
`
	if err := os.WriteFile(rulesPath, []byte(rules), 0644); err != nil {
		t.Fatal(err)
	}

	config := socialConfig()
	config.RulesFile = rulesPath
	h := newTestHeuristics(t, config)

	// File rule replaced the inline rule for the same pattern.
	got, err := h.Canonicalize("https://twitter.com/intent/follow?screen_name=someuser")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://twitter.com/someuser" {
		t.Errorf("file rule not applied, got %q", got)
	}
}

func TestHeuristicsInvalidRule(t *testing.T) {
	config := common.HeuristicsConfig{
		Rules: map[string]common.RewriteConfig{
			"example.com": {Match: `([unclosed`, Template: "x"},
		},
	}
	if _, err := NewHeuristics(config, arbor.NewLogger()); err == nil {
		t.Fatal("expected compile error for invalid regex")
	}
}
