package graph

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"gopkg.in/yaml.v3"
)

// Rule rewrites URLs of one host family to their canonical logical form,
// e.g. a social profile URL whose identity is a subpath capture.
type Rule struct {
	HostPattern string
	Capture     *regexp.Regexp
	Template    string
}

// Heuristics applies the configured host-pattern rewrite map. Rules are
// compiled once; application is deterministic and idempotent because every
// template output is itself a canonical form no capture regex matches
// further rewrites onto.
type Heuristics struct {
	rules     []Rule
	denyHosts map[string]struct{}
	tracking  []string
	logger    arbor.ILogger
}

// NewHeuristics compiles the rule set from config, merging the optional
// YAML rules file over the inline rules.
func NewHeuristics(config common.HeuristicsConfig, logger arbor.ILogger) (*Heuristics, error) {
	merged := make(map[string]common.RewriteConfig, len(config.Rules))
	for pattern, rule := range config.Rules {
		merged[pattern] = rule
	}

	if config.RulesFile != "" {
		fileRules, err := loadRulesFile(config.RulesFile)
		if err != nil {
			return nil, err
		}
		for pattern, rule := range fileRules {
			merged[pattern] = rule
		}
	}

	// Compile in sorted order so rule precedence is stable across restarts.
	patterns := make([]string, 0, len(merged))
	for pattern := range merged {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	h := &Heuristics{
		denyHosts: make(map[string]struct{}, len(config.DenyHosts)),
		tracking:  config.TrackingParams,
		logger:    logger,
	}
	for _, pattern := range patterns {
		rule := merged[pattern]
		capture, err := regexp.Compile(rule.Match)
		if err != nil {
			return nil, fmt.Errorf("invalid heuristic rule for %q: %w", pattern, err)
		}
		h.rules = append(h.rules, Rule{
			HostPattern: strings.ToLower(pattern),
			Capture:     capture,
			Template:    rule.Template,
		})
	}
	for _, host := range config.DenyHosts {
		h.denyHosts[strings.ToLower(host)] = struct{}{}
	}

	if len(h.rules) > 0 {
		logger.Debug().
			Int("rules", len(h.rules)).
			Int("deny_hosts", len(h.denyHosts)).
			Msg("URL heuristics compiled")
	}
	return h, nil
}

func loadRulesFile(path string) (map[string]common.RewriteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heuristics rules file: %w", err)
	}
	var rules map[string]common.RewriteConfig
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse heuristics rules file: %w", err)
	}
	return rules, nil
}

// TrackingParams returns the query parameters stripped during
// normalization.
func (h *Heuristics) TrackingParams() []string {
	return h.tracking
}

// Denied reports whether the URL's host is on the deny list. Subdomains of
// a denied host are denied too.
func (h *Heuristics) Denied(rawURL string) bool {
	host := HostOf(rawURL)
	if host == "" {
		return true
	}
	for candidate := host; candidate != ""; {
		if _, ok := h.denyHosts[candidate]; ok {
			return true
		}
		idx := strings.IndexByte(candidate, '.')
		if idx < 0 {
			break
		}
		candidate = candidate[idx+1:]
	}
	return false
}

// Apply rewrites a normalized URL to its logical form when a rule's host
// pattern and capture regex both match. The first matching rule wins;
// non-matching URLs pass through unchanged.
func (h *Heuristics) Apply(normalizedURL string) string {
	host := HostOf(normalizedURL)
	if host == "" {
		return normalizedURL
	}

	for _, rule := range h.rules {
		if !hostMatches(host, rule.HostPattern) {
			continue
		}
		match := rule.Capture.FindStringSubmatch(normalizedURL)
		if match == nil {
			continue
		}

		rewritten := rule.Template
		for i := len(match) - 1; i >= 1; i-- {
			rewritten = strings.ReplaceAll(rewritten, fmt.Sprintf("$%d", i), match[i])
		}
		if rewritten != normalizedURL {
			h.logger.Debug().
				Str("url", normalizedURL).
				Str("rewritten", rewritten).
				Str("host_pattern", rule.HostPattern).
				Msg("Heuristic rewrite applied")
		}
		return rewritten
	}
	return normalizedURL
}

// Canonicalize runs the full pipeline: normalize, then heuristic rewrite,
// then a second normalize so template output is canonical too.
func (h *Heuristics) Canonicalize(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL, h.tracking)
	if err != nil {
		return "", err
	}
	rewritten := h.Apply(normalized)
	if rewritten == normalized {
		return normalized, nil
	}
	return NormalizeURL(rewritten, h.tracking)
}

// hostMatches supports exact hosts and *.suffix wildcard patterns.
func hostMatches(host, pattern string) bool {
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix) || host == pattern[2:]
	}
	return host == pattern
}
