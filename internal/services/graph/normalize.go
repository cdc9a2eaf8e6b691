package graph

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// NormalizeURL canonicalizes a URL before uniqueness checks: lowercase
// scheme and host, fragment stripped, default ports removed, dot segments
// resolved, tracking query parameters dropped and the rest sorted. The
// function is idempotent: normalize(normalize(u)) == normalize(u).
func NormalizeURL(rawURL string, trackingParams []string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	parsed.Scheme = scheme

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	port := parsed.Port()
	if port != "" && !isDefaultPort(scheme, port) {
		host = host + ":" + port
	}
	parsed.Host = host

	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.Path != "" {
		cleaned := path.Clean(parsed.Path)
		if cleaned == "." {
			cleaned = "/"
		}
		// path.Clean drops the trailing slash, keep it: /a/ and /a are
		// different resources on plenty of servers.
		if strings.HasSuffix(parsed.Path, "/") && cleaned != "/" {
			cleaned += "/"
		}
		parsed.Path = cleaned
	}

	parsed.RawQuery = cleanQuery(parsed.Query(), trackingParams)

	return parsed.String(), nil
}

// cleanQuery drops tracking parameters and re-encodes the remainder in
// sorted key order so equivalent URLs compare equal.
func cleanQuery(values url.Values, trackingParams []string) string {
	for _, param := range trackingParams {
		values.Del(param)
	}
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			if value != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
	}
	return b.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// HostOf returns the lowercase host of a URL, empty when unparseable.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
