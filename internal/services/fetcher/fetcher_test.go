package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

func testConfig() common.FetcherConfig {
	return common.FetcherConfig{
		UserAgent:            "indago-test/1.0",
		MaxConcurrentGlobal:  4,
		MaxConcurrentPerHost: 2,
		MinDelayPerHost:      0,
		Timeout:              5 * time.Second,
		MaxBytes:             1 << 20,
		FollowRedirects:      true,
		MaxRedirects:         5,
		RetryAttempts:        3,
		BackoffBase:          time.Millisecond,
		BackoffMax:           5 * time.Millisecond,
		RetryableStatusCodes: []int{429, 500, 503},
	}
}

func newTestFetcher(config common.FetcherConfig) *Service {
	return NewService(config, arbor.NewLogger())
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "indago-test/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer server.Close()

	result, err := newTestFetcher(testConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("status = %d", result.StatusCode)
	}
	if !strings.Contains(string(result.Body), "hello") {
		t.Errorf("body = %q", result.Body)
	}
	if !strings.Contains(result.ContentType, "text/html") {
		t.Errorf("content type = %q", result.ContentType)
	}
	if result.Elapsed <= 0 {
		t.Error("elapsed not measured")
	}
}

func TestFetchNon200IsStillAResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	result, err := newTestFetcher(testConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("a 404 response is not a fetch error: %v", err)
	}
	if result.StatusCode != 404 {
		t.Errorf("status = %d", result.StatusCode)
	}
}

func TestFetchRetriesRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer server.Close()

	result, err := newTestFetcher(testConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("status after retries = %d", result.StatusCode)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestFetchDoesNotRetryPermanentStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result, err := newTestFetcher(testConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if result.StatusCode != 403 {
		t.Errorf("status = %d", result.StatusCode)
	}
	if hits.Load() != 1 {
		t.Errorf("403 retried: %d hits", hits.Load())
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "destination")
	})

	result, err := newTestFetcher(testConfig()).Fetch(context.Background(), server.URL+"/start")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(result.FinalURL, "/final") {
		t.Errorf("FinalURL = %q", result.FinalURL)
	}
	if string(result.Body) != "destination" {
		t.Errorf("body = %q", result.Body)
	}
}

func TestFetchBodyCap(t *testing.T) {
	config := testConfig()
	config.MaxBytes = 1024

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	_, err := newTestFetcher(config).Fetch(context.Background(), server.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrKindTooLarge {
		t.Fatalf("expected too_large, got %v", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := newTestFetcher(testConfig()).Fetch(context.Background(), "not-a-url")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrKindInvalidURL {
		t.Fatalf("expected invalid_url, got %v", err)
	}
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestFetcher(testConfig()).Fetch(ctx, server.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrKindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestRetryPolicyBackoffBounded(t *testing.T) {
	policy := NewRetryPolicy(testConfig())
	for attempt := 0; attempt < 10; attempt++ {
		backoff := policy.CalculateBackoff(attempt)
		if backoff <= 0 {
			t.Errorf("attempt %d: backoff %v not positive", attempt, backoff)
		}
		// Cap plus 25% jitter headroom.
		if backoff > time.Duration(float64(policy.MaxBackoff)*1.25) {
			t.Errorf("attempt %d: backoff %v exceeds cap", attempt, backoff)
		}
	}
}

func TestShouldRetryTaxonomy(t *testing.T) {
	policy := NewRetryPolicy(testConfig())

	if !policy.ShouldRetry(0, 503, nil) {
		t.Error("503 should retry")
	}
	if policy.ShouldRetry(0, 404, nil) {
		t.Error("404 must not retry")
	}
	if policy.ShouldRetry(2, 503, nil) {
		t.Error("attempt budget exhausted")
	}
	if !policy.ShouldRetry(0, 0, &FetchError{Kind: ErrKindTimeout}) {
		t.Error("timeout should retry")
	}
	if policy.ShouldRetry(0, 0, &FetchError{Kind: ErrKindCancelled}) {
		t.Error("cancellation must never retry")
	}
	if policy.ShouldRetry(0, 0, &FetchError{Kind: ErrKindTooLarge}) {
		t.Error("oversized body must not retry")
	}
}
