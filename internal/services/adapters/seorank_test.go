package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

func newSEOClient(endpoint string, threshold int) *SEORankClient {
	return NewSEORankClient(common.SEORankAdapterConfig{
		Endpoint:         endpoint,
		APIKey:           "key123",
		BreakerThreshold: threshold,
	}, arbor.NewLogger())
}

func TestSEORankFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/key123/") {
			t.Errorf("api key not in path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"domain_authority": 55, "backlinks": 1234}`)
	}))
	defer server.Close()

	client := newSEOClient(server.URL, 5)
	blob, err := client.Fetch(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(blob), "domain_authority") {
		t.Errorf("blob = %s", blob)
	}
}

func TestSEORankRejectsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance page</html>")
	}))
	defer server.Close()

	client := newSEOClient(server.URL, 5)
	if _, err := client.Fetch(context.Background(), "https://example.com/page"); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestSEORankBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newSEOClient(server.URL, 2)
	ctx := context.Background()

	// Two consecutive failures trip the breaker.
	for i := 0; i < 2; i++ {
		_, err := client.Fetch(ctx, "https://example.com/page")
		if err == nil {
			t.Fatalf("call %d: expected provider error", i)
		}
		if errors.Is(err, ErrSEOUnavailable) {
			t.Fatalf("call %d: breaker opened too early", i)
		}
	}

	// The open breaker short-circuits without hitting the provider.
	before := hits.Load()
	_, err := client.Fetch(ctx, "https://example.com/page")
	if !errors.Is(err, ErrSEOUnavailable) {
		t.Fatalf("expected ErrSEOUnavailable, got %v", err)
	}
	if hits.Load() != before {
		t.Error("open breaker must not reach the provider")
	}
}

func TestSEORankUnconfigured(t *testing.T) {
	client := NewSEORankClient(common.SEORankAdapterConfig{}, arbor.NewLogger())
	if _, err := client.Fetch(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error when endpoint missing")
	}
}
