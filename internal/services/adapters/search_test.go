package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

func TestSearchReturnsOrganicResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "renewable energy" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("api_key") != "secret" {
			t.Errorf("api_key = %q", q.Get("api_key"))
		}
		if q.Get("engine") != "google" {
			t.Errorf("engine = %q", q.Get("engine"))
		}
		if q.Get("hl") != "en" {
			t.Errorf("hl = %q", q.Get("hl"))
		}
		if q.Get("num") != "10" {
			t.Errorf("num = %q", q.Get("num"))
		}
		fmt.Fprint(w, `{"organic_results":[
			{"link":"https://example.com/one"},
			{"link":"https://example.org/two"},
			{"link":""},
			{"link":"https://example.net/three"}
		]}`)
	}))
	defer server.Close()

	client := NewSearchClient(common.SearchAdapterConfig{
		Endpoint: server.URL,
		APIKey:   "secret",
		Engine:   "google",
	}, arbor.NewLogger())

	urls, err := client.Search(context.Background(), interfaces.SearchQuery{
		Query:    "renewable energy",
		Language: "en",
		Window:   10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{
		"https://example.com/one",
		"https://example.org/two",
		"https://example.net/three",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("urls = %v, want %v", urls, want)
	}
}

func TestSearchProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewSearchClient(common.SearchAdapterConfig{Endpoint: server.URL}, arbor.NewLogger())
	if _, err := client.Search(context.Background(), interfaces.SearchQuery{Query: "x"}); err == nil {
		t.Fatal("expected error on provider failure")
	}
}

func TestSearchUnconfigured(t *testing.T) {
	client := NewSearchClient(common.SearchAdapterConfig{}, arbor.NewLogger())
	if _, err := client.Search(context.Background(), interfaces.SearchQuery{Query: "x"}); err == nil {
		t.Fatal("expected error when endpoint missing")
	}
}
