package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// SearchClient talks to a SERP-style HTTP API and returns the organic result
// URLs for a query. The provider is configured by endpoint and API key; the
// response contract is the common `organic_results` array.
type SearchClient struct {
	config common.SearchAdapterConfig
	client *http.Client
	logger arbor.ILogger
}

// NewSearchClient creates the search adapter.
func NewSearchClient(config common.SearchAdapterConfig, logger arbor.ILogger) *SearchClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SearchClient{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// serpReply is the subset of the provider response the adapter reads.
type serpReply struct {
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
}

// Search returns result URLs for one query, in provider rank order.
func (s *SearchClient) Search(ctx context.Context, query interfaces.SearchQuery) ([]string, error) {
	if s.config.Endpoint == "" {
		return nil, fmt.Errorf("search adapter not configured")
	}

	params := url.Values{}
	params.Set("q", query.Query)
	params.Set("api_key", s.config.APIKey)

	engine := query.Engine
	if engine == "" {
		engine = s.config.Engine
	}
	if engine != "" {
		params.Set("engine", engine)
	}
	if query.Language != "" {
		params.Set("hl", query.Language)
	}
	if query.DateFrom != "" {
		params.Set("date_from", query.DateFrom)
	}
	if query.DateTo != "" {
		params.Set("date_to", query.DateTo)
	}
	if query.Window > 0 {
		params.Set("num", strconv.Itoa(query.Window))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: status %d", resp.StatusCode)
	}

	var reply serpReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode search reply: %w", err)
	}

	urls := make([]string, 0, len(reply.OrganicResults))
	for _, result := range reply.OrganicResults {
		if result.Link != "" {
			urls = append(urls, result.Link)
		}
	}

	s.logger.Debug().
		Str("query", query.Query).
		Int("results", len(urls)).
		Msg("Search expansion complete")

	return urls, nil
}
