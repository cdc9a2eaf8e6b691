package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

// ErrSEOUnavailable signals the provider circuit is open. Batch runs count
// the remaining expressions as adapter_unavailable and stop early instead of
// hammering a failing provider.
var ErrSEOUnavailable = errors.New("seo provider unavailable")

// SEORankClient fetches the opaque metric blob for a URL from the configured
// provider. Calls are paced by a fixed inter-request delay and guarded by a
// circuit breaker that opens after consecutive failures.
type SEORankClient struct {
	config  common.SEORankAdapterConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	pacer   <-chan time.Time
	logger  arbor.ILogger
}

// NewSEORankClient creates the adapter.
func NewSEORankClient(config common.SEORankAdapterConfig, logger arbor.ILogger) *SEORankClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	threshold := config.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "seorank",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("adapter", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SEO breaker state change")
		},
	})

	var pacer <-chan time.Time
	if config.RequestDelay > 0 {
		pacer = time.Tick(config.RequestDelay)
	}

	return &SEORankClient{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		pacer:   pacer,
		logger:  logger,
	}
}

// Fetch returns the raw provider JSON for one URL. The blob is stored as-is;
// the engine never interprets individual metrics.
func (s *SEORankClient) Fetch(ctx context.Context, pageURL string) (json.RawMessage, error) {
	if s.config.Endpoint == "" {
		return nil, fmt.Errorf("seorank adapter not configured")
	}

	if s.pacer != nil {
		select {
		case <-s.pacer:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, pageURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrSEOUnavailable
		}
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (s *SEORankClient) fetch(ctx context.Context, pageURL string) (json.RawMessage, error) {
	endpoint := strings.TrimRight(s.config.Endpoint, "/")
	target := fmt.Sprintf("%s/%s/%s", endpoint, url.PathEscape(s.config.APIKey), url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build seorank request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seorank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seorank request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read seorank reply: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("seorank reply is not valid json")
	}
	return json.RawMessage(body), nil
}
