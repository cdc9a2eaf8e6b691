package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

// FetchResult is the observable outcome of one fetch: the final URL after
// redirects, the status, headers and the bounded body.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Elapsed     time.Duration
}

// Service issues polite HTTP GETs: a global concurrency semaphore, per-host
// pacing, bounded body reads and the retry policy. Any HTTP response, 200
// or not, is a successful fetch from the transport's point of view; the
// caller decides what a 404 means.
type Service struct {
	config  common.FetcherConfig
	client  *http.Client
	limiter *HostLimiter
	retry   *RetryPolicy
	global  chan struct{}
	logger  arbor.ILogger
}

// NewService creates a fetcher from config.
func NewService(config common.FetcherConfig, logger arbor.ILogger) *Service {
	s := &Service{
		config:  config,
		limiter: NewHostLimiter(config.MinDelayPerHost, config.MaxConcurrentPerHost),
		retry:   NewRetryPolicy(config),
		global:  make(chan struct{}, config.MaxConcurrentGlobal),
		logger:  logger,
	}
	s.client = &http.Client{
		CheckRedirect: s.checkRedirect,
	}
	return s
}

func (s *Service) checkRedirect(req *http.Request, via []*http.Request) error {
	if !s.config.FollowRedirects {
		return http.ErrUseLastResponse
	}
	if len(via) >= s.config.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", s.config.MaxRedirects)
	}
	return nil
}

// Fetch GETs the URL under the politeness budgets. A received response is
// returned with nil error whatever its status; a *FetchError is returned
// only when no usable response was obtained.
func (s *Service) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &FetchError{Kind: ErrKindInvalidURL, URL: rawURL, Err: err}
	}

	select {
	case s.global <- struct{}{}:
		defer func() { <-s.global }()
	case <-ctx.Done():
		return nil, classify(rawURL, ctx.Err())
	}

	var result *FetchResult
	var lastErr error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		result, lastErr = s.attempt(ctx, rawURL)

		status := 0
		if result != nil {
			status = result.StatusCode
		}
		if !s.retry.ShouldRetry(attempt, status, lastErr) {
			break
		}
		if err := s.retry.Sleep(ctx, attempt, s.logger, status, lastErr); err != nil {
			return nil, classify(rawURL, err)
		}
	}

	if lastErr != nil {
		s.logger.Debug().
			Str("url", rawURL).
			Err(lastErr).
			Msg("Fetch failed")
		return nil, lastErr
	}

	s.logger.Debug().
		Str("url", rawURL).
		Int("status", result.StatusCode).
		Int("bytes", len(result.Body)).
		Dur("elapsed", result.Elapsed).
		Msg("Fetched")
	return result, nil
}

func (s *Service) attempt(ctx context.Context, rawURL string) (*FetchResult, error) {
	release, err := s.limiter.Acquire(ctx, rawURL)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer release()

	attemptCtx := ctx
	var cancel context.CancelFunc
	if s.config.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrKindInvalidURL, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	if s.config.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", s.config.AcceptLanguage)
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	// Read one byte past the cap to distinguish exactly-at-cap from over.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBytes+1))
	if err != nil {
		return nil, classify(rawURL, err)
	}
	if int64(len(body)) > s.config.MaxBytes {
		return nil, &FetchError{Kind: ErrKindTooLarge, URL: rawURL}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Elapsed:     time.Since(started),
	}, nil
}
