package fetcher

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
)

// RetryPolicy defines retry behavior with exponential backoff. The status
// list is the complete retry map: statuses on it retry, everything else is
// a permanent outcome for the attempt.
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes map[int]bool
}

// NewRetryPolicy builds the policy from fetcher config.
func NewRetryPolicy(config common.FetcherConfig) *RetryPolicy {
	retryable := make(map[int]bool, len(config.RetryableStatusCodes))
	for _, code := range config.RetryableStatusCodes {
		retryable[code] = true
	}
	return &RetryPolicy{
		MaxAttempts:          config.RetryAttempts,
		InitialBackoff:       config.BackoffBase,
		MaxBackoff:           config.BackoffMax,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: retryable,
	}
}

// ShouldRetry checks whether another attempt is allowed for this outcome.
// attempt is zero-based.
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}

	if err != nil {
		if fe, ok := err.(*FetchError); ok {
			return fe.IsTransient()
		}
		return false
	}

	return p.RetryableStatusCodes[statusCode]
}

// CalculateBackoff returns the delay before the next attempt, exponential
// with ±25% jitter, capped at MaxBackoff.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Sleep waits out the backoff, honoring cancellation.
func (p *RetryPolicy) Sleep(ctx context.Context, attempt int, logger arbor.ILogger, statusCode int, err error) error {
	backoff := p.CalculateBackoff(attempt)
	if logger != nil {
		logger.Debug().
			Int("attempt", attempt+1).
			Int("status_code", statusCode).
			Err(err).
			Dur("backoff", backoff).
			Msg("Retrying after backoff")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
