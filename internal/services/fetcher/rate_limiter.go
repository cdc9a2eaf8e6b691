package fetcher

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces politeness per host: a minimum delay between
// requests and a concurrency cap. It is the single shared mutable structure
// the fetcher needs, process-global so concurrent jobs share budgets.
type HostLimiter struct {
	mu       sync.Mutex
	hosts    map[string]*hostState
	minDelay time.Duration
	maxConc  int
}

type hostState struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// NewHostLimiter creates a limiter with the given per-host minimum delay
// and concurrency cap.
func NewHostLimiter(minDelay time.Duration, maxConcurrent int) *HostLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &HostLimiter{
		hosts:    make(map[string]*hostState),
		minDelay: minDelay,
		maxConc:  maxConcurrent,
	}
}

// Acquire blocks until the host admits another request. The returned
// release function must be called when the request finishes.
func (l *HostLimiter) Acquire(ctx context.Context, rawURL string) (func(), error) {
	host := HostKey(rawURL)
	state := l.state(host)

	select {
	case state.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := state.limiter.Wait(ctx); err != nil {
		<-state.slots
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-state.slots })
	}
	return release, nil
}

func (l *HostLimiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.hosts[host]
	if !ok {
		var limiter *rate.Limiter
		if l.minDelay > 0 {
			limiter = rate.NewLimiter(rate.Every(l.minDelay), 1)
		} else {
			limiter = rate.NewLimiter(rate.Inf, 1)
		}
		state = &hostState{
			limiter: limiter,
			slots:   make(chan struct{}, l.maxConc),
		}
		l.hosts[host] = state
	}
	return state
}

// HostKey normalizes a URL to its pacing bucket: lowercase host, port and
// leading www stripped.
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
