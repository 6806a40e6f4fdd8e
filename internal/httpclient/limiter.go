package httpclient

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per upstream host. Public mirrors ban clients
// that burst through channel pages and API calls back to back, so every
// request to the same scheme+host waits for its own token bucket.
//
//	if err := lim.Wait(ctx, reqURL); err != nil { ... }
type HostLimiter struct {
	mu    sync.Mutex
	lims  map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewHostLimiter allows rps requests per second per host with the given burst.
// rps <= 0 disables limiting.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		lims:  make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// Wait blocks until a request to rawURL's host may proceed.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil {
		return nil
	}
	return h.limiterFor(rawURL).Wait(ctx)
}

func (h *HostLimiter) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.lims[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.lims[host] = l
	}
	return l
}
