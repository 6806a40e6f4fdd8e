package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when to retry after a response. Used by DoWithRetry.
type RetryPolicy struct {
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry once.
	Retry429   bool
	Max429Wait time.Duration
	// Retry5xx: on 5xx, wait Backoff5xx and retry once.
	Retry5xx   bool
	Backoff5xx time.Duration
}

// DefaultRetryPolicy retries 429 (cap 30s) and 5xx (1s backoff) once.
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 30 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 1 * time.Second,
}

// NoRetry never retries; the target-level harness does the retrying.
var NoRetry = RetryPolicy{}

// DoWithRetry performs req and on 429/5xx (when policy allows) waits and retries once.
// Only body-less requests are retried. 4xx other than 429 are returned as-is.
// Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	code := resp.StatusCode
	var wait time.Duration
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
	case code >= 500 && policy.Retry5xx:
		wait = policy.Backoff5xx
	default:
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}
	req2 := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		req2.Body = body
	}
	return client.Do(req2)
}

// StatusError is returned by GetText for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// Requester bundles what every upstream GET needs: a client, a user agent,
// optional extra headers and a per-host limiter.
type Requester struct {
	Client    *http.Client
	UserAgent string
	Header    http.Header
	Limiter   *HostLimiter
	Policy    RetryPolicy
	MaxBody   int64 // 0 = 32 MiB
}

// GetText fetches rawURL and returns the body as text. Non-200 responses are
// a *StatusError.
func (r *Requester) GetText(ctx context.Context, rawURL string) (string, error) {
	b, err := r.GetBytes(ctx, rawURL)
	return string(b), err
}

// GetBytes is GetText without the string conversion.
func (r *Requester) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := r.get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return r.readBody(resp)
}

func (r *Requester) get(ctx context.Context, rawURL string, extra http.Header) (*http.Response, error) {
	if err := r.Limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}
	for k, v := range extra {
		req.Header[k] = v
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	return DoWithRetry(ctx, r.Client, req, r.Policy)
}

func (r *Requester) readBody(resp *http.Response) ([]byte, error) {
	max := r.MaxBody
	if max <= 0 {
		max = 32 << 20
	}
	return io.ReadAll(io.LimitReader(resp.Body, max))
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
