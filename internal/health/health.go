// Package health checks a deployed playlist proxy end to end.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var proxyLinkRe = regexp.MustCompile(`/proxy/https%3A%2F%2F[^\s]+`)

// Report describes a passing check.
type Report struct {
	PlaylistURL   string
	PlaylistBytes int
	ProxyLinks    []string
	FirstChunk    int // bytes read from the first proxied URL
}

// CheckWorker fetches <workerURL>/checklist/<channel> and requires 200, an
// mpegurl content type and at least one proxied link; then it fetches the
// first proxied link and requires 200 and a non-empty first chunk.
func CheckWorker(ctx context.Context, client *http.Client, workerURL, channel string) (Report, error) {
	if workerURL == "" {
		return Report{}, fmt.Errorf("no worker URL configured")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimSuffix(workerURL, "/")
	rep := Report{PlaylistURL: base + "/checklist/" + channel}

	resp, err := get(ctx, client, rep.PlaylistURL)
	if err != nil {
		return rep, fmt.Errorf("playlist unreachable: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	resp.Body.Close()
	if err != nil {
		return rep, fmt.Errorf("read playlist: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return rep, fmt.Errorf("playlist returned HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "mpegurl") {
		return rep, fmt.Errorf("unexpected Content-Type %q", ct)
	}
	rep.PlaylistBytes = len(body)
	rep.ProxyLinks = proxyLinkRe.FindAllString(string(body), -1)
	if len(rep.ProxyLinks) == 0 {
		return rep, fmt.Errorf("playlist has no proxy links")
	}

	presp, err := get(ctx, client, base+rep.ProxyLinks[0])
	if err != nil {
		return rep, fmt.Errorf("proxy unreachable: %w", err)
	}
	defer presp.Body.Close()
	if presp.StatusCode != http.StatusOK {
		return rep, fmt.Errorf("proxy returned HTTP %d", presp.StatusCode)
	}
	chunk := make([]byte, 512)
	n, err := io.ReadAtLeast(presp.Body, chunk, 1)
	if n == 0 {
		return rep, fmt.Errorf("proxy returned an empty body: %v", err)
	}
	rep.FirstChunk = n
	return rep, nil
}

func get(ctx context.Context, client *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
