// Package provider probes Invidious instances so refreshes can try the
// healthy, fast ones first.
package provider

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Result is the outcome of probing one instance.
type Result struct {
	URL        string
	Status     Status
	StatusCode int
	LatencyMs  int64
	Version    string // software.version from /api/v1/stats
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusNotAPI     Status = "not_api" // 200 but not an Invidious stats document
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// ProbeOne fetches <instance>/api/v1/stats with a short timeout and classifies the result.
func ProbeOne(ctx context.Context, instance string, client *http.Client) Result {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	instance = strings.TrimSuffix(instance, "/")
	res := Result{URL: instance}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/api/v1/stats", nil)
	if err != nil {
		res.Status = StatusError
		return res
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; rv:109.0) Gecko/20100101 Firefox/115.0")
	resp, err := client.Do(req)
	res.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline") {
			res.Status = StatusTimeout
		} else {
			res.Status = StatusError
		}
		return res
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	res.StatusCode = resp.StatusCode

	// Cloudflare only when sure: Server header or a challenge page.
	server := strings.ToLower(strings.TrimSpace(resp.Header.Get("Server")))
	preview := strings.ToLower(string(body[:min(len(body), 512)]))
	challenge := strings.Contains(preview, "checking your browser") ||
		strings.Contains(preview, "cf-bypass") ||
		strings.Contains(preview, "ray id")
	switch code := resp.StatusCode; {
	case (code == 403 || code == 503 || code == 520 || code == 521 || code == 524) && (challenge || server == "cloudflare"):
		res.Status = StatusCloudflare
	case server == "cloudflare" && code != http.StatusOK:
		res.Status = StatusCloudflare
	case code != http.StatusOK:
		res.Status = StatusBadStatus
	case !gjson.ValidBytes(body) || !gjson.GetBytes(body, "software.name").Exists():
		res.Status = StatusNotAPI
	default:
		res.Status = StatusOK
		res.Version = gjson.GetBytes(body, "software.version").String()
	}
	return res
}

// ProbeAll probes each instance and returns results sorted by: OK first (by latency), then non-OK.
func ProbeAll(ctx context.Context, instances []string, client *http.Client) []Result {
	out := make([]Result, 0, len(instances))
	for _, u := range instances {
		if u == "" {
			continue
		}
		out = append(out, ProbeOne(ctx, u, client))
	}
	sort.SliceStable(out, func(i, j int) bool {
		okI := out[i].Status == StatusOK
		okJ := out[j].Status == StatusOK
		if okI != okJ {
			return okI
		}
		if okI {
			return out[i].LatencyMs < out[j].LatencyMs
		}
		return false
	})
	return out
}

// Ranked returns every instance, healthy ones first by latency. Unhealthy
// instances keep their configured order at the end so they remain a last resort.
func Ranked(ctx context.Context, instances []string, client *http.Client) []string {
	results := ProbeAll(ctx, instances, client)
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.URL)
	}
	return out
}
