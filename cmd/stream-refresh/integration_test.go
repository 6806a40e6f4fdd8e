// Integration tests hit real Invidious mirrors and, when WORKER_URL is set, a
// deployed proxy. They skip unless STREAM_REFRESH_INTEGRATION=1 (in the
// environment or .env): go test -v -run Integration ./cmd/stream-refresh
package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/health"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/provider"
	"github.com/snapetech/streamrefresh/internal/refresh"
	"github.com/snapetech/streamrefresh/internal/retry"
)

func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, p := range []string{".env", "../.env", "../../.env"} {
		_ = config.LoadEnvFile(p)
	}
	if os.Getenv("STREAM_REFRESH_INTEGRATION") != "1" {
		t.Skip("set STREAM_REFRESH_INTEGRATION=1 to run against live services")
	}
	return config.Load()
}

func TestIntegration_probeAndRefresh(t *testing.T) {
	cfg := integrationConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ranked := provider.Ranked(ctx, cfg.Instances(), httpclient.WithTimeout(15*time.Second))
	if len(ranked) == 0 {
		t.Skip("no Invidious instance answered")
	}
	t.Logf("instances: %v", ranked)

	id := os.Getenv("STREAM_REFRESH_INTEGRATION_CHANNEL")
	if id == "" {
		t.Skip("set STREAM_REFRESH_INTEGRATION_CHANNEL to a channel id or handle that is usually live")
	}
	cfg.Sources = []string{"invidious"}
	chain, err := buildChain(cfg, newRequester(cfg), ranked)
	if err != nil {
		t.Fatal(err)
	}
	r := &refresh.Runner{
		Source: chain,
		Retry:  retry.Policy{Attempts: 2, Delay: time.Second},
		Folder: t.TempDir(),
	}
	res := r.RefreshOne(ctx, config.Target{Slug: "integration", ID: id})
	if !res.OK {
		// Channels go offline; only a bad manifest is a real failure.
		if res.Reason == "InvalidManifest" {
			t.Fatalf("refresh: %s: %v", res.Reason, res.Err)
		}
		t.Skipf("refresh: %s: %v", res.Reason, res.Err)
	}
	if filepath.Base(res.Path) != "integration.m3u8" || res.Bytes == 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestIntegration_worker(t *testing.T) {
	cfg := integrationConfig(t)
	if cfg.WorkerURL == "" {
		t.Skip("WORKER_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rep, err := health.CheckWorker(ctx, httpclient.WithTimeout(10*time.Second), cfg.WorkerURL, "androstreamlivebs1.m3u8")
	if err != nil {
		t.Fatalf("check worker: %v", err)
	}
	t.Logf("worker OK: %d proxy links, first chunk %d bytes", len(rep.ProxyLinks), rep.FirstChunk)
}
