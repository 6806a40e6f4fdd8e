// Package metrics holds the Prometheus collectors for refresh runs and the
// local proxy. Each run gets its own registry so a textfile only ever holds
// that run's numbers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run collects per-target outcomes of one refresh run.
type Run struct {
	reg *prometheus.Registry

	Targets       *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	Bytes         prometheus.Counter
	LastRun       prometheus.Gauge
}

// NewRun returns collectors registered on a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		reg: reg,
		Targets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_refresh_targets_total",
			Help: "Targets processed, by result",
		}, []string{"result"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_refresh_failures_total",
			Help: "Failed targets, by reason",
		}, []string{"reason"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_refresh_fetch_duration_seconds",
			Help:    "Time to fetch one target including retries",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		Bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_refresh_written_bytes_total",
			Help: "Bytes of playlist written",
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "stream_refresh_last_run_timestamp_seconds",
			Help: "Unix time the run finished",
		}),
	}
}

// Registry exposes the run's registry, e.g. for tests.
func (r *Run) Registry() *prometheus.Registry { return r.reg }

// Observe records one target. reason is ignored for successes.
func (r *Run) Observe(ok bool, reason string, took time.Duration, bytes int) {
	r.FetchDuration.Observe(took.Seconds())
	if ok {
		r.Targets.WithLabelValues("ok").Inc()
		r.Bytes.Add(float64(bytes))
		return
	}
	r.Targets.WithLabelValues("failed").Inc()
	r.Failures.WithLabelValues(reason).Inc()
}

// WriteTextfile stamps LastRun and writes the registry in node-exporter
// textfile format.
func (r *Run) WriteTextfile(path string, finished time.Time) error {
	r.LastRun.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, r.reg)
}

// Proxy collects request counts for the local edge proxy.
type Proxy struct {
	Requests    *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewProxy registers the proxy collectors on reg.
func NewProxy(reg prometheus.Registerer) *Proxy {
	f := promauto.With(reg)
	return &Proxy{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_refresh_proxy_requests_total",
			Help: "Proxy requests, by route and status code",
		}, []string{"route", "code"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_refresh_proxy_cache_hits_total",
			Help: "Rewritten playlists served from cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_refresh_proxy_cache_misses_total",
			Help: "Rewritten playlists fetched upstream",
		}),
	}
}
