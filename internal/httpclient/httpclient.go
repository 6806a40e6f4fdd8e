package httpclient

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: NewDecodingTransport(newBaseTransport()),
	}
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
}

// Default returns the shared client used by sources, EPG and worker jobs.
// It accepts brotli and gzip responses and decodes them transparently.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and a fresh transport
// configured like Default's.
func WithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: NewDecodingTransport(newBaseTransport()),
	}
}
