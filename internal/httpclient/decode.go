package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// DecodingTransport advertises brotli and gzip and decodes either encoding
// before the caller sees the body. Several mirrors only compress with br, and
// setting Accept-Encoding by hand disables net/http's own gzip handling, so
// both are handled here.
type DecodingTransport struct {
	Base http.RoundTripper
}

// NewDecodingTransport wraps base (http.DefaultTransport when nil).
func NewDecodingTransport(base http.RoundTripper) *DecodingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DecodingTransport{Base: base}
}

func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Header.Get("Range") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		resp.Body = &decodedBody{Reader: brotli.NewReader(resp.Body), orig: resp.Body}
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &decodedBody{Reader: zr, orig: resp.Body}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	orig io.ReadCloser
}

func (b *decodedBody) Close() error { return b.orig.Close() }
