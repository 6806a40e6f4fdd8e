// Package safeurl validates URLs that come from targets files, scraped pages
// or proxy requests before anything fetches them.
package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is an absolute http or https URL with a host.
// Rejects file://, ftp://, javascript: and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Unescape decodes a percent-escaped URL (as produced by url.QueryEscape or
// encodeURIComponent) and returns it only when it is http(s). A literal "+"
// stays "+", as with decodeURIComponent.
func Unescape(escaped string) (string, bool) {
	raw, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	if !IsHTTPOrHTTPS(raw) {
		return "", false
	}
	return raw, true
}
