// Package source defines where manifests come from. A Source turns one target
// into playlist text; a Chain tries several sources in order.
package source

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/retry"
)

// Failure causes. Reason maps them to summary labels.
var (
	ErrUnsupported        = errors.New("target type not supported by source")
	ErrNoLiveStream       = errors.New("no live stream found")
	ErrNoStreamFormats    = errors.New("no stream formats found")
	ErrInvalidManifest    = errors.New("response is not an m3u8 playlist")
	ErrAllInstancesFailed = errors.New("all instances failed")
)

// Source yields playlist text for a target, or an error. Empty text with a
// nil error means "nothing this time".
type Source interface {
	Name() string
	Fetch(ctx context.Context, t config.Target) (string, error)
}

// Chain tries each source in order and returns the first non-empty result.
// Sources that do not handle the target's type are skipped.
type Chain []Source

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, s := range c {
		names = append(names, s.Name())
	}
	return strings.Join(names, ">")
}

func (c Chain) Fetch(ctx context.Context, t config.Target) (string, error) {
	var lastErr error
	for _, s := range c {
		content, err := s.Fetch(ctx, t)
		if err == nil && content != "" {
			return content, nil
		}
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		lastErr = err
	}
	if lastErr == nil && len(c) > 0 {
		return "", ErrUnsupported
	}
	return "", lastErr
}

// Reason returns the summary label for a failed fetch.
func Reason(err error) string {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		if ex.Last == nil {
			return "EmptyResult"
		}
		err = ex.Last
	}
	var se *httpclient.StatusError
	var ne net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Unsupported"
	case errors.Is(err, ErrNoLiveStream):
		return "NoLiveStream"
	case errors.Is(err, ErrNoStreamFormats):
		return "NoStreamFormats"
	case errors.Is(err, ErrInvalidManifest):
		return "InvalidManifest"
	case errors.Is(err, ErrAllInstancesFailed):
		return "AllInstancesFailed"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.As(err, &ne) && ne.Timeout():
		return "Timeout"
	case errors.As(err, &se):
		return "HTTPStatus"
	}
	return "Error"
}
