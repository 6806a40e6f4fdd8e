package source

import (
	"context"
	"fmt"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/hls"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/safeurl"
)

// Direct fetches "url" targets: the id is the playlist URL itself.
type Direct struct {
	Req *httpclient.Requester
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Fetch(ctx context.Context, t config.Target) (string, error) {
	if t.Kind() != config.KindURL {
		return "", ErrUnsupported
	}
	if !safeurl.IsHTTPOrHTTPS(t.ID) {
		return "", fmt.Errorf("direct: %w: %q is not an http(s) URL", ErrUnsupported, t.ID)
	}
	body, err := d.Req.GetText(ctx, t.ID)
	if err != nil {
		return "", fmt.Errorf("direct: %w", err)
	}
	if !hls.Valid(body) {
		return "", fmt.Errorf("direct %s: %w", t.ID, ErrInvalidManifest)
	}
	return body, nil
}
