package browser

import (
	"context"
	"fmt"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/hls"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/source"
)

// Source serves "page" targets: the id is a player page, and the manifest is
// whatever .m3u8 the page requests first.
type Source struct {
	Opts Options
	Req  *httpclient.Requester
	Host string // only capture URLs containing this; "" = any

	open func(ctx context.Context) (Browser, func(), error)
}

func (s *Source) Name() string { return "browser" }

func (s *Source) Fetch(ctx context.Context, t config.Target) (string, error) {
	if t.Kind() != config.KindPage {
		return "", source.ErrUnsupported
	}
	open := s.open
	if open == nil {
		open = func(ctx context.Context) (Browser, func(), error) {
			sess, err := NewSession(ctx, s.Opts)
			if err != nil {
				return nil, nil, err
			}
			return sess, sess.Close, nil
		}
	}
	b, closeBrowser, err := open(ctx)
	if err != nil {
		return "", fmt.Errorf("browser: %w", err)
	}
	defer closeBrowser()

	u, err := b.Capture(ctx, t.ID, MatchPlaylist(s.Host))
	if err != nil {
		return "", fmt.Errorf("browser: %w", err)
	}
	body, err := s.Req.GetText(ctx, u)
	if err != nil {
		return "", fmt.Errorf("browser: %w", err)
	}
	if !hls.Valid(body) {
		return hls.Synthesize(u, hls.DefaultVariant), nil
	}
	return body, nil
}
