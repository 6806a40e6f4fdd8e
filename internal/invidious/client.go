// Package invidious finds YouTube live manifests through Invidious mirrors.
//
// Every lookup walks the configured instances in order and moves on when an
// instance errors, so one dead mirror only costs its timeout.
package invidious

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/hls"
	"github.com/snapetech/streamrefresh/internal/httpclient"
	"github.com/snapetech/streamrefresh/internal/source"
)

// Client is a source.Source for "channel" and "video" targets.
type Client struct {
	Instances []string // base URLs, tried in order
	Req       *httpclient.Requester
	Verbose   bool
}

// New returns a client for cfg's instances using req for every request.
func New(cfg *config.Config, req *httpclient.Requester) *Client {
	return &Client{Instances: cfg.Instances(), Req: req, Verbose: cfg.Verbose}
}

func (c *Client) Name() string { return "invidious" }

// Fetch resolves the target to a video and returns its manifest text.
func (c *Client) Fetch(ctx context.Context, t config.Target) (string, error) {
	videoID := strings.TrimSpace(t.ID)
	switch t.Kind() {
	case config.KindChannel:
		id, err := c.LiveVideoID(ctx, videoID)
		if err != nil {
			return "", err
		}
		videoID = id
	case config.KindVideo:
	default:
		return "", source.ErrUnsupported
	}
	return c.VideoManifest(ctx, videoID)
}

// VideoManifest asks each instance for the video's formats. It returns the
// upstream HLS manifest when one is advertised, otherwise a one-variant
// playlist around the best direct stream.
func (c *Client) VideoManifest(ctx context.Context, videoID string) (string, error) {
	var lastErr error
	for _, inst := range c.Instances {
		apiURL := inst + "/api/v1/videos/" + url.PathEscape(videoID)
		c.logf("invidious: fetching %s", apiURL)
		body, err := c.Req.GetText(ctx, apiURL)
		if err != nil {
			c.logf("invidious: %s failed: %v", inst, err)
			lastErr = err
			continue
		}
		if !gjson.Valid(body) {
			lastErr = fmt.Errorf("%s: response is not JSON", inst)
			continue
		}
		return c.manifestFromVideo(ctx, inst, gjson.Parse(body))
	}
	if lastErr == nil {
		lastErr = errors.New("no instances configured")
	}
	return "", fmt.Errorf("%w: %v", source.ErrAllInstancesFailed, lastErr)
}

func (c *Client) manifestFromVideo(ctx context.Context, inst string, video gjson.Result) (string, error) {
	if m3u8URL := manifestURL(inst, video); m3u8URL != "" {
		c.logf("invidious: found m3u8 URL")
		body, err := c.Req.GetText(ctx, m3u8URL)
		if err != nil {
			return "", err
		}
		if !hls.Valid(body) {
			return "", fmt.Errorf("%s: %w", m3u8URL, source.ErrInvalidManifest)
		}
		return body, nil
	}
	if f, ok := bestFormatStream(video.Get("formatStreams").Array()); ok {
		c.logf("invidious: using formatStreams %s", f.Get("qualityLabel").String())
		return hls.Synthesize(f.Get("url").String(), variantOf(f)), nil
	}
	if f, ok := bestAdaptiveVideo(video.Get("adaptiveFormats").Array()); ok {
		c.logf("invidious: using adaptive %s", f.Get("qualityLabel").String())
		return hls.Synthesize(f.Get("url").String(), variantOf(f)), nil
	}
	return "", source.ErrNoStreamFormats
}

// manifestURL returns hlsUrl, or the first format URL that is an m3u8.
// Relative URLs are resolved against the instance.
func manifestURL(inst string, video gjson.Result) string {
	candidates := []string{video.Get("hlsUrl").String()}
	for _, key := range []string{"formatStreams", "adaptiveFormats"} {
		for _, f := range video.Get(key).Array() {
			if u := f.Get("url").String(); strings.Contains(u, ".m3u8") {
				candidates = append(candidates, u)
			}
		}
	}
	for _, u := range candidates {
		if u == "" {
			continue
		}
		if strings.HasPrefix(u, "/") {
			return inst + u
		}
		return u
	}
	return ""
}

func (c *Client) logf(format string, args ...any) {
	if c.Verbose {
		log.Printf(format, args...)
	}
}
