package invidious

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/snapetech/streamrefresh/internal/source"
)

// resolver looks for a live video id on one instance. It returns "" with a
// nil error when the instance answered but nothing is live.
type resolver func(ctx context.Context, inst, channel string) (string, error)

// LiveVideoID finds the channel's current live video. For each instance the
// videos API, the channel API and the channel HTML page are tried in turn.
func (c *Client) LiveVideoID(ctx context.Context, channel string) (string, error) {
	resolvers := []struct {
		name string
		fn   resolver
	}{
		{"videos", c.fromVideosAPI},
		{"channel", c.fromChannelAPI},
		{"page", c.fromChannelPage},
	}
	for _, inst := range c.Instances {
		for _, r := range resolvers {
			id, err := r.fn(ctx, inst, channel)
			if err != nil {
				c.logf("invidious: %s %s lookup for %s: %v", inst, r.name, channel, err)
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				continue
			}
			if id != "" {
				c.logf("invidious: live video %s for %s via %s %s", id, channel, inst, r.name)
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", channel, source.ErrNoLiveStream)
}

// channelPath accepts a UC… channel id, an @handle or a bare handle.
func channelPath(channel string) string {
	channel = strings.TrimSpace(channel)
	if strings.HasPrefix(channel, "UC") {
		return url.PathEscape(channel)
	}
	return "@" + url.PathEscape(strings.TrimPrefix(channel, "@"))
}

func (c *Client) fromVideosAPI(ctx context.Context, inst, channel string) (string, error) {
	body, err := c.Req.GetText(ctx, inst+"/api/v1/channels/"+channelPath(channel)+"/videos")
	if err != nil {
		return "", err
	}
	videos := gjson.Parse(body)
	if !videos.IsArray() {
		videos = videos.Get("videos")
	}
	for _, v := range videos.Array() {
		if v.Get("liveNow").Bool() || (v.Get("lengthSeconds").Exists() && v.Get("lengthSeconds").Int() == 0) {
			if id := v.Get("videoId").String(); id != "" {
				return id, nil
			}
		}
	}
	return "", nil
}

func (c *Client) fromChannelAPI(ctx context.Context, inst, channel string) (string, error) {
	body, err := c.Req.GetText(ctx, inst+"/api/v1/channels/"+channelPath(channel))
	if err != nil {
		return "", err
	}
	for _, v := range gjson.Get(body, "latestVideos").Array() {
		if v.Get("liveNow").Bool() || strings.Contains(strings.ToUpper(v.Get("title").String()), "LIVE") {
			if id := v.Get("videoId").String(); id != "" {
				return id, nil
			}
		}
	}
	return "", nil
}

func (c *Client) fromChannelPage(ctx context.Context, inst, channel string) (string, error) {
	body, err := c.Req.GetText(ctx, inst+"/channel/"+channelPath(channel))
	if err != nil {
		return "", err
	}
	if id := liveIDFromHTML(body); id != "" {
		return id, nil
	}
	return liveIDFromCards(body), nil
}

var watchRe = regexp.MustCompile(`^/watch\?v=([A-Za-z0-9_-]{11})`)

// liveIDFromHTML returns the first /watch?v= link whose text starts with
// "live" (any case).
func liveIDFromHTML(page string) string {
	z := html.NewTokenizer(strings.NewReader(page))
	var current string // video id of the open anchor
	var text strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, hasAttr := z.TagName()
			if string(tn) != "a" {
				continue
			}
			if depth > 0 {
				depth++
				continue
			}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) != "href" {
					continue
				}
				if m := watchRe.FindStringSubmatch(string(v)); m != nil {
					current = m[1]
					depth = 1
					text.Reset()
				}
			}
		case html.TextToken:
			if depth > 0 {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			if string(tn) != "a" || depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(text.String())), "live") {
					return current
				}
				current = ""
			}
		}
	}
}

var videoCardRe = regexp.MustCompile(`data-video-id="([A-Za-z0-9_-]{11})"`)

// liveIDFromCards returns the first data-video-id card carrying a LIVE badge
// before the next card starts.
func liveIDFromCards(page string) string {
	locs := videoCardRe.FindAllStringSubmatchIndex(page, -1)
	for i, loc := range locs {
		end := len(page)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if strings.Contains(page[loc[1]:end], "LIVE") {
			return page[loc[2]:loc[3]]
		}
	}
	return ""
}
