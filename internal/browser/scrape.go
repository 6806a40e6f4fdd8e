package browser

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/snapetech/streamrefresh/internal/output"
)

// ScrapeOptions configures Scrape. Zero values take the defaults below.
type ScrapeOptions struct {
	CategoryURL string
	Substring   string // anchor href filter; default "bolum-izle"
	Limit       int    // episodes visited; default 15
	Host        string // capture filter, e.g. "video.twimg.com"
	Output      string // .m3u path; "" = don't write
}

// Episode is one captured stream.
type Episode struct {
	Name string
	URL  string
}

// Scrape collects episode links from the category page, visits up to Limit of
// them and captures each one's playlist request. Episodes with no capture are
// logged and skipped.
func Scrape(ctx context.Context, b Browser, o ScrapeOptions) ([]Episode, error) {
	if o.Substring == "" {
		o.Substring = "bolum-izle"
	}
	if o.Limit <= 0 {
		o.Limit = 15
	}
	links, err := b.Links(ctx, o.CategoryURL, o.Substring)
	if err != nil {
		return nil, err
	}
	log.Printf("scrape: %d episode links found", len(links))
	if len(links) > o.Limit {
		links = links[:o.Limit]
	}
	match := MatchPlaylist(o.Host)
	var eps []Episode
	for _, link := range links {
		if ctx.Err() != nil {
			return eps, ctx.Err()
		}
		log.Printf("scrape: %s", link)
		u, err := b.Capture(ctx, link, match)
		if err != nil {
			log.Printf("scrape: not found: %v", err)
			continue
		}
		eps = append(eps, Episode{Name: EpisodeName(link), URL: u})
	}
	if o.Output != "" {
		if err := output.Write(o.Output, EpisodeList(eps)); err != nil {
			return eps, fmt.Errorf("write %s: %w", o.Output, err)
		}
	}
	return eps, nil
}

// EpisodeList renders eps as an extended M3U.
func EpisodeList(eps []Episode) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, e := range eps {
		fmt.Fprintf(&b, "#EXTINF:-1, %s\n%s\n", e.Name, e.URL)
	}
	return b.String()
}
