package browser

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks returns the absolute hrefs of doc's anchors that contain
// substr, in document order without duplicates.
func ExtractLinks(doc, baseURL, substr string) []string {
	base, _ := url.Parse(baseURL)
	var out []string
	seen := map[string]bool{}
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tn, hasAttr := z.TagName()
		if string(tn) != "a" {
			continue
		}
		for hasAttr {
			var k, v []byte
			k, v, hasAttr = z.TagAttr()
			if string(k) != "href" || !strings.Contains(string(v), substr) {
				continue
			}
			href := string(v)
			if base != nil {
				if ref, err := url.Parse(href); err == nil {
					href = base.ResolveReference(ref).String()
				}
			}
			if !seen[href] {
				seen[href] = true
				out = append(out, href)
			}
		}
	}
}

// MatchPlaylist returns a matcher for .m3u8 request URLs, optionally only
// those whose URL contains host.
func MatchPlaylist(host string) func(string) bool {
	return func(u string) bool {
		return strings.Contains(u, ".m3u8") && (host == "" || strings.Contains(u, host))
	}
}

// EpisodeName is the last path element of link without ".html".
func EpisodeName(link string) string {
	p := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.TrimSuffix(path.Base(strings.TrimSuffix(p, "/")), ".html")
}
