package invidious

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/snapetech/streamrefresh/internal/hls"
)

var heightRe = regexp.MustCompile(`(\d{3,4})p`)

// height returns the vertical resolution a format advertises, from
// "resolution" / "qualityLabel" ("720p", "1080p60") or "size" ("1280x720").
func height(f gjson.Result) int {
	for _, key := range []string{"resolution", "qualityLabel"} {
		if m := heightRe.FindStringSubmatch(f.Get(key).String()); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	if _, h, ok := strings.Cut(f.Get("size").String(), "x"); ok {
		n, _ := strconv.Atoi(h)
		return n
	}
	return 0
}

// bestFormatStream picks the muxed stream with the highest resolution.
func bestFormatStream(formats []gjson.Result) (gjson.Result, bool) {
	var best gjson.Result
	found := false
	for _, f := range formats {
		if f.Get("url").String() == "" {
			continue
		}
		if !found || height(f) > height(best) {
			best, found = f, true
		}
	}
	return best, found
}

// bestAdaptiveVideo picks the video-only adaptive format with the highest
// frame rate, then resolution.
func bestAdaptiveVideo(formats []gjson.Result) (gjson.Result, bool) {
	var best gjson.Result
	found := false
	for _, f := range formats {
		if f.Get("url").String() == "" || !strings.HasPrefix(f.Get("type").String(), "video") {
			continue
		}
		if !found {
			best, found = f, true
			continue
		}
		fps, bestFPS := f.Get("fps").Int(), best.Get("fps").Int()
		if fps > bestFPS || (fps == bestFPS && height(f) > height(best)) {
			best = f
		}
	}
	return best, found
}

// variantOf fills the STREAM-INF attributes from a format, falling back to
// hls.DefaultVariant for anything missing.
func variantOf(f gjson.Result) hls.Variant {
	v := hls.DefaultVariant
	if b, err := strconv.Atoi(f.Get("bitrate").String()); err == nil && b > 0 {
		v.Bandwidth = b
	}
	if size := f.Get("size").String(); strings.Contains(size, "x") {
		v.Resolution = size
	}
	return v
}
