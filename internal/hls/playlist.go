// Package hls reorders and synthesizes HLS multivariant playlists.
//
// The transforms here are plain text operations: variant blocks are moved as
// opaque groups of lines and no line is ever rewritten.
package hls

import (
	"fmt"
	"strings"
)

const (
	// Marker is the first line of every playlist.
	Marker = "#EXTM3U"
	// StreamInf starts a variant block.
	StreamInf = "#EXT-X-STREAM-INF"
)

// Blocks splits playlist text into variant blocks. A block starts at a
// StreamInf line and ends at the first non-empty line that is not a tag or
// comment (the media reference, kept in the block). Marker lines and anything
// before the first StreamInf line are not part of any block. An unterminated
// trailing block is returned as-is.
func Blocks(text string) [][]string {
	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, Marker):
			continue
		case strings.HasPrefix(line, StreamInf):
			if len(cur) > 0 {
				blocks = append(blocks, cur)
			}
			cur = []string{line}
		case len(cur) > 0:
			cur = append(cur, line)
			if line != "" && !strings.HasPrefix(line, "#") {
				blocks = append(blocks, cur)
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// Reorder returns the playlist with its variant blocks in reverse declared
// order, so the variant the upstream lists last (its highest bandwidth) comes
// first. Empty input gives "". Content outside variant blocks is dropped, so
// a playlist without variants reorders to the bare marker line.
func Reorder(text string) string {
	if text == "" {
		return ""
	}
	blocks := Blocks(text)
	out := []string{Marker}
	for i := len(blocks) - 1; i >= 0; i-- {
		out = append(out, blocks[i]...)
	}
	return strings.Join(out, "\n")
}

// Valid reports whether text looks like a playlist at all.
func Valid(text string) bool {
	return strings.Contains(text, Marker)
}

// Variant describes the single variant written by Synthesize.
type Variant struct {
	Bandwidth  int
	Resolution string // e.g. "1280x720"; omitted when empty
}

// DefaultVariant matches what mirrors usually hand out for a combined
// audio+video stream.
var DefaultVariant = Variant{Bandwidth: 2000000, Resolution: "1280x720"}

// Synthesize wraps a direct media URL in a one-variant master playlist, for
// sources that yield a stream URL instead of a manifest.
func Synthesize(mediaURL string, v Variant) string {
	if v.Bandwidth <= 0 {
		v.Bandwidth = DefaultVariant.Bandwidth
	}
	inf := fmt.Sprintf("%s:PROGRAM-ID=1,BANDWIDTH=%d", StreamInf, v.Bandwidth)
	if v.Resolution != "" {
		inf += ",RESOLUTION=" + v.Resolution
	}
	return Marker + "\n#EXT-X-VERSION:3\n" + inf + "\n" + mediaURL + "\n"
}
