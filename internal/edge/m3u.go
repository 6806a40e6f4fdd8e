// Package edge builds and deploys the edge playlist proxy: the aggregate
// M3U that points players at it, the script patch and upload, and a local
// rendition of the proxy for testing without the edge platform.
package edge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Channel is one entry of the aggregate playlist.
type Channel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Logo string `json:"logo,omitempty"`
}

// DefaultChannels is used when no channels file is given.
var DefaultChannels = []Channel{
	{Name: "beIN Sport 1 HD", ID: "androstreamlivebs1", Logo: "https://i.hizliresim.com/pcrhcsx.jpg"},
	{Name: "beIN Sport 2 HD", ID: "androstreamlivebs2", Logo: "https://i.hizliresim.com/pcrhcsx.jpg"},
	{Name: "beIN Sport 3 HD", ID: "androstreamlivebs3", Logo: "https://i.hizliresim.com/pcrhcsx.jpg"},
}

// LoadChannels reads a JSON array of channels. Entries without an id are an error.
func LoadChannels(path string) ([]Channel, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var chs []Channel
	if err := json.Unmarshal(data, &chs); err != nil {
		return nil, fmt.Errorf("parse channels %s: %w", path, err)
	}
	for i, c := range chs {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("channels %s: entry %d has no id", path, i)
		}
	}
	return chs, nil
}

// PlaylistOptions are the tvg attributes shared by every entry.
type PlaylistOptions struct {
	TVGID      string // default "sport.tr"
	Group      string // default "DeaTHLesS"
	NamePrefix string // default "TR:"
}

// BuildPlaylist renders the aggregate M3U: one entry per channel pointing at
// <base>/<id>.m3u8. Lines are newline-joined without a trailing newline.
func BuildPlaylist(base string, chs []Channel, o PlaylistOptions) string {
	if o.TVGID == "" {
		o.TVGID = "sport.tr"
	}
	if o.Group == "" {
		o.Group = "DeaTHLesS"
	}
	if o.NamePrefix == "" {
		o.NamePrefix = "TR:"
	}
	base = strings.TrimSuffix(base, "/")
	lines := []string{"#EXTM3U"}
	for _, c := range chs {
		name := o.NamePrefix + strings.ReplaceAll(c.Name, ",", " ")
		lines = append(lines,
			fmt.Sprintf(`#EXTINF:-1 tvg-id="%s" tvg-name="%s" tvg-logo="%s" group-title="%s",%s`,
				attrEscape(o.TVGID), attrEscape(name), attrEscape(c.Logo), attrEscape(o.Group), name),
			base+"/"+c.ID+".m3u8",
		)
	}
	return strings.Join(lines, "\n")
}

func attrEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
