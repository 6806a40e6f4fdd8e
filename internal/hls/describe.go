package hls

import (
	"errors"
	"strings"

	"github.com/grafov/m3u8"
)

// VariantInfo is a decoded summary of one variant, for logging.
type VariantInfo struct {
	URI        string
	Bandwidth  uint32
	Resolution string
	Codecs     string
}

// ErrMediaPlaylist is returned by Describe for a media (segment) playlist.
var ErrMediaPlaylist = errors.New("hls: media playlist, no variants")

// Describe decodes a master playlist and lists its variants in document
// order. It is read-only: the decoded form is never re-encoded.
func Describe(text string) ([]VariantInfo, error) {
	p, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MASTER {
		return nil, ErrMediaPlaylist
	}
	master := p.(*m3u8.MasterPlaylist)
	out := make([]VariantInfo, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil {
			break
		}
		out = append(out, VariantInfo{
			URI:        v.URI,
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			Codecs:     v.Codecs,
		})
	}
	return out, nil
}
