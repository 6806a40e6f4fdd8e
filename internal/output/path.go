package output

import (
	"path/filepath"
	"strings"
)

// Ext is the extension of every manifest written by this package.
const Ext = ".m3u8"

// Path returns the manifest path for a target: folder/[subfolder/]slug.m3u8.
// Stable: the same inputs always map to the same path.
func Path(folder, subfolder, slug string) string {
	name := sanitizeSlug(slug) + Ext
	if subfolder = strings.TrimSpace(subfolder); subfolder != "" {
		return filepath.Join(folder, filepath.Clean("/"+subfolder)[1:], name)
	}
	return filepath.Join(folder, name)
}

// PartialPath is where Write stages content before renaming it into place.
func PartialPath(path string) string {
	return path + ".partial"
}

func sanitizeSlug(slug string) string {
	s := strings.ReplaceAll(slug, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	if s == "" || s == "." || s == ".." {
		s = "unknown"
	}
	return s
}
