package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target kinds. An empty Type means KindChannel.
const (
	KindChannel = "channel" // upstream channel id or @handle; resolve its live video
	KindVideo   = "video"   // upstream video id
	KindURL     = "url"     // id is a playlist URL
	KindPage    = "page"    // id is a web page whose player requests the playlist
)

// Target is one record of a targets file. Unknown fields are ignored.
type Target struct {
	Slug      string `json:"slug" yaml:"slug"`
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Subfolder string `json:"subfolder,omitempty" yaml:"subfolder,omitempty"`
}

// Kind returns the normalized target type.
func (t Target) Kind() string {
	k := strings.ToLower(strings.TrimSpace(t.Type))
	if k == "" {
		return KindChannel
	}
	return k
}

// Label is the slug, or "unknown" for records without one.
func (t Target) Label() string {
	if t.Slug == "" {
		return "unknown"
	}
	return t.Slug
}

// LoadTargets reads a JSON array of targets (YAML for .yaml/.yml files).
// A missing or unparseable file is an error; callers treat it as fatal.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("targets file: %w", err)
	}
	var targets []Target
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &targets)
	default:
		err = json.Unmarshal(data, &targets)
	}
	if err != nil {
		return nil, fmt.Errorf("targets file %s: invalid structure: %w", path, err)
	}
	for i, t := range targets {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("targets file %s: record %d (%s): missing id", path, i+1, t.Label())
		}
	}
	return targets, nil
}
