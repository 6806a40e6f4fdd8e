package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.FolderName != "streams" {
		t.Errorf("FolderName = %q", c.FolderName)
	}
	if c.Timeout != 30*time.Second || c.MaxRetries != 3 || c.RetryDelay != 2*time.Second {
		t.Errorf("timeout/retries/delay = %v/%d/%v", c.Timeout, c.MaxRetries, c.RetryDelay)
	}
	if !reflect.DeepEqual(c.Sources, []string{"invidious", "direct"}) {
		t.Errorf("Sources = %v", c.Sources)
	}
	if c.Endpoint != DefaultInstances[0] {
		t.Errorf("Endpoint = %q", c.Endpoint)
	}
	if c.HasDropbox() || c.HasCloudflare() {
		t.Error("no credentials should be present by default")
	}
}

func TestLoad_env(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENDPOINT", "https://inv.example")
	os.Setenv("FOLDER_NAME", "out")
	os.Setenv("STREAM_REFRESH_TIMEOUT", "15")
	os.Setenv("STREAM_REFRESH_RETRY_DELAY", "500ms")
	os.Setenv("STREAM_REFRESH_RETRIES", "0")
	os.Setenv("STREAM_REFRESH_SOURCES", "direct, invidious ,")
	os.Setenv("DROPBOX_REFRESH_TOKEN", "r")
	os.Setenv("DROPBOX_APP_KEY", "k")
	os.Setenv("DROPBOX_APP_SECRET", "s")
	c := Load()
	if c.Endpoint != "https://inv.example" || c.FolderName != "out" {
		t.Errorf("Endpoint/FolderName = %q/%q", c.Endpoint, c.FolderName)
	}
	if c.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s from bare seconds", c.Timeout)
	}
	if c.RetryDelay != 500*time.Millisecond {
		t.Errorf("RetryDelay = %v", c.RetryDelay)
	}
	if c.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want clamp to 1", c.MaxRetries)
	}
	if !reflect.DeepEqual(c.Sources, []string{"direct", "invidious"}) {
		t.Errorf("Sources = %v", c.Sources)
	}
	if !c.HasDropbox() {
		t.Error("HasDropbox should be true")
	}
}

func TestInstances_endpointFirstNoDuplicates(t *testing.T) {
	os.Clearenv()
	os.Setenv("ENDPOINT", "https://b.example/")
	os.Setenv("STREAM_REFRESH_INSTANCES", "https://a.example, https://b.example,https://c.example")
	c := Load()
	got := c.Instances()
	want := []string{"https://b.example", "https://a.example", "https://c.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Instances() = %v, want %v", got, want)
	}
}

func TestLoadTargets_json(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.json")
	data := `[
		{"slug": "trt1", "id": "UCabc", "extra": true},
		{"slug": "haber", "id": "xyz", "type": "Video", "subfolder": "news"}
	]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Kind() != KindChannel || got[1].Kind() != KindVideo {
		t.Errorf("kinds = %q, %q", got[0].Kind(), got[1].Kind())
	}
	if got[1].Subfolder != "news" {
		t.Errorf("Subfolder = %q", got[1].Subfolder)
	}
}

func TestLoadTargets_yaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.yaml")
	data := "- slug: a\n  id: https://cdn.example/a.m3u8\n  type: url\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind() != KindURL || got[0].Slug != "a" {
		t.Errorf("targets = %+v", got)
	}
}

func TestLoadTargets_errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadTargets(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"slug": "not-an-array"}`), 0644)
	if _, err := LoadTargets(bad); err == nil {
		t.Error("object instead of array should fail")
	}
	noID := filepath.Join(dir, "noid.json")
	os.WriteFile(noID, []byte(`[{"slug": "x"}]`), 0644)
	if _, err := LoadTargets(noID); err == nil {
		t.Error("record without id should fail")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b ,c,")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("SplitList = %v", got)
	}
}
