package epg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/snapetech/streamrefresh/internal/httpclient"
)

type fakeUploader struct {
	path string
	data []byte
}

func (f *fakeUploader) Upload(ctx context.Context, dstPath string, data []byte) error {
	f.path, f.data = dstPath, data
	return nil
}

func TestJob_run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(guide))
	}))
	defer srv.Close()

	dir := t.TempDir()
	up := &fakeUploader{}
	j := &Job{
		Req:        &httpclient.Requester{Client: srv.Client()},
		SourceURL:  srv.URL + "/turkey.xml",
		Output:     filepath.Join(dir, "epg_updated.xml"),
		MapFile:    filepath.Join(dir, "kanalid.txt"),
		Uploader:   up,
		RemotePath: "/epg_updated.xml",
	}
	mappings, err := j.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(mappings) != 1 {
		t.Errorf("mappings = %+v", mappings)
	}
	written, err := os.ReadFile(j.Output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(written), `channel="trt1"`) {
		t.Errorf("guide not rewritten:\n%s", written)
	}
	m, _ := os.ReadFile(j.MapFile)
	if string(m) != "TRT 1 HD => trt1\n" {
		t.Errorf("map = %q", m)
	}
	if up.path != "/epg_updated.xml" || string(up.data) != string(written) {
		t.Errorf("upload = %s %d bytes", up.path, len(up.data))
	}
}

func TestJob_downloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	dir := t.TempDir()
	j := &Job{Req: &httpclient.Requester{Client: srv.Client()}, SourceURL: srv.URL, Output: filepath.Join(dir, "out.xml")}
	if _, err := j.Run(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if _, err := os.Stat(j.Output); !os.IsNotExist(err) {
		t.Error("output written despite download failure")
	}
}

func TestJob_skipsUnchangedGuide(t *testing.T) {
	var hits, full int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"g1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full++
		w.Header().Set("ETag", `"g1"`)
		_, _ = w.Write([]byte(guide))
	}))
	defer srv.Close()

	dir := t.TempDir()
	up := &fakeUploader{}
	j := &Job{
		Req:       &httpclient.Requester{Client: srv.Client()},
		SourceURL: srv.URL,
		Output:    filepath.Join(dir, "epg_updated.xml"),
		Uploader:  up,
		StatePath: filepath.Join(dir, "epg.state.json"),
	}
	if m, err := j.Run(context.Background()); err != nil || len(m) != 1 {
		t.Fatalf("first run: %v %v", m, err)
	}
	up.path = ""
	if m, err := j.Run(context.Background()); err != nil || m != nil {
		t.Fatalf("second run: %v %v", m, err)
	}
	if up.path != "" {
		t.Error("unchanged guide uploaded again")
	}
	if hits != 2 || full != 1 {
		t.Errorf("hits = %d, full downloads = %d", hits, full)
	}

	// A missing output forces a full download even with state on disk.
	if err := os.Remove(j.Output); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if full != 2 || up.path == "" {
		t.Errorf("full downloads = %d, uploaded = %q", full, up.path)
	}

	j.Force = true
	if _, err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if full != 3 {
		t.Errorf("forced run: full downloads = %d", full)
	}
}

func TestJob_retriesTransientServerError(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(guide))
	}))
	defer srv.Close()

	dir := t.TempDir()
	policy := httpclient.DefaultRetryPolicy
	policy.Backoff5xx = time.Millisecond
	j := &Job{
		Req:       &httpclient.Requester{Client: srv.Client(), Policy: policy},
		SourceURL: srv.URL,
		Output:    filepath.Join(dir, "epg_updated.xml"),
	}
	if _, err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}
