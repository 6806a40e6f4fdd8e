package edge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildPlaylist(t *testing.T) {
	got := BuildPlaylist("https://pages.example/", []Channel{
		{Name: "beIN Sport 1 HD", ID: "bs1", Logo: "https://img/1.jpg"},
		{Name: "A, B", ID: "ab"},
	}, PlaylistOptions{})
	want := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-id="sport.tr" tvg-name="TR:beIN Sport 1 HD" tvg-logo="https://img/1.jpg" group-title="DeaTHLesS",TR:beIN Sport 1 HD` + "\n" +
		"https://pages.example/bs1.m3u8\n" +
		`#EXTINF:-1 tvg-id="sport.tr" tvg-name="TR:A  B" tvg-logo="" group-title="DeaTHLesS",TR:A  B` + "\n" +
		"https://pages.example/ab.m3u8"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestLoadChannels(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	os.WriteFile(good, []byte(`[{"name":"X","id":"x","logo":"l","extra":1}]`), 0644)
	chs, err := LoadChannels(good)
	if err != nil || len(chs) != 1 || chs[0].ID != "x" {
		t.Fatalf("got %+v, %v", chs, err)
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`[{"name":"X"}]`), 0644)
	if _, err := LoadChannels(bad); err == nil {
		t.Error("want error for entry without id")
	}
	if _, err := LoadChannels(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("want error for missing file")
	}
}

func TestPatchBaseURL(t *testing.T) {
	script := "const BASE_URL = \"https://old.example/checklist/\";\nexport default {};\n"
	got, ok := PatchBaseURL(script, "https://pages.example/")
	if !ok {
		t.Fatal("constant not found")
	}
	if !strings.HasPrefix(got, `const BASE_URL = "https://pages.example/checklist/";`) {
		t.Errorf("got %q", got)
	}
	if _, ok := PatchBaseURL("export default {};", "https://x"); ok {
		t.Error("patched a script without the constant")
	}
	got, _ = PatchBaseURL(`const BASE_URL="a"`, "https://p")
	if got != `const BASE_URL = "https://p/checklist/"` {
		t.Errorf("compact form: %q", got)
	}
}

func TestDeploy(t *testing.T) {
	var gotPath, gotAuth, gotCT, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		gotPath, gotAuth, gotCT = r.URL.Path, r.Header.Get("Authorization"), r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"success":true,"errors":[],"result":{}}`))
	}))
	defer srv.Close()
	d := &Deployer{HTTP: srv.Client(), AccountID: "acc", Token: "tok", APIBase: srv.URL}
	if err := d.Deploy(context.Background(), "macyayin", []byte("js")); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/accounts/acc/workers/scripts/macyayin" || gotAuth != "Bearer tok" ||
		gotCT != "application/javascript" || gotBody != "js" {
		t.Errorf("request: %s %s %s %q", gotPath, gotAuth, gotCT, gotBody)
	}
}

func TestDeploy_rejected(t *testing.T) {
	cases := []struct {
		code int
		body string
		msg  string
	}{
		{http.StatusOK, `{"success":false,"errors":[{"code":10021,"message":"script syntax"}]}`, "script syntax"},
		{http.StatusForbidden, `{"success":false,"errors":[{"message":"Authentication error"}]}`, "Authentication error"},
		{http.StatusBadGateway, `bad gateway`, "bad gateway"},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.code)
			_, _ = w.Write([]byte(c.body))
		}))
		d := &Deployer{HTTP: srv.Client(), APIBase: srv.URL}
		err := d.Deploy(context.Background(), "w", nil)
		srv.Close()
		var de *DeployError
		if !errors.As(err, &de) || de.Code != c.code || de.Message != c.msg {
			t.Errorf("code %d: err = %v", c.code, err)
		}
	}
}

func TestWorkerJob_dryRun(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "worker.js")
	os.WriteFile(script, []byte(`const BASE_URL = "x";`), 0644)
	j := &WorkerJob{
		Base:         "https://pages.example",
		Channels:     DefaultChannels,
		PlaylistPath: filepath.Join(dir, "androiptv.m3u8"),
		ScriptPath:   script,
		WorkerName:   "macyayin",
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(j.PlaylistPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "#EXTINF") != len(DefaultChannels) {
		t.Errorf("playlist:\n%s", data)
	}
}

func TestWorkerJob_deploysPatchedScript(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()
	dir := t.TempDir()
	script := filepath.Join(dir, "worker.js")
	os.WriteFile(script, []byte(`const BASE_URL = "https://old/checklist/";`), 0644)
	j := &WorkerJob{
		Base:         "https://pages.example/",
		PlaylistPath: filepath.Join(dir, "out", "list.m3u8"),
		ScriptPath:   script,
		WorkerName:   "w",
		Deployer:     &Deployer{HTTP: srv.Client(), APIBase: srv.URL},
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if body != `const BASE_URL = "https://pages.example/checklist/";` {
		t.Errorf("uploaded %q", body)
	}
}
