package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequester_ConditionalGet(t *testing.T) {
	const etag = `"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Last-Modified", "Mon, 19 Oct 2026 06:00:00 GMT")
		w.Write([]byte("<tv></tv>"))
	}))
	defer srv.Close()

	r := &Requester{}
	body, v, err := r.ConditionalGet(context.Background(), srv.URL, Validators{})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<tv></tv>" || v.ETag != etag || v.LastModified == "" {
		t.Errorf("body = %q, validators = %+v", body, v)
	}
	if v.ContentHash != ContentHash([]byte("<tv></tv>")) {
		t.Errorf("content hash = %s", v.ContentHash)
	}

	_, again, err := r.ConditionalGet(context.Background(), srv.URL, v)
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("err = %v, want ErrNotModified", err)
	}
	if again != v {
		t.Errorf("validators on 304 = %+v, want previous", again)
	}
}

func TestRequester_ConditionalGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := (&Requester{}).ConditionalGet(context.Background(), srv.URL, Validators{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Errorf("err = %v, want StatusError 502", err)
	}
}
