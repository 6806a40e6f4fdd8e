package httpclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
)

// ErrNotModified is returned by ConditionalGet when the server answers 304.
var ErrNotModified = errors.New("httpclient: 304 not modified")

// Validators are the cache validators of a previous download. ContentHash
// catches unchanged bodies from servers that send neither ETag nor
// Last-Modified.
type Validators struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
}

// ContentHash returns the hex sha256 of body.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ConditionalGet issues a GET with If-None-Match / If-Modified-Since taken
// from prev. It returns ErrNotModified on 304. On 200 it returns the body and
// the new validators.
func (r *Requester) ConditionalGet(ctx context.Context, rawURL string, prev Validators) ([]byte, Validators, error) {
	h := http.Header{}
	if prev.ETag != "" {
		h.Set("If-None-Match", prev.ETag)
	}
	if prev.LastModified != "" {
		h.Set("If-Modified-Since", prev.LastModified)
	}
	resp, err := r.get(ctx, rawURL, h)
	if err != nil {
		return nil, Validators{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return nil, prev, ErrNotModified
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, Validators{}, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	body, err := r.readBody(resp)
	if err != nil {
		return nil, Validators{}, err
	}
	return body, Validators{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentHash:  ContentHash(body),
	}, nil
}
