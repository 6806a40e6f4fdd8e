// Package dropbox uploads files with a long-lived refresh token.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/snapetech/streamrefresh/internal/httpclient"
)

const (
	DefaultTokenURL  = "https://api.dropbox.com/oauth2/token"
	DefaultUploadURL = "https://content.dropboxapi.com/2/files/upload"
)

// Client exchanges the refresh token for an access token on each upload.
type Client struct {
	HTTP         *http.Client
	AppKey       string
	AppSecret    string
	RefreshToken string
	TokenURL     string // default DefaultTokenURL
	UploadURL    string // default DefaultUploadURL
}

// APIError is a non-200 answer from Dropbox.
type APIError struct {
	Op      string
	Code    int
	Summary string // error_summary, or the start of the body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox %s: HTTP %d: %s", e.Op, e.Code, e.Summary)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return httpclient.Default()
}

// AccessToken trades the refresh token for a short-lived access token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.RefreshToken},
		"client_id":     {c.AppKey},
		"client_secret": {c.AppSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req, "token")
	if err != nil {
		return "", err
	}
	tok := gjson.GetBytes(body, "access_token").String()
	if tok == "" {
		return "", fmt.Errorf("dropbox token: no access_token in response")
	}
	return tok, nil
}

// Upload writes data to dstPath, overwriting any existing file.
func (c *Client) Upload(ctx context.Context, dstPath string, data []byte) error {
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	uploadURL := c.UploadURL
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	arg, err := apiArg(map[string]any{"path": dstPath, "mode": "overwrite", "mute": true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Dropbox-API-Arg", arg)
	req.Header.Set("Content-Type", "application/octet-stream")
	_, err = c.do(req, "upload")
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox %s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("dropbox %s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		summary := gjson.GetBytes(body, "error_summary").String()
		if summary == "" {
			summary = gjson.GetBytes(body, "error_description").String()
		}
		if summary == "" {
			summary = strings.TrimSpace(string(body))
			if len(summary) > 200 {
				summary = summary[:200]
			}
		}
		return nil, &APIError{Op: op, Code: resp.StatusCode, Summary: summary}
	}
	return body, nil
}

// apiArg encodes v for the Dropbox-API-Arg header, which must be ASCII.
func apiArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range string(b) {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := surrogates(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&sb, `\u%04x`, r)
	}
	return sb.String(), nil
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r>>10)&0x3FF, 0xDC00 + r&0x3FF
}
