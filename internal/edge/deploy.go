package edge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/snapetech/streamrefresh/internal/httpclient"
)

const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// Deployer uploads worker scripts through the Cloudflare API.
type Deployer struct {
	HTTP      *http.Client
	AccountID string
	Token     string
	APIBase   string // default DefaultAPIBase
}

// DeployError is a rejected upload.
type DeployError struct {
	Code    int
	Message string
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("worker upload: HTTP %d: %s", e.Code, e.Message)
}

// Deploy replaces the worker's script. Success is HTTP 200 with
// "success": true in the body.
func (d *Deployer) Deploy(ctx context.Context, worker string, script []byte) error {
	base := d.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	u := fmt.Sprintf("%s/accounts/%s/workers/scripts/%s", strings.TrimSuffix(base, "/"),
		url.PathEscape(d.AccountID), url.PathEscape(worker))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(script))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.Token)
	req.Header.Set("Content-Type", "application/javascript")
	client := d.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("worker upload: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusOK && gjson.GetBytes(body, "success").Bool() {
		return nil
	}
	msg := gjson.GetBytes(body, "errors.0.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return &DeployError{Code: resp.StatusCode, Message: msg}
}
