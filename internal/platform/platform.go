package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zaplink/zaplink/internal/provision"
)

// Factory builds per-attempt platform clients from credential groups.
// It satisfies provision.Clients; the saga calls it fresh on every
// attempt so no HTTP client state survives a failed try.
type Factory struct {
	HostingAPIBase  string
	DatabaseAPIBase string
	QueueAPIBase    string
	DatabaseRegion  string
	Timeout         time.Duration
}

const (
	defaultHostingAPIBase  = "https://api.hosting.zaplink.dev"
	defaultDatabaseAPIBase = "https://api.dbplatform.zaplink.dev"
	defaultQueueAPIBase    = "https://api.queue.zaplink.dev"
)

func (f Factory) httpClient() *http.Client {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (f Factory) Hosting(creds provision.HostingCredentials) provision.HostingClient {
	base := f.HostingAPIBase
	if base == "" {
		base = defaultHostingAPIBase
	}
	return &HostingClient{BaseURL: base, Token: creds.Token, ProjectID: creds.ProjectID, Client: f.httpClient()}
}

func (f Factory) Database(creds provision.DatabaseCredentials) provision.DatabaseClient {
	base := f.DatabaseAPIBase
	if base == "" {
		base = defaultDatabaseAPIBase
	}
	return &DatabaseClient{BaseURL: base, Token: creds.AccessToken, ProjectURL: creds.ProjectURL, Region: f.DatabaseRegion, Client: f.httpClient()}
}

func (f Factory) Queue(creds provision.QueueCredentials) provision.QueueClient {
	base := f.QueueAPIBase
	if base == "" {
		base = defaultQueueAPIBase
	}
	return &QueueClient{BaseURL: base, Token: creds.Token, Client: f.httpClient()}
}

func (f Factory) Cache(creds provision.CacheCredentials) provision.CacheClient {
	return &CacheClient{RESTURL: creds.RESTURL, Token: creds.RESTToken, Client: f.httpClient()}
}

// StatusError is a non-2xx response from a platform API. It implements
// HTTPStatus so the saga's classifier can recognize credential
// rejections without depending on this package.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("platform api: status %d", e.Status)
	}
	return fmt.Sprintf("platform api: status %d: %s", e.Status, body)
}

func (e *StatusError) HTTPStatus() int { return e.Status }

// doJSON issues one request with a bearer token and decodes a JSON
// response into out (when out is non-nil). Non-2xx statuses become
// *StatusError.
func doJSON(ctx context.Context, client *http.Client, method, url, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
