package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zaplink/zaplink/internal/provision"
)

// DatabaseClient wraps the managed-database platform's management API.
// A project is addressed by its reference, which is the first host
// label of the project URL (https://<ref>.db.…).
type DatabaseClient struct {
	BaseURL    string
	Token      string
	ProjectURL string
	Client     *http.Client
	Region     string
}

func (c *DatabaseClient) projectName() (string, error) {
	u, err := url.Parse(c.ProjectURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("project url %q is not a valid URL", c.ProjectURL)
	}
	ref := strings.SplitN(u.Host, ".", 2)[0]
	if ref == "" {
		return "", fmt.Errorf("project url %q has no project reference", c.ProjectURL)
	}
	return ref, nil
}

// VerifyToken checks the access token by listing projects.
func (c *DatabaseClient) VerifyToken(ctx context.Context) error {
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/projects"
	return doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, nil)
}

type projectInfo struct {
	Ref    string `json:"ref"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// EnsureProject finds the project whose reference matches the
// configured project URL, creating it when absent. Lookup-before-create
// keeps the step idempotent.
func (c *DatabaseClient) EnsureProject(ctx context.Context) (string, error) {
	want, err := c.projectName()
	if err != nil {
		return "", err
	}
	listURL := strings.TrimRight(c.BaseURL, "/") + "/v1/projects"
	var projects []projectInfo
	if err := doJSON(ctx, c.Client, http.MethodGet, listURL, c.Token, nil, &projects); err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.Ref == want || p.Name == want {
			return p.Ref, nil
		}
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	var created projectInfo
	body := map[string]any{"name": want, "region": region}
	if err := doJSON(ctx, c.Client, http.MethodPost, listURL, c.Token, body, &created); err != nil {
		return "", err
	}
	if created.Ref == "" {
		return "", errors.New("created project has no reference")
	}
	return created.Ref, nil
}

// ProjectActive reports whether the project has finished provisioning.
func (c *DatabaseClient) ProjectActive(ctx context.Context, ref string) (bool, error) {
	url := fmt.Sprintf("%s/v1/projects/%s", strings.TrimRight(c.BaseURL, "/"), ref)
	var out projectInfo
	if err := doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, &out); err != nil {
		return false, err
	}
	switch strings.ToUpper(out.Status) {
	case "ACTIVE", "ACTIVE_HEALTHY":
		return true, nil
	default:
		return false, nil
	}
}

// ResolveKeys fetches the project's anon and service API keys plus the
// direct SQL connection string.
func (c *DatabaseClient) ResolveKeys(ctx context.Context, ref string) (provision.ProjectKeys, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	var keys []struct {
		Name   string `json:"name"`
		APIKey string `json:"api_key"`
	}
	if err := doJSON(ctx, c.Client, http.MethodGet, fmt.Sprintf("%s/v1/projects/%s/api-keys", base, ref), c.Token, nil, &keys); err != nil {
		return provision.ProjectKeys{}, err
	}
	out := provision.ProjectKeys{}
	for _, k := range keys {
		switch k.Name {
		case "anon":
			out.AnonKey = k.APIKey
		case "service_role", "service":
			out.ServiceKey = k.APIKey
		}
	}
	if out.AnonKey == "" || out.ServiceKey == "" {
		return provision.ProjectKeys{}, errors.New("project api keys incomplete")
	}
	var conn struct {
		URI string `json:"uri"`
	}
	if err := doJSON(ctx, c.Client, http.MethodGet, fmt.Sprintf("%s/v1/projects/%s/connection", base, ref), c.Token, nil, &conn); err != nil {
		return provision.ProjectKeys{}, err
	}
	if conn.URI == "" {
		return provision.ProjectKeys{}, errors.New("connection string missing from response")
	}
	out.DSN = conn.URI
	return out, nil
}

// StorageReady probes whether the project's object-storage schema is
// observable yet. 404 and 503 mean "not yet", not failure.
func (c *DatabaseClient) StorageReady(ctx context.Context, ref string) (bool, error) {
	url := fmt.Sprintf("%s/v1/projects/%s/storage/ready", strings.TrimRight(c.BaseURL, "/"), ref)
	err := doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, nil)
	if err == nil {
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && (se.Status == http.StatusNotFound || se.Status == http.StatusServiceUnavailable) {
		return false, nil
	}
	return false, err
}
