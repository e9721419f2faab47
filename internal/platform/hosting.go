package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HostingClient wraps the deployment platform's REST API for a single
// project.
type HostingClient struct {
	BaseURL   string
	Token     string
	ProjectID string
	Client    *http.Client
}

// VerifyProject checks that the token is valid and can see the
// configured project.
func (c *HostingClient) VerifyProject(ctx context.Context) error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("hosting project id required")
	}
	url := fmt.Sprintf("%s/v1/projects/%s", strings.TrimRight(c.BaseURL, "/"), c.ProjectID)
	return doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, nil)
}

// UpsertEnv writes one environment variable per key across the given
// targets. The platform's env endpoint upserts: an existing key is
// overwritten, so re-running after a partial failure is safe.
func (c *HostingClient) UpsertEnv(ctx context.Context, vars map[string]string, targets []string) error {
	url := fmt.Sprintf("%s/v1/projects/%s/env?upsert=true", strings.TrimRight(c.BaseURL, "/"), c.ProjectID)
	for key, value := range vars {
		body := map[string]any{
			"key":    key,
			"value":  value,
			"type":   "encrypted",
			"target": targets,
		}
		if err := doJSON(ctx, c.Client, http.MethodPost, url, c.Token, body, nil); err != nil {
			return fmt.Errorf("upsert env %s: %w", key, err)
		}
	}
	return nil
}

// TriggerDeploy starts a new deployment of the project's latest build
// and returns its identifier.
func (c *HostingClient) TriggerDeploy(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/v1/projects/%s/deployments", strings.TrimRight(c.BaseURL, "/"), c.ProjectID)
	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, c.Client, http.MethodPost, url, c.Token, map[string]any{"target": "production"}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("deployment id missing from response")
	}
	return out.ID, nil
}

// DeploymentReady reports whether the deployment has reached a ready
// state. An errored deployment is surfaced as a hard failure rather
// than polled forever.
func (c *HostingClient) DeploymentReady(ctx context.Context, deployID string) (bool, error) {
	url := fmt.Sprintf("%s/v1/deployments/%s", strings.TrimRight(c.BaseURL, "/"), deployID)
	var out struct {
		ReadyState string `json:"ready_state"`
	}
	if err := doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, &out); err != nil {
		return false, err
	}
	switch strings.ToUpper(out.ReadyState) {
	case "READY":
		return true, nil
	case "ERROR", "CANCELED":
		return false, fmt.Errorf("deployment %s ended in state %s", deployID, out.ReadyState)
	default:
		return false, nil
	}
}
