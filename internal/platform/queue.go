package platform

import (
	"context"
	"net/http"
	"strings"
)

// QueueClient wraps the job-queue platform's API. Provisioning only
// needs to know the bearer token is valid; the product configures the
// rest of the queue at runtime.
type QueueClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (c *QueueClient) VerifyToken(ctx context.Context) error {
	url := strings.TrimRight(c.BaseURL, "/") + "/v1/keys/current"
	return doJSON(ctx, c.Client, http.MethodGet, url, c.Token, nil, nil)
}
