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

// CacheClient wraps the key-value cache platform's REST endpoint. The
// endpoint itself is user-supplied, so verification has to distinguish
// a bad URL from a bad token.
type CacheClient struct {
	RESTURL string
	Token   string
	Client  *http.Client
}

// Verify issues a PING against the REST endpoint. A malformed or
// wrong endpoint classifies as cache_url; a 401/403 surfaces as a
// status error and classifies as cache_token upstream.
func (c *CacheClient) Verify(ctx context.Context) error {
	u, err := url.Parse(strings.TrimSpace(c.RESTURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return provision.Classified(provision.ClassCacheURL, fmt.Errorf("cache rest url %q is not an absolute URL", c.RESTURL))
	}
	pingURL := strings.TrimRight(u.String(), "/") + "/ping"
	err = doJSON(ctx, c.Client, http.MethodGet, pingURL, c.Token, nil, nil)
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden {
			return err
		}
		// Any other HTTP status from a user-supplied endpoint means the
		// URL points at the wrong thing.
		return provision.Classified(provision.ClassCacheURL, err)
	}
	return err
}
