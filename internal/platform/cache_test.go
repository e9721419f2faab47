package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zaplink/zaplink/internal/provision"
)

func TestCacheVerifyOK(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"result":"PONG"}`))
	}))
	defer srv.Close()

	c := &CacheClient{RESTURL: srv.URL, Token: "ct", Client: srv.Client()}
	if err := c.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotPath != "/ping" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer ct" {
		t.Fatalf("auth = %q", gotAuth)
	}
}

func TestCacheVerifyMalformedURL(t *testing.T) {
	c := &CacheClient{RESTURL: "not-a-url", Client: http.DefaultClient}
	err := c.Verify(context.Background())
	var ce *provision.ClassifiedError
	if !errors.As(err, &ce) || ce.Class != provision.ClassCacheURL {
		t.Fatalf("err = %v, want cache_url classification", err)
	}
}

func TestCacheVerifyRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &CacheClient{RESTURL: srv.URL, Token: "bad", Client: srv.Client()}
	err := c.Verify(context.Background())
	// 401 keeps its status so the saga classifies it by the step's
	// credential class (cache_token), not as a bad URL.
	var ce *provision.ClassifiedError
	if errors.As(err, &ce) {
		t.Fatalf("401 must not be pre-classified: %v", err)
	}
	if !provision.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestCacheVerifyWrongEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &CacheClient{RESTURL: srv.URL, Token: "ct", Client: srv.Client()}
	err := c.Verify(context.Background())
	var ce *provision.ClassifiedError
	if !errors.As(err, &ce) || ce.Class != provision.ClassCacheURL {
		t.Fatalf("err = %v, want cache_url for a non-auth status", err)
	}
}

func TestQueueVerifyToken(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"key":"current"}`))
	}))
	defer srv.Close()

	c := &QueueClient{BaseURL: srv.URL, Token: "qt", Client: srv.Client()}
	if err := c.VerifyToken(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if gotPath != "/v1/keys/current" {
		t.Fatalf("path = %q", gotPath)
	}
}
