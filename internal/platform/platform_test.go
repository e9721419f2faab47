package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zaplink/zaplink/internal/provision"
)

func TestFactoryBuildsFreshClients(t *testing.T) {
	f := Factory{Timeout: time.Second}
	a := f.Hosting(provision.HostingCredentials{Token: "t", ProjectID: "p"})
	b := f.Hosting(provision.HostingCredentials{Token: "t", ProjectID: "p"})
	if a == b {
		t.Fatalf("factory returned the same client twice")
	}
	ha, hb := a.(*HostingClient), b.(*HostingClient)
	if ha.Client == hb.Client {
		t.Fatalf("http client shared between attempts")
	}
	if ha.BaseURL != defaultHostingAPIBase {
		t.Fatalf("base url = %q", ha.BaseURL)
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	e := &StatusError{Status: 500, Body: strings.Repeat("x", 500)}
	if len(e.Error()) > 260 {
		t.Fatalf("error string too long: %d", len(e.Error()))
	}
	if e.HTTPStatus() != 500 {
		t.Fatalf("status = %d", e.HTTPStatus())
	}
}

func TestDoJSONBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := doJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, "secret", nil, &out)
	if err != nil {
		t.Fatalf("doJSON: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if !out.OK {
		t.Fatalf("response not decoded")
	}
}

func TestDoJSONNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := doJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, "bad", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
	if !provision.IsUnauthorized(err) {
		t.Fatalf("401 StatusError should classify as unauthorized")
	}
}
