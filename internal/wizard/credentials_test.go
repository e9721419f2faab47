package wizard

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup-credentials.json")
	s := &Store{Path: path}

	want := fullCredentials()
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("file mode = %o, want 0600", info.Mode().Perm())
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("loaded %+v, want %+v", got, want)
	}
}

func TestStoreRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := &Store{Path: path}
	if _, err := s.Load(); err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("err = %v, want version mismatch", err)
	}
}

func TestScrubBlanksSecretsKeepsIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	s := &Store{Path: path}
	if err := s.Save(fullCredentials()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Scrub(); err != nil {
		t.Fatalf("scrub: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("load after scrub: %v", err)
	}
	for name, v := range map[string]string{
		"hosting token":       got.Hosting.Token,
		"database token":      got.Database.AccessToken,
		"queue token":         got.Queue.Token,
		"queue signing key":   got.Queue.SigningKey,
		"cache token":         got.Cache.RESTToken,
		"admin password hash": got.Admin.PasswordHash,
	} {
		if v != "" {
			t.Fatalf("%s survived scrub: %q", name, v)
		}
	}
	if got.Hosting.ProjectID == "" || got.Database.ProjectURL == "" || got.Admin.Email == "" {
		t.Fatalf("non-secret identifiers scrubbed: %+v", got)
	}
}

func TestScrubMissingFileIsNoop(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "absent.json")}
	if err := s.Scrub(); err != nil {
		t.Fatalf("scrub on missing file: %v", err)
	}
}
