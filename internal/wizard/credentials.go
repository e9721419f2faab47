package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zaplink/zaplink/internal/provision"
)

// CredentialsVersion guards the on-disk format. A file written by an
// incompatible build is rejected rather than half-read.
const CredentialsVersion = 1

// Credentials is the locally persisted wizard input: the four platform
// credential groups plus the administrator identity.
type Credentials struct {
	Version  int                           `json:"version"`
	Hosting  provision.HostingCredentials  `json:"hosting"`
	Database provision.DatabaseCredentials `json:"database"`
	Queue    provision.QueueCredentials    `json:"queue"`
	Cache    provision.CacheCredentials    `json:"cache"`
	Admin    provision.AdminIdentity       `json:"admin"`
}

// Request converts stored credentials into a provision request.
func (c Credentials) Request() provision.ProvisionRequest {
	return provision.ProvisionRequest{
		Hosting:  c.Hosting,
		Database: c.Database,
		Queue:    c.Queue,
		Cache:    c.Cache,
		Admin:    c.Admin,
	}
}

// MissingFields names every required field that is empty, in display
// order, so the collection flow knows what to ask for.
func (c Credentials) MissingFields() []string {
	var out []string
	add := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			out = append(out, name)
		}
	}
	add("hosting.token", c.Hosting.Token)
	add("hosting.project_id", c.Hosting.ProjectID)
	add("database.access_token", c.Database.AccessToken)
	add("database.project_url", c.Database.ProjectURL)
	add("queue.token", c.Queue.Token)
	add("queue.signing_key", c.Queue.SigningKey)
	add("cache.rest_url", c.Cache.RESTURL)
	add("cache.rest_token", c.Cache.RESTToken)
	add("admin.email", c.Admin.Email)
	add("admin.password_hash", c.Admin.PasswordHash)
	return out
}

// Store reads and writes the credential file. The file holds secrets,
// so it is written owner-only and scrubbed after a successful setup.
type Store struct {
	Path string
}

func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse credential file: %w", err)
	}
	if c.Version != CredentialsVersion {
		return Credentials{}, fmt.Errorf("credential file version %d, want %d", c.Version, CredentialsVersion)
	}
	return c, nil
}

func (s *Store) Save(c Credentials) error {
	c.Version = CredentialsVersion
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, append(data, '\n'), 0o600)
}

// Scrub blanks every secret field but keeps the non-secret identifiers
// (project id, project URL, admin email) so a later re-run starts
// pre-filled. A missing file is fine: nothing to scrub.
func (s *Store) Scrub() error {
	c, err := s.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	c.Hosting.Token = ""
	c.Database.AccessToken = ""
	c.Queue.Token = ""
	c.Queue.SigningKey = ""
	c.Cache.RESTToken = ""
	c.Admin.PasswordHash = ""
	return s.Save(c)
}
