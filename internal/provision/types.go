package provision

import (
	"errors"
	"strings"
)

// ProvisionRequest is the immutable input to one saga run. It is
// validated once at the start of Run and never mutated.
type ProvisionRequest struct {
	Hosting  HostingCredentials  `json:"hosting"`
	Database DatabaseCredentials `json:"database"`
	Queue    QueueCredentials    `json:"queue"`
	Cache    CacheCredentials    `json:"cache"`
	Admin    AdminIdentity       `json:"admin"`
}

type HostingCredentials struct {
	Token     string   `json:"token"`
	ProjectID string   `json:"project_id"`
	Targets   []string `json:"targets"`
}

type DatabaseCredentials struct {
	AccessToken string `json:"access_token"`
	ProjectURL  string `json:"project_url"`
}

type QueueCredentials struct {
	Token      string `json:"token"`
	SigningKey string `json:"signing_key"`
}

type CacheCredentials struct {
	RESTURL   string `json:"rest_url"`
	RESTToken string `json:"rest_token"`
}

type AdminIdentity struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// ProjectKeys holds what the database platform resolves for a project:
// the public and privileged API keys plus a direct SQL connection
// string.
type ProjectKeys struct {
	AnonKey    string
	ServiceKey string
	DSN        string
}

// DefaultTargets is used when the request does not name hosting
// environments for env var configuration.
var DefaultTargets = []string{"production", "preview", "development"}

func (r ProvisionRequest) Validate() error {
	if strings.TrimSpace(r.Hosting.Token) == "" {
		return errors.New("hosting.token required")
	}
	if strings.TrimSpace(r.Hosting.ProjectID) == "" {
		return errors.New("hosting.project_id required")
	}
	if strings.TrimSpace(r.Database.AccessToken) == "" {
		return errors.New("database.access_token required")
	}
	if strings.TrimSpace(r.Database.ProjectURL) == "" {
		return errors.New("database.project_url required")
	}
	if strings.TrimSpace(r.Queue.Token) == "" {
		return errors.New("queue.token required")
	}
	if strings.TrimSpace(r.Queue.SigningKey) == "" {
		return errors.New("queue.signing_key required")
	}
	if strings.TrimSpace(r.Cache.RESTURL) == "" {
		return errors.New("cache.rest_url required")
	}
	if strings.TrimSpace(r.Cache.RESTToken) == "" {
		return errors.New("cache.rest_token required")
	}
	if !strings.Contains(r.Admin.Email, "@") {
		return errors.New("admin.email must be a valid address")
	}
	if strings.TrimSpace(r.Admin.PasswordHash) == "" {
		return errors.New("admin.password_hash required")
	}
	return nil
}

// Targets returns the hosting environments to configure, falling back
// to DefaultTargets.
func (r ProvisionRequest) TargetList() []string {
	if len(r.Hosting.Targets) > 0 {
		return r.Hosting.Targets
	}
	return DefaultTargets
}
