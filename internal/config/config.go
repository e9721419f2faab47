package config

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Platforms PlatformsConfig `json:"platforms"`
	Provision ProvisionConfig `json:"provision"`
}

type ServerConfig struct {
	HTTPAddr          string `json:"http_addr"`
	RequestBudgetSecs int    `json:"request_budget_secs"`
	MaxBodyBytes      int64  `json:"max_body_bytes"`
}

// PlatformsConfig holds the management API endpoints for the external
// platforms the provisioning saga talks to. The cache platform has no
// fixed endpoint here: its REST URL is part of the user-supplied
// credentials.
type PlatformsConfig struct {
	HostingAPIBase  string `json:"hosting_api_base"`
	DatabaseAPIBase string `json:"database_api_base"`
	QueueAPIBase    string `json:"queue_api_base"`
	HTTPTimeoutSecs int    `json:"http_timeout_secs"`
}

type ProvisionConfig struct {
	DatabaseRegion   string `json:"database_region"`
	DatabaseWaitSecs int    `json:"database_wait_secs"`
	StorageWaitSecs  int    `json:"storage_wait_secs"`
	DeployWaitSecs   int    `json:"deploy_wait_secs"`
	// StatusDSN, when set, lets /v1/setup/status probe an instance that
	// was provisioned by an earlier run.
	StatusDSN string `json:"status_dsn"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:          ":8090",
			RequestBudgetSecs: 300,
			MaxBodyBytes:      1 << 20,
		},
		Platforms: PlatformsConfig{
			HTTPTimeoutSecs: 30,
		},
		Provision: ProvisionConfig{
			DatabaseRegion:   "us-east-1",
			DatabaseWaitSecs: 180,
			StorageWaitSecs:  210,
			DeployWaitSecs:   240,
		},
	}
}

// LoadConfig reads a JSON config file and overlays it on the defaults.
// An empty path returns the defaults unchanged, so the setup server can
// boot before any infrastructure exists.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.HTTPAddr) == "" {
		return errors.New("server.http_addr required")
	}
	if c.Server.RequestBudgetSecs <= 0 {
		return errors.New("server.request_budget_secs must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if err := validateBaseURL("platforms.hosting_api_base", c.Platforms.HostingAPIBase); err != nil {
		return err
	}
	if err := validateBaseURL("platforms.database_api_base", c.Platforms.DatabaseAPIBase); err != nil {
		return err
	}
	if err := validateBaseURL("platforms.queue_api_base", c.Platforms.QueueAPIBase); err != nil {
		return err
	}
	if c.Provision.DatabaseWaitSecs <= 0 || c.Provision.StorageWaitSecs <= 0 || c.Provision.DeployWaitSecs <= 0 {
		return errors.New("provision wait budgets must be positive")
	}
	return nil
}

func (c Config) RequestBudget() time.Duration {
	return time.Duration(c.Server.RequestBudgetSecs) * time.Second
}

func (c Config) PlatformHTTPTimeout() time.Duration {
	if c.Platforms.HTTPTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Platforms.HTTPTimeoutSecs) * time.Second
}

func validateBaseURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(field + " must be an absolute URL")
	}
	return nil
}
