package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8090" {
		t.Fatalf("http_addr: %s", cfg.Server.HTTPAddr)
	}
	if cfg.RequestBudget() != 300*time.Second {
		t.Fatalf("budget: %v", cfg.RequestBudget())
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server":{"http_addr":":9000","request_budget_secs":120,"max_body_bytes":1024},"platforms":{"hosting_api_base":"https://api.example.test"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Fatalf("http_addr: %s", cfg.Server.HTTPAddr)
	}
	if cfg.Platforms.HostingAPIBase != "https://api.example.test" {
		t.Fatalf("hosting base: %s", cfg.Platforms.HostingAPIBase)
	}
	// Untouched sections keep their defaults.
	if cfg.Provision.DatabaseWaitSecs != 180 {
		t.Fatalf("database wait: %d", cfg.Provision.DatabaseWaitSecs)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing addr", func(c *Config) { c.Server.HTTPAddr = " " }, "http_addr"},
		{"zero budget", func(c *Config) { c.Server.RequestBudgetSecs = 0 }, "request_budget_secs"},
		{"zero body cap", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"relative url", func(c *Config) { c.Platforms.HostingAPIBase = "api.example.test" }, "hosting_api_base"},
		{"zero wait", func(c *Config) { c.Provision.DeployWaitSecs = 0 }, "wait budgets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err: %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestPlatformHTTPTimeoutDefault(t *testing.T) {
	cfg := Config{}
	if cfg.PlatformHTTPTimeout() != 30*time.Second {
		t.Fatalf("timeout: %v", cfg.PlatformHTTPTimeout())
	}
}
