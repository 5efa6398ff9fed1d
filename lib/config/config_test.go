// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Local {
		t.Errorf("expected environment=local, got %s", cfg.Environment)
	}
	if cfg.Server.PublicPath != "/gql" || cfg.Server.AdminPath != "/gql-adm" {
		t.Errorf("unexpected default paths: %q %q", cfg.Server.PublicPath, cfg.Server.AdminPath)
	}
	if !cfg.LaunchParams.ExpirationEnabled {
		t.Error("expected expiration enabled by default")
	}
	if cfg.LaunchParams.MaxAge != 24*time.Hour {
		t.Errorf("expected max_age=24h, got %s", cfg.LaunchParams.MaxAge)
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MINIAPP_CONFIG is not set")
	}
	if !strings.HasPrefix(err.Error(), "MINIAPP_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadReadsEnvironmentVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
environment: staging
server:
  address: ":9000"
  workers: 4
  shutdown_timeout: 3s
launch_params:
  credentials: "1:s1"
  max_age: 90m
sentry:
  dsn: "${TEST_SENTRY_DSN}"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvironmentVariable, path)
	t.Setenv("TEST_SENTRY_DSN", "https://public@sentry.example.com/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.Workers != 4 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("shutdown_timeout = %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.LaunchParams.MaxAge != 90*time.Minute {
		t.Errorf("max_age = %s", cfg.LaunchParams.MaxAge)
	}
	if cfg.Server.PublicPath != "/gql" {
		t.Errorf("omitted public_path should keep default, got %q", cfg.Server.PublicPath)
	}
	if cfg.Sentry.DSN != "https://public@sentry.example.com/1" {
		t.Errorf("sentry.dsn = %q", cfg.Sentry.DSN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
environment: staging
server:
  enable_cors: true
launch_params:
  expiration_enabled: true
  credentials: "1:base"
staging:
  server:
    enable_cors: false
  launch_params:
    expiration_enabled: false
    credentials: "1:staging"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.EnableCORS {
		t.Error("expected enable_cors=false from staging section")
	}
	if cfg.LaunchParams.ExpirationEnabled {
		t.Error("expected expiration_enabled=false from staging section")
	}
	if cfg.LaunchParams.Credentials != "1:staging" {
		t.Errorf("credentials = %q", cfg.LaunchParams.Credentials)
	}
}

func TestProductionForcesExpirationWithoutSection(t *testing.T) {
	cfg, err := Parse([]byte(`
environment: production
launch_params:
  expiration_enabled: false
  credentials: "1:s1"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.LaunchParams.ExpirationEnabled {
		t.Error("production without its own section must enable expiration")
	}

	cfg, err = Parse([]byte(`
environment: production
launch_params:
  expiration_enabled: false
  credentials: "1:s1"
production:
  log:
    level: warn
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LaunchParams.ExpirationEnabled {
		t.Error("an explicit production section leaves expiration as configured")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("MINIAPP_TEST_CREDENTIALS", "51234567:abc")
	t.Setenv("MINIAPP_TEST_EMPTY", "")

	cfg, err := Parse([]byte(`
server:
  address: "${MINIAPP_TEST_ADDRESS:-127.0.0.1:8080}"
launch_params:
  credentials: "${MINIAPP_TEST_CREDENTIALS}"
  identity_file: "${MINIAPP_TEST_EMPTY:-/etc/miniapp/identity}"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:8080" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.LaunchParams.Credentials != "51234567:abc" {
		t.Errorf("credentials = %q", cfg.LaunchParams.Credentials)
	}
	if cfg.LaunchParams.IdentityFile != "/etc/miniapp/identity" {
		t.Errorf("identity_file = %q", cfg.LaunchParams.IdentityFile)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.LaunchParams.Credentials = "1:s1"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "development" }, "invalid environment"},
		{"no credentials", func(c *Config) { c.LaunchParams.Credentials = " " }, "launch_params.credentials"},
		{"sealed without identity", func(c *Config) { c.LaunchParams.SealedCredentialsFile = "/x" }, "identity_file"},
		{"relative path", func(c *Config) { c.Server.AdminPath = "adm" }, "server.admin_path"},
		{"duplicate path", func(c *Config) { c.Server.SubscriptionsPath = "/gql" }, "are both"},
		{"duplicate admin socket", func(c *Config) { c.Server.AdminSubscriptionsPath = "/ws" }, "are both"},
		{"production without sentry", func(c *Config) { c.Environment = Production }, "sentry.dsn is required in production"},
		{"staging without sentry", func(c *Config) { c.Environment = Staging }, "sentry.dsn is required in staging"},
		{"production with sentry", func(c *Config) {
			c.Environment = Production
			c.Sentry.DSN = "https://public@sentry.example.com/1"
		}, ""},
		{"zero flush timeout", func(c *Config) {
			c.Sentry.DSN = "https://public@sentry.example.com/1"
			c.Sentry.FlushTimeout = 0
		}, "sentry.flush_timeout"},
		{"negative workers", func(c *Config) { c.Server.Workers = -1 }, "server.workers"},
		{"zero max age", func(c *Config) { c.LaunchParams.MaxAge = 0 }, "max_age"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestValidateDisabledSubscriptions(t *testing.T) {
	cfg := Default()
	cfg.LaunchParams.Credentials = "1:s1"
	cfg.Server.SubscriptionsPath = ""
	cfg.Server.AdminSubscriptionsPath = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty subscriptions_path should be valid: %v", err)
	}
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		workers, cpus, want int
	}{
		{0, 8, 0},
		{1, 8, 0},
		{4, 8, 4},
		{16, 8, 8},
		{4, 1, 0},
	}
	for _, test := range tests {
		got := ServerConfig{Workers: test.workers}.WorkerCount(test.cpus)
		if got != test.want {
			t.Errorf("WorkerCount(workers=%d, cpus=%d) = %d, want %d", test.workers, test.cpus, got, test.want)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LaunchParams.Credentials = "51234567:topsecret, 7:other"
	cfg.Sentry.DSN = "https://public@sentry.example.com/1"

	redacted := cfg.Redacted()
	if redacted.Sentry.DSN != "***" {
		t.Errorf("redacted dsn = %q", redacted.Sentry.DSN)
	}
	if redacted.LaunchParams.Credentials != "51234567:***,7:***" {
		t.Errorf("redacted credentials = %q", redacted.LaunchParams.Credentials)
	}
	if cfg.LaunchParams.Credentials != "51234567:topsecret, 7:other" {
		t.Error("Redacted modified the original")
	}
}
