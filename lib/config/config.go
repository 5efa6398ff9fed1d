// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "MINIAPP_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Local      Environment = "local"
	Staging    Environment = "staging"
	Production Environment = "production"
)

// Config is the server configuration.
type Config struct {
	Environment  Environment        `yaml:"environment"`
	Server       ServerConfig       `yaml:"server"`
	LaunchParams LaunchParamsConfig `yaml:"launch_params"`
	Sentry       SentryConfig       `yaml:"sentry"`
	Log          LogConfig          `yaml:"log"`

	Local      *Overrides `yaml:"local,omitempty"`
	Staging    *Overrides `yaml:"staging,omitempty"`
	Production *Overrides `yaml:"production,omitempty"`
}

// ServerConfig configures the HTTP listener and the process model.
type ServerConfig struct {
	// Address is the TCP listen address shared by every worker.
	Address string `yaml:"address"`

	// EnableCORS installs a permissive CORS middleware.
	EnableCORS bool `yaml:"enable_cors"`

	PublicPath string `yaml:"public_path"`
	AdminPath  string `yaml:"admin_path"`

	// SubscriptionsPath serves WebSocket subscriptions. Empty disables
	// them.
	SubscriptionsPath string `yaml:"subscriptions_path"`

	// AdminSubscriptionsPath serves WebSocket subscriptions to
	// administrators only. Empty disables them.
	AdminSubscriptionsPath string `yaml:"admin_subscriptions_path"`

	// Workers is an upper bound on worker processes; see WorkerCount.
	// Zero or one runs everything in a single process.
	Workers int `yaml:"workers"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WorkerCount returns min(numCPU, Workers), or 0 when the server
// should run in a single process.
func (s ServerConfig) WorkerCount(numCPU int) int {
	count := min(s.Workers, numCPU)
	if count <= 1 {
		return 0
	}
	return count
}

// LaunchParamsConfig configures launch-parameter verification.
type LaunchParamsConfig struct {
	ExpirationEnabled bool          `yaml:"expiration_enabled"`
	MaxAge            time.Duration `yaml:"max_age"`

	// Credentials is an inline "appId:secret[,appId:secret...]" list.
	Credentials string `yaml:"credentials"`

	// SealedCredentialsFile holds the same list encrypted with age.
	// Takes precedence over Credentials when set.
	SealedCredentialsFile string `yaml:"sealed_credentials_file"`

	// IdentityFile is the age identity that opens SealedCredentialsFile.
	IdentityFile string `yaml:"identity_file"`
}

// SentryConfig configures error reporting to Sentry. With an empty DSN
// reports only reach the log.
type SentryConfig struct {
	// DSN is required in staging and production.
	DSN string `yaml:"dsn"`

	// FlushTimeout bounds the wait for queued events at shutdown.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is json, text, or auto.
	Format string `yaml:"format"`
}

// Overrides holds the fields an environment section may replace. Nil
// pointers leave the base value alone.
type Overrides struct {
	Server       *ServerOverrides       `yaml:"server,omitempty"`
	LaunchParams *LaunchParamsOverrides `yaml:"launch_params,omitempty"`
	Sentry       *SentryOverrides       `yaml:"sentry,omitempty"`
	Log          *LogConfig             `yaml:"log,omitempty"`
}

type SentryOverrides struct {
	DSN *string `yaml:"dsn,omitempty"`
}

type ServerOverrides struct {
	Address    *string `yaml:"address,omitempty"`
	EnableCORS *bool   `yaml:"enable_cors,omitempty"`
	Workers    *int    `yaml:"workers,omitempty"`
}

type LaunchParamsOverrides struct {
	ExpirationEnabled     *bool          `yaml:"expiration_enabled,omitempty"`
	MaxAge                *time.Duration `yaml:"max_age,omitempty"`
	Credentials           *string        `yaml:"credentials,omitempty"`
	SealedCredentialsFile *string        `yaml:"sealed_credentials_file,omitempty"`
	IdentityFile          *string        `yaml:"identity_file,omitempty"`
}

// Default returns the values used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Environment: Local,
		Server: ServerConfig{
			Address:           ":8000",
			PublicPath:        "/gql",
			AdminPath:         "/gql-adm",
			SubscriptionsPath:      "/ws",
			AdminSubscriptionsPath: "/ws-adm",
			Workers:                1,
			ShutdownTimeout:        10 * time.Second,
		},
		LaunchParams: LaunchParamsConfig{
			ExpirationEnabled: true,
			MaxAge:            24 * time.Hour,
		},
		Sentry: SentryConfig{
			FlushTimeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by MINIAPP_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of the server config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies the matching
// environment section, and expands variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is LoadFile without the file.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Local:
		overrides = c.Local
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			enabled := true
			overrides = &Overrides{
				LaunchParams: &LaunchParamsOverrides{ExpirationEnabled: &enabled},
			}
		}
	}
	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		setIfPresent(&c.Server.Address, server.Address)
		setIfPresent(&c.Server.EnableCORS, server.EnableCORS)
		setIfPresent(&c.Server.Workers, server.Workers)
	}
	if params := overrides.LaunchParams; params != nil {
		setIfPresent(&c.LaunchParams.ExpirationEnabled, params.ExpirationEnabled)
		setIfPresent(&c.LaunchParams.MaxAge, params.MaxAge)
		setIfPresent(&c.LaunchParams.Credentials, params.Credentials)
		setIfPresent(&c.LaunchParams.SealedCredentialsFile, params.SealedCredentialsFile)
		setIfPresent(&c.LaunchParams.IdentityFile, params.IdentityFile)
	}
	if sentry := overrides.Sentry; sentry != nil {
		setIfPresent(&c.Sentry.DSN, sentry.DSN)
	}
	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

func setIfPresent[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}

func (c *Config) expandVariables() {
	c.Server.Address = expandVars(c.Server.Address)
	c.LaunchParams.Credentials = expandVars(c.LaunchParams.Credentials)
	c.LaunchParams.SealedCredentialsFile = expandVars(c.LaunchParams.SealedCredentialsFile)
	c.LaunchParams.IdentityFile = expandVars(c.LaunchParams.IdentityFile)
	c.Sentry.DSN = expandVars(c.Sentry.DSN)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}. An unset or empty
// variable yields the default, or the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "json", "text"}
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Local, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Server.Address == "" {
		errs = append(errs, fmt.Errorf("server.address is required"))
	}
	paths := map[string]string{
		"server.public_path": c.Server.PublicPath,
		"server.admin_path":  c.Server.AdminPath,
	}
	if c.Server.SubscriptionsPath != "" {
		paths["server.subscriptions_path"] = c.Server.SubscriptionsPath
	}
	if c.Server.AdminSubscriptionsPath != "" {
		paths["server.admin_subscriptions_path"] = c.Server.AdminSubscriptionsPath
	}
	seen := make(map[string]string, len(paths))
	for _, field := range []string{
		"server.public_path",
		"server.admin_path",
		"server.subscriptions_path",
		"server.admin_subscriptions_path",
	} {
		path, ok := paths[field]
		if !ok {
			continue
		}
		if !strings.HasPrefix(path, "/") || path == "/" {
			errs = append(errs, fmt.Errorf("%s must be an absolute path other than /, got %q", field, path))
			continue
		}
		if other, dup := seen[path]; dup {
			errs = append(errs, fmt.Errorf("%s and %s are both %q", other, field, path))
		}
		seen[path] = field
	}
	if c.Server.Workers < 0 {
		errs = append(errs, fmt.Errorf("server.workers must not be negative, got %d", c.Server.Workers))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive"))
	}

	params := c.LaunchParams
	if params.ExpirationEnabled && params.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("launch_params.max_age must be positive when expiration is enabled"))
	}
	switch {
	case params.SealedCredentialsFile != "":
		if params.IdentityFile == "" {
			errs = append(errs, fmt.Errorf("launch_params.identity_file is required with sealed_credentials_file"))
		}
	case strings.TrimSpace(params.Credentials) == "":
		errs = append(errs, fmt.Errorf("launch_params.credentials or launch_params.sealed_credentials_file is required"))
	}

	switch {
	case c.Sentry.DSN == "" && (c.Environment == Staging || c.Environment == Production):
		errs = append(errs, fmt.Errorf("sentry.dsn is required in %s", c.Environment))
	case c.Sentry.DSN != "" && c.Sentry.FlushTimeout <= 0:
		errs = append(errs, fmt.Errorf("sentry.flush_timeout must be positive"))
	}

	if !contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// Redacted returns a copy with every tenant secret and the Sentry DSN
// masked. The app ids
// stay visible so operators can tell which tenants are configured.
func (c *Config) Redacted() *Config {
	copied := *c
	copied.Local, copied.Staging, copied.Production = nil, nil, nil
	copied.LaunchParams.Credentials = redactCredentials(c.LaunchParams.Credentials)
	if copied.Sentry.DSN != "" {
		copied.Sentry.DSN = "***"
	}
	return &copied
}

func redactCredentials(list string) string {
	if strings.TrimSpace(list) == "" {
		return ""
	}
	entries := strings.Split(list, ",")
	for index, entry := range entries {
		appID, _, _ := strings.Cut(strings.TrimSpace(entry), ":")
		entries[index] = appID + ":***"
	}
	return strings.Join(entries, ",")
}
