package config

import (
	"time"
)

// Store backends.
const (
	BackendAPI    = "api"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultTimeout bounds each request to the networking API.
const DefaultTimeout = 30 * time.Second

// Environment overrides.
const (
	EnvEndpoint = "POLICYCTL_ENDPOINT"
	EnvToken    = "POLICYCTL_TOKEN"
)

// Config is the top-level tool configuration.
type Config struct {
	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	LogJSON  bool   `hcl:"log_json,optional" json:"log_json,omitempty"`

	API     *APIConfig     `hcl:"api,block" json:"api,omitempty"`
	Store   *StoreConfig   `hcl:"store,block" json:"store,omitempty"`
	Metrics *MetricsConfig `hcl:"metrics,block" json:"metrics,omitempty"`
}

// APIConfig describes how to reach the networking API.
type APIConfig struct {
	Endpoint string `hcl:"endpoint" json:"endpoint" validate:"omitempty,url"`
	Token    string `hcl:"token,optional" json:"token,omitempty"`
	Timeout  string `hcl:"timeout,optional" json:"timeout,omitempty"` // Go duration, e.g. "30s"

	// Fingerprint pins the server certificate (SHA-256 hex). Empty means
	// system trust roots are used.
	Fingerprint string `hcl:"fingerprint,optional" json:"fingerprint,omitempty" validate:"omitempty,hexadecimal,len=64"`
}

// TimeoutDuration returns the parsed timeout, or DefaultTimeout when unset.
func (a *APIConfig) TimeoutDuration() time.Duration {
	if a == nil || a.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// StoreConfig selects where rule collections live.
type StoreConfig struct {
	Backend string `hcl:"backend,optional" json:"backend,omitempty" validate:"omitempty,oneof=api sqlite memory"`
	Path    string `hcl:"path,optional" json:"path,omitempty"` // SQLite database file
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled  bool   `hcl:"enabled,optional" json:"enabled,omitempty"`
	Textfile string `hcl:"textfile,optional" json:"textfile,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Store:    &StoreConfig{Backend: BackendAPI},
	}
}

// Backend returns the configured store backend, defaulting to the API.
func (c *Config) Backend() string {
	if c.Store == nil || c.Store.Backend == "" {
		return BackendAPI
	}
	return c.Store.Backend
}
