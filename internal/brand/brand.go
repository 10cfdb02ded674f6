// Package brand provides centralized naming and default paths for the tool.
package brand

import (
	"os"
	"path/filepath"
)

const (
	Name            = "policyctl"
	Description     = "Router rule and tenant policy management for Neutron-style networking APIs"
	ConfigEnvPrefix = "POLICYCTL"
	ConfigFileName  = "policyctl.hcl"
	DatabaseName    = "rules.db"
	MetricsFileName = "policyctl.prom"

	DefaultConfigDir = "/etc/policyctl"
	DefaultStateDir  = "/var/lib/policyctl"
)

// Set at build time via -ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: POLICYCTL_CONFIG_DIR > POLICYCTL_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: POLICYCTL_STATE_DIR > POLICYCTL_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return DefaultStateDir
}

// DefaultConfigPath is where the CLI looks for its config file.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// DefaultDatabasePath is the SQLite store used when store.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(GetStateDir(), DatabaseName)
}
