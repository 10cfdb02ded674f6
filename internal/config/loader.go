package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoadFile loads a config file (HCL or JSON), applies environment overrides
// and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = LoadJSON(data)
	default:
		cfg, err = LoadHCL(data, path)
	}
	if err != nil {
		return nil, err
	}

	return finish(cfg)
}

// LoadOrDefault loads path when it is set and exists; otherwise it starts
// from Default. Environment overrides always apply.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return finish(Default())
}

// LoadHCL decodes config from HCL bytes without validating it.
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	cfg := Default()
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}
	return cfg, nil
}

// LoadJSON decodes config from JSON bytes without validating it.
func LoadJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv(os.Getenv)
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid config: %w", errs)
	}
	return cfg, nil
}

// ApplyEnv overrides API settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	endpoint := getenv(EnvEndpoint)
	token := getenv(EnvToken)
	if endpoint == "" && token == "" {
		return
	}
	if c.API == nil {
		c.API = &APIConfig{}
	}
	if endpoint != "" {
		c.API.Endpoint = endpoint
	}
	if token != "" {
		c.API.Token = token
	}
}
