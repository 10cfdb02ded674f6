package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
log_level = "debug"
log_json  = true

api {
  endpoint = "https://neutron.example:9696"
  token    = "secret"
  timeout  = "5s"
}

store {
  backend = "api"
}

metrics {
  enabled  = true
  textfile = "/var/lib/node_exporter/policyctl.prom"
}
`

func TestLoadHCL(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "policyctl.hcl")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	require.NotNil(t, cfg.API)
	assert.Equal(t, "https://neutron.example:9696", cfg.API.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.API.TimeoutDuration())
	assert.Equal(t, BackendAPI, cfg.Backend())
	require.NotNil(t, cfg.Metrics)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Validate())
}

func TestLoadHCL_ParseError(t *testing.T) {
	_, err := LoadHCL([]byte(`api {`), "broken.hcl")
	assert.Error(t, err)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policyctl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"store":{"backend":"memory"}}`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policyctl.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`store { backend = "etcd" }`), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"default ok without endpoint", *Default(), ""},
		{"bad backend", Config{Store: &StoreConfig{Backend: "etcd"}}, "Backend"},
		{"bad url", Config{API: &APIConfig{Endpoint: "not a url"}}, "Endpoint"},
		{"bad timeout", Config{API: &APIConfig{Endpoint: "http://x", Timeout: "soon"}}, "api.timeout"},
		{"bad fingerprint", Config{API: &APIConfig{Endpoint: "http://x", Fingerprint: "abc"}}, "Fingerprint"},
		{"bad level", Config{LogLevel: "loud", Store: &StoreConfig{Backend: BackendMemory}}, "LogLevel"},
		{"metrics needs textfile", Config{Store: &StoreConfig{Backend: BackendMemory}, Metrics: &MetricsConfig{Enabled: true}}, "metrics.textfile"},
		{"memory ok", Config{Store: &StoreConfig{Backend: BackendMemory}}, ""},
		{"sqlite ok", Config{Store: &StoreConfig{Backend: BackendSQLite, Path: "/tmp/r.db"}}, ""},
		{"sqlite default path", Config{Store: &StoreConfig{Backend: BackendSQLite}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.False(t, errs.HasErrors(), "unexpected errors: %v", errs)
				return
			}
			require.True(t, errs.HasErrors())
			assert.Contains(t, errs.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvEndpoint: "https://override:9696", EnvToken: "tok"}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	require.NotNil(t, cfg.API)
	assert.Equal(t, "https://override:9696", cfg.API.Endpoint)
	assert.Equal(t, "tok", cfg.API.Token)
	assert.False(t, cfg.Validate().HasErrors())
}

func TestTimeoutDuration_Default(t *testing.T) {
	var api *APIConfig
	assert.Equal(t, DefaultTimeout, api.TimeoutDuration())
	assert.Equal(t, DefaultTimeout, (&APIConfig{Timeout: "-1s"}).TimeoutDuration())
}

func TestLoadOrDefault_Missing(t *testing.T) {
	t.Setenv(EnvEndpoint, "http://127.0.0.1:9696")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cfg.API.Endpoint, "http://127.0.0.1"))
}
