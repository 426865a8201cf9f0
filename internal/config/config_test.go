package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "provider: git\n")

	cfg, err := LoadConfig(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ProviderGit, cfg.Provider)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, 10*time.Minute, cfg.Cache.GetCloneTimeout())
	assert.Equal(t, 2*time.Minute, cfg.Cache.GetFetchTimeout())
	assert.Nil(t, cfg.Auth)
}

func TestLoadConfigFull(t *testing.T) {
	t.Parallel()

	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("glpat-abc\n"), 0o600))

	path := writeConfigFile(t, `
server:
  address: ":9090"
provider: api
cache:
  dir: /var/cache/repolens
  cloneTimeout: 5m
  fetchTimeout: 30s
auth:
  username: bot
  tokenFile: `+tokenFile+`
metrics:
  enabled: true
`)

	cfg, err := LoadConfig(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, ProviderAPI, cfg.Provider)
	assert.Equal(t, "/var/cache/repolens", cfg.Cache.Dir)
	assert.Equal(t, 5*time.Minute, cfg.Cache.GetCloneTimeout())
	assert.Equal(t, 30*time.Second, cfg.Cache.GetFetchTimeout())
	require.NotNil(t, cfg.Auth)
	assert.Equal(t, "bot", cfg.Auth.GetUsername())

	token, err := cfg.Auth.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "glpat-abc", token)

	require.NotNil(t, cfg.Metrics)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown provider",
			content: "provider: svn\n",
			errMsg:  "provider must be",
		},
		{
			name:    "bad clone timeout",
			content: "cache:\n  cloneTimeout: soon\n",
			errMsg:  "cloneTimeout",
		},
		{
			name:    "bad fetch timeout",
			content: "cache:\n  fetchTimeout: whenever\n",
			errMsg:  "fetchTimeout",
		},
		{
			name:    "missing token file",
			content: "auth:\n  tokenFile: /nonexistent/token\n",
			errMsg:  "failed to read token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfigFile(t, tt.content)
			cfg, err := LoadConfig(WithConfigPath(path))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestLoadConfigRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestGetTokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "env-token")

	auth := &AuthConfig{}
	token, err := auth.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

func TestGetTokenUnconfigured(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	auth := &AuthConfig{}
	_, err := auth.GetToken()
	require.Error(t, err)
}

func TestGetUsernameDefault(t *testing.T) {
	t.Parallel()

	var auth *AuthConfig
	assert.Equal(t, "oauth2", auth.GetUsername())
	assert.Equal(t, "oauth2", (&AuthConfig{}).GetUsername())
	assert.Equal(t, "svc", (&AuthConfig{Username: "svc"}).GetUsername())
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ProviderGit, cfg.Provider)
	assert.NotEmpty(t, cfg.Cache.Dir)
}
