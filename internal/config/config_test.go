package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, "http://localhost:8090", BaseURLFor(EnvDevelopment))
	assert.Equal(t, "https://api.storefront.local", BaseURLFor(EnvProduction))
	assert.Equal(t, "https://staging-api.storefront.local", BaseURLFor(EnvStaging))
	assert.Equal(t, BaseURLFor(EnvDevelopment), BaseURLFor("qa"))
}

func TestNewConfig_EnvSelectsBaseURL(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	cfg := NewConfig()
	assert.Equal(t, "https://api.storefront.local", cfg.APIBaseURL)

	t.Setenv("API_BASE_URL", "http://127.0.0.1:9999")
	cfg = NewConfig()
	assert.Equal(t, "http://127.0.0.1:9999", cfg.APIBaseURL)
}

func TestNewConfig_Durations(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT", "not-a-number")
	cfg := NewConfig()
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.RateLimit)
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, NewConfig().Validate())
	})

	t.Run("unknown env", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Env = "qa"
		assert.Error(t, cfg.Validate())
	})

	t.Run("base url must be http", func(t *testing.T) {
		cfg := NewConfig()
		cfg.APIBaseURL = "ftp://example.com"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := NewConfig()
		cfg.HTTPPort = "70000"
		assert.Error(t, cfg.Validate())
	})

	t.Run("file store needs a path", func(t *testing.T) {
		cfg := NewConfig()
		cfg.TokenStore = TokenStoreFile
		cfg.TokenFile = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("memory store ignores path", func(t *testing.T) {
		cfg := NewConfig()
		cfg.TokenStore = TokenStoreMemory
		cfg.TokenFile = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "env: staging\njwt_secret: ${STOREFRONT_TEST_SECRET}\ntoken_store: memory\nrequest_timeout: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Env)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, TokenStoreMemory, cfg.TokenStore)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
