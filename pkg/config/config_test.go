package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the test; an empty value would not fall back to
// the default.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	prev, ok := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	for _, key := range []string{"PORT", "TEXT_PROVIDER", "TEXT_RATE_LIMIT", "IMAGE_RATE_LIMIT", "RATE_LIMIT_WINDOW", "PROVIDER_TIMEOUT", "LIBRARY_CAP"} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini", cfg.Provider.Text)
	assert.Equal(t, 10, cfg.Limits.TextLimit)
	assert.Equal(t, 35, cfg.Limits.ImageLimit)
	assert.Equal(t, time.Minute, cfg.Limits.Window)
	assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 10, cfg.Storage.LibraryCap)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TEXT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("IMAGE_RATE_LIMIT", "5")
	t.Setenv("PROVIDER_TIMEOUT", "15s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Provider.APIKey(cfg.Provider.Text))
	assert.Equal(t, 5, cfg.Limits.ImageLimit)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "", cfg.Provider.APIKey("unknown"))
	assert.Equal(t, "OPENAI_API_KEY", CredentialEnv("openai"))
}
