package config_test

import (
	"testing"

	"github.com/nivexa/go-console-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "https", cfg.APIScheme)
	require.Equal(t, "console-api.nivexa.io", cfg.TenantDomain)
	require.Equal(t, "https://api.nivexa.io", cfg.DefaultOrigin)
	require.Equal(t, "./data/session.json", cfg.SessionFile)
	require.Empty(t, cfg.RedisURL)
	require.False(t, cfg.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONSOLE_API_SCHEME", "http")
	t.Setenv("CONSOLE_TENANT_DOMAIN", "console-api.example.com")
	t.Setenv("CONSOLE_DEFAULT_ORIGIN", "http://localhost:8000")
	t.Setenv("CONSOLE_DEBUG", "true")
	t.Setenv("CONSOLE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "http", cfg.APIScheme)
	require.Equal(t, "console-api.example.com", cfg.TenantDomain)
	require.Equal(t, "http://localhost:8000", cfg.DefaultOrigin)
	require.True(t, cfg.Debug)
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}
