// Package config maps environment variables into the console client's
// runtime configuration.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds all runtime configuration for the console client.
type Config struct {
	AppName string `env:"CONSOLE_APP_NAME" envDefault:"Console Client"`
	Debug   bool   `env:"CONSOLE_DEBUG"    envDefault:"false"`

	// Host resolution: tenant calls go to {scheme}://{schema}.{tenant domain},
	// tenantless calls to the default origin.
	APIScheme     string `env:"CONSOLE_API_SCHEME"     envDefault:"https"`
	TenantDomain  string `env:"CONSOLE_TENANT_DOMAIN"  envDefault:"console-api.nivexa.io"`
	DefaultOrigin string `env:"CONSOLE_DEFAULT_ORIGIN" envDefault:"https://api.nivexa.io"`

	// Session persistence. RedisURL, when set, takes precedence over the file.
	SessionFile string `env:"CONSOLE_SESSION_FILE" envDefault:"./data/session.json"`
	RedisURL    string `env:"CONSOLE_REDIS_URL"`
	RedisKey    string `env:"CONSOLE_REDIS_KEY" envDefault:"console:session"`
}

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config: failed to parse environment variables")
	}
	return cfg, nil
}
