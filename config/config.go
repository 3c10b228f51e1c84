package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes the environment variables read by Load.
const envPrefix = "CLIPNOTES_"

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration file
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile loads configuration using the given YAML file path. The file is
// optional; defaults and environment variables still apply.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// YAML file is optional
	if path != "" {
		_ = k.Load(file.Provider(path), yaml.Parser())
	}

	// Environment variables (highest priority):
	// CLIPNOTES_API_BASE_URL -> api.base_url is not expressible with a
	// plain separator swap, so nested keys use double underscores:
	// CLIPNOTES_API__BASE_URL -> api.base_url
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, envPrefix)
			key = strings.ToLower(key)
			key = strings.ReplaceAll(key, "__", ".")
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "clipnotes-client",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,
		"app.debug":   false,

		"api.base_url":       "https://api.clipnotes.app/v1",
		"api.timeout":        "10s",
		"api.max_attempts":   5,
		"api.backoff_base":   "2s",
		"api.timeout_growth": 1.5,

		"auth.refresh_buffer":   "5m",
		"auth.refresh_interval": "60s",
		"auth.credits_ttl":      "5m",

		"storage.backend": BackendMemory,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Raw exposes the underlying koanf instance for custom keys.
func (c *Config) Raw() *koanf.Koanf {
	return c.k
}
