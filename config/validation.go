package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Storage backend constants
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if err := validateAPI(&cfg.API); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if cfg.Version == "" {
		return fmt.Errorf("app version is required")
	}

	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(validEnvs, cfg.Env) {
		return fmt.Errorf("invalid environment: %s (must be one of %v)", cfg.Env, validEnvs)
	}

	return nil
}

func validateAPI(cfg *APIConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid api base URL: %s", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}

	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("api max attempts must be at least 1")
	}

	if cfg.BackoffBase <= 0 {
		return fmt.Errorf("api backoff base must be positive")
	}

	if cfg.TimeoutGrowth < 1 {
		return fmt.Errorf("api timeout growth must be at least 1")
	}

	return nil
}

func validateAuth(cfg *AuthConfig) error {
	if cfg.RefreshBuffer < 0 {
		return fmt.Errorf("refresh buffer cannot be negative")
	}

	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}

	if cfg.CreditsTTL <= 0 {
		return fmt.Errorf("credits TTL must be positive")
	}

	return nil
}

func validateStorage(cfg *StorageConfig) error {
	switch cfg.Backend {
	case BackendMemory:
		return nil
	case BackendRedis:
		if cfg.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis backend")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage backend: %s (must be %q or %q)", cfg.Backend, BackendMemory, BackendRedis)
	}
}

func validateLog(cfg *LogConfig) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	if !slices.Contains(validLevels, cfg.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	return nil
}
