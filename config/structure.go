// Package config loads and validates the SDK configuration from layered
// sources: defaults, an optional YAML file, and environment variables.
package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

type Config struct {
	App     AppConfig     `koanf:"app"`
	API     APIConfig     `koanf:"api"`
	Auth    AuthConfig    `koanf:"auth"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

type AppConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Env     string `koanf:"env"`
	Debug   bool   `koanf:"debug"`
}

type APIConfig struct {
	// BaseURL is the root of the ClipNotes REST API.
	BaseURL string `koanf:"base_url"`

	// Timeout is the base per-attempt request timeout.
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts bounds the total attempts per request.
	MaxAttempts int `koanf:"max_attempts"`

	// BackoffBase is the base delay for exponential retry backoff.
	BackoffBase time.Duration `koanf:"backoff_base"`

	// TimeoutGrowth is the per-retry timeout multiplier.
	TimeoutGrowth float64 `koanf:"timeout_growth"`
}

type AuthConfig struct {
	// RefreshBuffer is the window before expiry that triggers a proactive
	// token refresh.
	RefreshBuffer time.Duration `koanf:"refresh_buffer"`

	// RefreshInterval throttles refresh attempts to one per window.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// CreditsTTL bounds how long the cached credits count is trusted.
	CreditsTTL time.Duration `koanf:"credits_ttl"`
}

type StorageConfig struct {
	// Backend selects the persisted-state implementation: "memory" or "redis".
	Backend string      `koanf:"backend"`
	Redis   RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Password     string        `koanf:"password"`
	Database     int           `koanf:"database"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}
