// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIToken      string `yaml:"api_token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	Default string         `yaml:"default"` // pawapay | campay
	PawaPay ProviderConfig `yaml:"pawapay"`
	Campay  ProviderConfig `yaml:"campay"`
}

type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	InitiatePerHour int `yaml:"initiate_per_hour"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Payment    PaymentConfig    `yaml:"payment"`
	Poller     PollerConfig     `yaml:"poller"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Payment.Default == "" {
		cfg.Payment.Default = "pawapay"
	}
	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = 5 * time.Second
	}
	if cfg.Poller.MaxAttempts <= 0 {
		cfg.Poller.MaxAttempts = 60 // 5 minutes at the default interval
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.RateLimit.InitiatePerHour <= 0 {
		cfg.RateLimit.InitiatePerHour = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Payment.PawaPay.APIToken == "" && cfg.Payment.Campay.APIToken == "" {
		return nil, errors.New("at least one payment provider token is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
