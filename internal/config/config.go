package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for local-llm-server.
type Config struct {
	// HTTP Server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Redis (shared cache for the rate admission window)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Credential encryption
	EncryptionSecret string `env:"ENCRYPTION_SECRET,notEmpty"`

	// Identity
	IdentityHeader string `env:"IDENTITY_HEADER" envDefault:"X-Forwarded-User"`

	// Rate limiting
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RateLimitRequests <= 0 {
		return nil, errors.New("RATE_LIMIT_REQUESTS must be positive")
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, errors.New("RATE_LIMIT_WINDOW must be positive")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}
