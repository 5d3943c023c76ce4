// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultSessionSecret = "secret-key-change-in-production"

// Config holds everything main needs to wire the service.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT"    envDefault:"8080"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`

	RedisAddr        string        `env:"REDIS_ADDR"         envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB"           envDefault:"0"`
	GrantCacheTTL    time.Duration `env:"GRANT_CACHE_TTL"    envDefault:"30s"`
	EventHistorySize int64         `env:"EVENT_HISTORY_SIZE" envDefault:"200"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"secret-key-change-in-production"`
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin123"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `env:"VAPID_SUBSCRIBER" envDefault:"mailto:admin@example.com"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	OTelEndpoint   string        `env:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file and then the environment. Values already
// set in the environment win over the file.
func Load(files ...string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Validate rejects combinations the service cannot run with.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if c.Production() && c.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
