// Package config loads the backend's configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	// DatabaseURL selects PostgreSQL persistence; empty falls back to the
	// in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=1h"`

	ModelServiceURL        string        `env:"MODEL_SERVICE_URL,default=http://model:8000"`
	ModelTimeout           time.Duration `env:"MODEL_TIMEOUT,default=10s"`
	ModelMaxAttempts       int           `env:"MODEL_MAX_ATTEMPTS,default=3"`
	ModelMaxConcurrent     int           `env:"MODEL_MAX_CONCURRENT,default=16"`
	ModelRequestsPerSecond float64       `env:"MODEL_REQUESTS_PER_SECOND,default=0"`

	// RedisAddr enables the model list cache; empty disables it.
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	ModelListCacheTTL time.Duration `env:"MODEL_LIST_CACHE_TTL,default=30s"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
