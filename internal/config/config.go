// Package config loads TraceTrack's runtime configuration from environment
// variables, per spec §6.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	Host string `env:"TRACETRACK_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"TRACETRACK_PORT" envDefault:"8080"`

	DatabaseURL   string `env:"DATABASE_URL,required"`
	SessionSecret string `env:"SESSION_SECRET,required"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	IdleSessionSecs     int `env:"IDLE_SESSION_SECS" envDefault:"1800"`
	AbsoluteSessionSecs int `env:"ABSOLUTE_SESSION_SECS" envDefault:"3600"`

	LockoutThreshold  int `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindowSecs int `env:"LOCKOUT_WINDOW_SECS" envDefault:"900"`

	PoolSize     int `env:"POOL_SIZE" envDefault:"50"`
	PoolOverflow int `env:"POOL_OVERFLOW" envDefault:"100"`

	RateLimitDefault string `env:"RATE_LIMIT_DEFAULT" envDefault:"500/hour"`
	RateLimitLogin   string `env:"RATE_LIMIT_LOGIN" envDefault:"10/min"`

	// AdminPassword, if set, seeds the initial admin account on first boot.
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Enable2FA bool `env:"ENABLE_2FA" envDefault:"true"`

	ParentWeightKG float64 `env:"PARENT_WEIGHT_KG" envDefault:"30"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
