package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	MaxSessionsPerUser int `env:"MAX_SESSIONS_PER_USER" envDefault:"5"`
	AccessTokenTTLMins int `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"120"`
	SessionTTLHours    int `env:"SESSION_TTL_HOURS" envDefault:"720"`
	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND" envDefault:"5"`
	SweepIntervalHours int `env:"SWEEP_INTERVAL_HOURS" envDefault:"168"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMins) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours) * time.Hour
}

func (c *Config) Validate() error {
	if c.MaxSessionsPerUser < 1 {
		return fmt.Errorf("MAX_SESSIONS_PER_USER must be at least 1")
	}
	if c.RateLimitPerSecond < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be at least 1")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
