package slashkit

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the framework configuration loaded from environment
// variables.
type Config struct {
	// SessionTTL is how long a session may stay untouched before it expires.
	// Zero disables time-based expiration entirely.
	SessionTTL time.Duration `env:"SLASHKIT_SESSION_TTL" envDefault:"15m"`
	// SweepInterval is how often expired sessions are proactively evicted.
	// Zero leaves eviction to lazy checks on access.
	SweepInterval time.Duration `env:"SLASHKIT_SWEEP_INTERVAL" envDefault:"1m"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
