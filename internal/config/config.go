// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server's environment-driven settings. Defaults match the
// hub's reliability contract.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/hub.db"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15s"`
	DedupWindow   time.Duration `env:"DEDUP_WINDOW" envDefault:"5s"`
	DedupCapacity int           `env:"DEDUP_CAPACITY" envDefault:"1000"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
