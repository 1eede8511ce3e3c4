package planit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the settings needed to stand the client up against a
// hosted backend.
type Config struct {
	// Endpoint is the websocket URL of the backend RPC channel.
	Endpoint string `env:"PLANIT_ENDPOINT"`

	// AccessToken authenticates the session; its claims also provide
	// the actor identity stamped into audit columns.
	AccessToken string `env:"PLANIT_ACCESS_TOKEN"`

	// ReconnectInterval is how often a dropped change-feed connection
	// is probed for reconnection. Zero disables reconnection.
	ReconnectInterval time.Duration `env:"PLANIT_RECONNECT_INTERVAL" envDefault:"5s"`

	// EvictionGrace is how long cache entries without interested
	// consumers are kept before eviction.
	EvictionGrace time.Duration `env:"PLANIT_EVICTION_GRACE" envDefault:"30s"`
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
