// Package config loads server configuration from CARDGATE_* environment
// variables via envconfig. The struct is read-only after loading and
// safe for concurrent reads.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// HTTPAddr is the listen address for the API server.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Env selects dev or prod behavior (console logging, dev seeding).
	Env string `envconfig:"ENV" default:"dev"`

	// DBPath is the sqlite database file.
	DBPath string `envconfig:"DB_PATH" default:"./data/cardgate.db"`

	// LogLevel controls the zerolog level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DirectoryTimeout bounds any single directory lookup on the
	// decision path; past it the engine fails closed.
	DirectoryTimeout time.Duration `envconfig:"DIRECTORY_TIMEOUT" default:"2s"`

	// AuditTimeout bounds the audit append on the decision path.
	AuditTimeout time.Duration `envconfig:"AUDIT_TIMEOUT" default:"2s"`

	// HeartbeatRetentionDays is how long reader heartbeats are kept.
	// 0 keeps them forever.
	HeartbeatRetentionDays int `envconfig:"HEARTBEAT_RETENTION_DAYS" default:"30"`

	// PruneIntervalHours is how often the heartbeat pruner runs.
	PruneIntervalHours int `envconfig:"PRUNE_INTERVAL_HOURS" default:"6"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("cardgate", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	return cfg, nil
}

// MustLoad exits the process on invalid configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cardgate: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
