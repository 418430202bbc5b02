package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Supported values of config.Backend.
const (
	backendMemory    = "memory"
	backendPostgres  = "postgres"
	backendSQLite    = "sqlite"
	backendFirestore = "firestore"
)

type config struct {
	Backend     string `default:"memory" required:"true"`
	Development bool   `default:"false"`

	Postgres struct {
		URL string
	}

	SQLite struct {
		Path string `default:"tracker.db"`
	}

	Firestore struct {
		ProjectID string `split_words:"true"`
	}

	// Worker checkpoints are kept in NATS JetStream when URL is set,
	// in the backend otherwise.
	NATS struct {
		URL    string
		Bucket string `default:"tracker_worker_checkpoints"`
	}

	Twitter struct {
		BaseURL     string        `split_words:"true" default:"https://api.twitter.com"`
		BearerToken string        `split_words:"true"`
		Timeout     time.Duration `default:"10s"`
	}

	Poll struct {
		Interval    time.Duration `default:"100ms"`
		MaxInterval time.Duration `split_words:"true" default:"5s"`
	}

	Metrics struct {
		Address string `default:":9090" required:"true"`
	}

	// Twitter user ids requested when the process starts.
	RequestUsers []string `split_words:"true"`
}

func parseConfig() (*config, error) {
	var config config

	if err := envconfig.Process("tracker", &config); err != nil {
		return nil, fmt.Errorf("config: failed to parse from env, %w", err)
	}

	switch config.Backend {
	case backendMemory, backendSQLite:
	case backendPostgres:
		if config.Postgres.URL == "" {
			return nil, fmt.Errorf("config: TRACKER_POSTGRES_URL is required by the %s backend", config.Backend)
		}
	case backendFirestore:
		if config.Firestore.ProjectID == "" {
			return nil, fmt.Errorf("config: TRACKER_FIRESTORE_PROJECT_ID is required by the %s backend", config.Backend)
		}
	default:
		return nil, fmt.Errorf("config: unsupported backend %q", config.Backend)
	}

	return &config, nil
}
