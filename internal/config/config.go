// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App     App
	Backend Backend
	Poll    Poll
	Dir     Dir
	Metrics Metrics
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"VIDTRACK_APP_LOG_LEVEL" envDefault:"info"`
}

// Backend holds the backend HTTP endpoint configuration.
type Backend struct {
	// BaseURL is the root of the video-downloader backend, without trailing slash.
	BaseURL string `env:"VIDTRACK_BACKEND_BASE_URL" envDefault:"http://localhost:5000"`
	// RequestTimeout bounds a single backend request. Poll scheduling has its
	// own retry ceiling on top of this.
	RequestTimeout time.Duration `env:"VIDTRACK_BACKEND_REQUEST_TIMEOUT" envDefault:"30s"`
}

// Poll holds the progress poller timing configuration.
type Poll struct {
	// Interval is the delay between polls while a download is active.
	Interval time.Duration `env:"VIDTRACK_POLL_INTERVAL" envDefault:"500ms"`
	// ProcessingInterval is the delay used while the backend merges streams.
	ProcessingInterval time.Duration `env:"VIDTRACK_POLL_PROCESSING_INTERVAL" envDefault:"1s"`
	// NotFoundInterval is the delay before re-polling a not-yet-registered identifier.
	NotFoundInterval time.Duration `env:"VIDTRACK_POLL_NOT_FOUND_INTERVAL" envDefault:"1s"`
	// TransportInterval is the delay before re-polling after a transport failure.
	TransportInterval time.Duration `env:"VIDTRACK_POLL_TRANSPORT_INTERVAL" envDefault:"1500ms"`
	// MaxMisses caps consecutive not-found or transport failures per poller.
	MaxMisses int `env:"VIDTRACK_POLL_MAX_MISSES" envDefault:"10"`
}

// Dir holds local directory paths.
type Dir struct {
	// Downloads is where library files fetched from the backend are saved.
	Downloads string `env:"VIDTRACK_DIR_DOWNLOADS" envDefault:"./downloads"`
	// StateDB is the bbolt database holding tracked download records across restarts.
	StateDB string `env:"VIDTRACK_DIR_STATE_DB" envDefault:"./vidtrack.db"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (d *Dir) SetAbsPaths() error {
	var err error
	if d.Downloads, err = filepath.Abs(d.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	if d.StateDB, err = filepath.Abs(d.StateDB); err != nil {
		return fmt.Errorf("state db: %w", err)
	}

	return nil
}

// Metrics holds the Prometheus exposition configuration.
type Metrics struct {
	// Addr is the listen address for the metrics endpoint. Empty disables it.
	Addr string `env:"VIDTRACK_METRICS_ADDR" envDefault:""`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	return cfg, nil
}
