package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantclub/paperledger/internal/domain/risk"
	"github.com/quantclub/paperledger/internal/prices"
	"github.com/quantclub/paperledger/internal/store/postgres"
)

// Config is the full engine configuration loaded from engine.yaml.
type Config struct {
	Database postgres.Config     `yaml:"database"`
	Feed     prices.ClientConfig `yaml:"feed"`
	Redis    RedisConfig         `yaml:"redis"`
	Risk     risk.Config         `yaml:"risk"`
	Session  SessionConfig       `yaml:"session"`
	HTTP     HTTPConfig          `yaml:"http"`
}

// RedisConfig configures the optional shared quote cache.
type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// SessionConfig tunes the per-profile scheduler cadences.
type SessionConfig struct {
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	SnapshotWindow      time.Duration `yaml:"snapshot_window"`
	SnapshotDebounce    time.Duration `yaml:"snapshot_debounce"`
	ScoreDriftThreshold float64       `yaml:"score_drift_threshold"`
	ScoreStaleAfter     time.Duration `yaml:"score_stale_after"`
	MaxShortExposure    float64       `yaml:"max_short_exposure"` // multiple of equity
}

// HTTPConfig configures the read-only API server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: postgres.DefaultConfig(),
		Feed:     prices.DefaultClientConfig(),
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Risk: risk.DefaultConfig(),
		Session: SessionConfig{
			RefreshInterval:     20 * time.Second,
			SnapshotWindow:      time.Hour,
			SnapshotDebounce:    3 * time.Second,
			ScoreDriftThreshold: 0.5,
			ScoreStaleAfter:     12 * time.Hour,
			MaxShortExposure:    1.0,
		},
		HTTP: HTTPConfig{
			Host: "127.0.0.1", // local-only by default
			Port: 8080,
		},
	}
}

// Load reads an engine.yaml file over the defaults. A missing path
// yields plain defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero values left by a sparse YAML file.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Session.RefreshInterval <= 0 {
		c.Session.RefreshInterval = def.Session.RefreshInterval
	}
	if c.Session.SnapshotWindow <= 0 {
		c.Session.SnapshotWindow = def.Session.SnapshotWindow
	}
	if c.Session.SnapshotDebounce <= 0 {
		c.Session.SnapshotDebounce = def.Session.SnapshotDebounce
	}
	if c.Session.ScoreDriftThreshold <= 0 {
		c.Session.ScoreDriftThreshold = def.Session.ScoreDriftThreshold
	}
	if c.Session.ScoreStaleAfter <= 0 {
		c.Session.ScoreStaleAfter = def.Session.ScoreStaleAfter
	}
	if c.Session.MaxShortExposure <= 0 {
		c.Session.MaxShortExposure = def.Session.MaxShortExposure
	}
	if c.Risk.PeriodsPerYear <= 0 {
		c.Risk.PeriodsPerYear = def.Risk.PeriodsPerYear
	}
	if c.Risk.RiskFreeRate == 0 {
		c.Risk.RiskFreeRate = def.Risk.RiskFreeRate
	}
	if c.Feed.RequestTimeout <= 0 {
		c.Feed.RequestTimeout = def.Feed.RequestTimeout
	}
	if c.Feed.RateLimit <= 0 {
		c.Feed.RateLimit = def.Feed.RateLimit
	}
	if c.Feed.Burst <= 0 {
		c.Feed.Burst = def.Feed.Burst
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = def.Redis.TTL
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = def.HTTP.Host
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
	if c.Database.QueryTimeout <= 0 {
		c.Database.QueryTimeout = def.Database.QueryTimeout
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = def.Database.MaxIdleConns
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = def.Database.ConnMaxLifetime
	}
}
