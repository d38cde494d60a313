package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skyvault/alertfeed/internal/errors"
)

// Config represents the complete alertfeed configuration.
type Config struct {
	// Logging configures output format and level.
	Logging LoggingConfig `yaml:"logging"`

	// Engine configures the alert engine.
	Engine EngineConfig `yaml:"engine"`

	// Store configures the persistence database.
	Store StoreConfig `yaml:"store"`

	// Stats configures runtime statistics.
	Stats StatsConfig `yaml:"stats"`

	// Export configures Parquet export of the alert log.
	Export ExportConfig `yaml:"export"`
}

// LoggingConfig configures output format and level.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects JSON output instead of human-readable text.
	JSON bool `yaml:"json"`
}

// EngineConfig configures the alert engine.
type EngineConfig struct {
	// MaxAlerts bounds the in-memory alert log.
	MaxAlerts int `yaml:"max_alerts"`

	// CatchupCount is the number of recent alerts fetched on session start.
	CatchupCount int `yaml:"catchup_count"`

	// Alerts enables or disables alert categories.
	Alerts AlertFlags `yaml:"alerts"`
}

// AlertFlags holds the per-category enable switches. Configuration only; the
// engine never mutates them.
type AlertFlags struct {
	// CloudEnabled is the master switch for cloud-drive alerts.
	CloudEnabled bool `yaml:"cloud_enabled"`

	// ContactsEnabled is the master switch for contact alerts.
	ContactsEnabled bool `yaml:"contacts_enabled"`

	CloudNewFiles     bool `yaml:"cloud_new_files"`
	CloudNewShare     bool `yaml:"cloud_new_share"`
	CloudDeletedShare bool `yaml:"cloud_deleted_share"`
	ContactsIncoming  bool `yaml:"contacts_incoming"`
	ContactsDeleted   bool `yaml:"contacts_deleted"`
	ContactsAccepted  bool `yaml:"contacts_accepted"`
}

// StoreConfig configures the persistence database.
type StoreConfig struct {
	// DSN is the database path; empty selects an in-memory database.
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// StatsConfig configures runtime statistics.
type StatsConfig struct {
	// PercentileAccuracy is the DDSketch relative accuracy.
	PercentileAccuracy float64 `yaml:"percentile_accuracy"`
}

// ExportConfig configures Parquet export of the alert log.
type ExportConfig struct {
	// Compression algorithm: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`

	// RowGroupSize is the target number of rows per row group.
	RowGroupSize int `yaml:"row_group_size"`
}

// Default returns a Config with documented defaults applied. All alert
// categories are enabled by default.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Engine: EngineConfig{
			MaxAlerts:    DefaultMaxAlerts,
			CatchupCount: DefaultCatchupCount,
			Alerts: AlertFlags{
				CloudEnabled:      true,
				ContactsEnabled:   true,
				CloudNewFiles:     true,
				CloudNewShare:     true,
				CloudDeletedShare: true,
				ContactsIncoming:  true,
				ContactsDeleted:   true,
				ContactsAccepted:  true,
			},
		},
		Store: StoreConfig{
			DSN:          DefaultStoreDSN,
			MaxOpenConns: DefaultMaxOpenConns,
		},
		Stats: StatsConfig{
			PercentileAccuracy: DefaultPercentileAccuracy,
		},
		Export: ExportConfig{
			Compression:  DefaultExportCompression,
			RowGroupSize: DefaultExportRowGroupSize,
		},
	}
}

// Load reads and parses a YAML config file, applying defaults for absent
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values. Every failure
// wraps errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: must be debug, info, warn or error: %w", c.Logging.Level, errors.ErrInvalidConfig)
	}
	if c.Engine.MaxAlerts <= 0 {
		return fmt.Errorf("engine.max_alerts %d: must be positive: %w", c.Engine.MaxAlerts, errors.ErrInvalidConfig)
	}
	if c.Engine.CatchupCount < 0 {
		return fmt.Errorf("engine.catchup_count %d: must not be negative: %w", c.Engine.CatchupCount, errors.ErrInvalidConfig)
	}
	if c.Store.MaxOpenConns <= 0 {
		return fmt.Errorf("store.max_open_conns %d: must be positive: %w", c.Store.MaxOpenConns, errors.ErrInvalidConfig)
	}
	if c.Stats.PercentileAccuracy <= 0 || c.Stats.PercentileAccuracy >= 1 {
		return fmt.Errorf("stats.percentile_accuracy %g: must be in (0, 1): %w", c.Stats.PercentileAccuracy, errors.ErrInvalidConfig)
	}
	switch c.Export.Compression {
	case "snappy", "zstd", "lz4", "gzip", "none":
	default:
		return fmt.Errorf("export.compression %q: must be snappy, zstd, lz4, gzip or none: %w", c.Export.Compression, errors.ErrInvalidConfig)
	}
	if c.Export.RowGroupSize <= 0 {
		return fmt.Errorf("export.row_group_size %d: must be positive: %w", c.Export.RowGroupSize, errors.ErrInvalidConfig)
	}
	return nil
}
