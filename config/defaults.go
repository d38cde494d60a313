// Package config provides configuration defaults and loading
// for the alertfeed engine.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml.
package config

// =============================================================================
// Engine Defaults
// =============================================================================

const (
	// DefaultMaxAlerts bounds the in-memory alert log. After any mutating
	// operation the log holds at most this many alerts; the oldest are
	// trimmed first.
	// Override via config: engine.max_alerts
	DefaultMaxAlerts = 200

	// DefaultCatchupCount is the number of recent alerts requested from the
	// service on session start.
	// Override via config: engine.catchup_count
	DefaultCatchupCount = 50
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStoreDSN opens an in-memory database when no path is configured.
	// Override via config: store.dsn
	DefaultStoreDSN = ""

	// DefaultMaxOpenConns is the maximum number of open database connections.
	// The engine is single-threaded, so one connection suffices.
	// Override via config: store.max_open_conns
	DefaultMaxOpenConns = 1

	// DefaultMaxRecordSize refuses persisted alert records larger than this.
	// A single alert record is normally well under 1 KiB.
	DefaultMaxRecordSize = 1 * 1024 * 1024
)

// =============================================================================
// Stats Defaults
// =============================================================================

const (
	// DefaultPercentileAccuracy is the DDSketch relative accuracy used for
	// commit-latency percentiles (0.01 = 1% error).
	// Override via config: stats.percentile_accuracy
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportCompression is the Parquet compression algorithm used by
	// alert-log export: snappy, zstd, lz4, gzip or none.
	// Override via config: export.compression
	DefaultExportCompression = "zstd"

	// DefaultExportRowGroupSize is the target number of rows per Parquet
	// row group. The alert log is bounded, so one group holds everything.
	DefaultExportRowGroupSize = 1024
)
