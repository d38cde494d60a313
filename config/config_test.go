package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skyvault/alertfeed/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Engine.MaxAlerts != DefaultMaxAlerts {
		t.Errorf("expected max_alerts %d, got %d", DefaultMaxAlerts, cfg.Engine.MaxAlerts)
	}
	f := cfg.Engine.Alerts
	for name, enabled := range map[string]bool{
		"cloud_enabled":       f.CloudEnabled,
		"contacts_enabled":    f.ContactsEnabled,
		"cloud_new_files":     f.CloudNewFiles,
		"cloud_new_share":     f.CloudNewShare,
		"cloud_deleted_share": f.CloudDeletedShare,
		"contacts_incoming":   f.ContactsIncoming,
		"contacts_deleted":    f.ContactsDeleted,
		"contacts_accepted":   f.ContactsAccepted,
	} {
		if !enabled {
			t.Errorf("category %s should default to enabled", name)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
engine:
  max_alerts: 50
  alerts:
    contacts_enabled: false
export:
  compression: snappy
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Engine.MaxAlerts != 50 {
		t.Errorf("expected max_alerts 50, got %d", cfg.Engine.MaxAlerts)
	}
	if cfg.Engine.Alerts.ContactsEnabled {
		t.Error("contacts_enabled should be overridden to false")
	}
	if cfg.Export.Compression != "snappy" {
		t.Errorf("expected compression snappy, got %q", cfg.Export.Compression)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Engine.CatchupCount != DefaultCatchupCount {
		t.Errorf("expected default catchup_count, got %d", cfg.Engine.CatchupCount)
	}
	if cfg.Export.RowGroupSize != DefaultExportRowGroupSize {
		t.Errorf("expected default row_group_size, got %d", cfg.Export.RowGroupSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero max alerts", func(c *Config) { c.Engine.MaxAlerts = 0 }},
		{"negative catchup", func(c *Config) { c.Engine.CatchupCount = -1 }},
		{"zero conns", func(c *Config) { c.Store.MaxOpenConns = 0 }},
		{"accuracy too high", func(c *Config) { c.Stats.PercentileAccuracy = 1.5 }},
		{"bad compression", func(c *Config) { c.Export.Compression = "brotli" }},
		{"zero row group", func(c *Config) { c.Export.RowGroupSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
