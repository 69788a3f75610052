package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the complete file-based configuration.
type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Staging StagingConfig `toml:"staging"`
	Policy  PolicyConfig  `toml:"policy"`
}

// GatewayConfig contains the accounting gateway connection settings.
type GatewayConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StagingConfig tunes document ingestion and duplicate detection.
type StagingConfig struct {
	InboxBucket        string  `toml:"inbox_bucket"`
	ArchiveBucket      string  `toml:"archive_bucket"`
	ScanIntervalMin    int     `toml:"scan_interval_minutes"`
	DateWindowDays     int     `toml:"date_window_days"`
	AmountToleranceCts int64   `toml:"amount_tolerance_cents"`
	PairingTolerance   float64 `toml:"pairing_amount_tolerance"`
}

// PolicyConfig carries policy knobs that are not per-vendor.
type PolicyConfig struct {
	// ReportBasisOverride forces the job cost basis instead of asking the
	// backend. Empty means "ask the backend".
	ReportBasisOverride string `toml:"report_basis_override"`
	SnapshotRefreshMin  int    `toml:"snapshot_refresh_minutes"`
}

// Load reads configuration from a TOML file and applies defaults.
func Load(filename string) (*Config, error) {
	config := &Config{}
	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 30
	}
	if c.Staging.InboxBucket == "" {
		c.Staging.InboxBucket = "documents-inbox"
	}
	if c.Staging.ArchiveBucket == "" {
		c.Staging.ArchiveBucket = "documents-archive"
	}
	if c.Staging.ScanIntervalMin == 0 {
		c.Staging.ScanIntervalMin = 5
	}
	if c.Staging.DateWindowDays == 0 {
		c.Staging.DateWindowDays = 3
	}
	if c.Staging.AmountToleranceCts == 0 {
		c.Staging.AmountToleranceCts = 100
	}
	if c.Staging.PairingTolerance == 0 {
		c.Staging.PairingTolerance = 1.00
	}
	if c.Policy.SnapshotRefreshMin == 0 {
		c.Policy.SnapshotRefreshMin = 60
	}
}
