// Package config holds runtime settings for the attachsync demo binary.
package config

import "time"

// Config holds runtime settings for the attachment sync engine wiring.
//
// Units: intervals are time.Duration values (e.g. 30*time.Second).
type Config struct {
	// DBPath is the local SQLite database file.
	DBPath string
	// AttachmentsDir is the directory attachment files live under.
	AttachmentsDir string

	// SyncInterval is the periodic sync timer interval.
	SyncInterval time.Duration
	// SyncThrottle is the trigger coalescing window.
	SyncThrottle time.Duration
	// CacheLimit is how many archived records eviction keeps.
	CacheLimit int

	// S3 connection settings for the remote storage adapter.
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string

	// ProbeAddr is the host:port dialed to detect connectivity; empty
	// disables probing.
	ProbeAddr string
	// ProbeInterval is how often connectivity is probed.
	ProbeInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "attachments.db"
	c.AttachmentsDir = "attachments"
	c.SyncInterval = 30 * time.Second
	c.SyncThrottle = time.Second
	c.CacheLimit = 100
	c.S3Region = "us-east-1"
	c.S3Bucket = "attachments"
	c.ProbeInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
