package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/attachsync/flagx"
	"github.com/dmitrijs2005/attachsync/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	DBPath         string         `json:"db_path"`
	AttachmentsDir string         `json:"attachments_dir"`
	SyncInterval   timex.Duration `json:"sync_interval"`
	SyncThrottle   timex.Duration `json:"sync_throttle"`
	CacheLimit     int            `json:"cache_limit"`
	S3Region       string         `json:"s3_region"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Prefix       string         `json:"s3_prefix"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	ProbeAddr      string         `json:"probe_addr"`
	ProbeInterval  timex.Duration `json:"probe_interval"`
}

// parseJson overlays cfg with values loaded from a JSON file named by the
// -c/-config flags. Missing flag means no JSON is loaded. Read or unmarshal
// errors panic; the intended usage is defaults -> parseJson -> parseFlags.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.AttachmentsDir != "" {
		cfg.AttachmentsDir = jc.AttachmentsDir
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.SyncThrottle.Duration > 0 {
		cfg.SyncThrottle = time.Duration(jc.SyncThrottle.Duration)
	}
	if jc.CacheLimit > 0 {
		cfg.CacheLimit = jc.CacheLimit
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Prefix != "" {
		cfg.S3Prefix = jc.S3Prefix
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.ProbeAddr != "" {
		cfg.ProbeAddr = jc.ProbeAddr
	}
	if jc.ProbeInterval.Duration > 0 {
		cfg.ProbeInterval = time.Duration(jc.ProbeInterval.Duration)
	}
}
