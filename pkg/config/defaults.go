package config

import (
	"strings"
	"time"

	"github.com/marmos91/nfsfetch/pkg/fetch"
	"github.com/marmos91/nfsfetch/pkg/transport"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Sink-specific defaults are handled by sink implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyClientDefaults(&cfg.Client)
	applyTransportDefaults(&cfg.Transport)
	applySinkDefaults(&cfg.Sink)

	// Metrics stay disabled unless configured
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyClientDefaults sets client defaults.
func applyClientDefaults(cfg *ClientConfig) {
	if cfg.Hostname == "" {
		cfg.Hostname = fetch.DefaultHostname
	}

	// UID and GID default to 0 (root), as a network boot loader would send

	if cfg.ReadSize == 0 {
		cfg.ReadSize = fetch.DefaultReadSize
	}
	if cfg.MaxReadsInFlight == 0 {
		cfg.MaxReadsInFlight = fetch.DefaultMaxReadsInFlight
	}
	if cfg.PortmapPort == 0 {
		cfg.PortmapPort = fetch.DefaultPortmapPort
	}

	// FetchTimeout defaults to 0 (no limit)
}

// applyTransportDefaults sets transport defaults.
func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	// WindowBytes and BytesPerSecond default to 0 (no flow control)

	if cfg.MaxRecordSize == 0 {
		cfg.MaxRecordSize = transport.DefaultMaxRecordSize
	}
}

// applySinkDefaults sets sink defaults.
func applySinkDefaults(cfg *SinkConfig) {
	if cfg.Type == "" {
		cfg.Type = "fs"
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.FS == nil {
		cfg.FS = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Defaults for all sink types (for config file generation)
	if _, ok := cfg.FS["path"]; !ok {
		cfg.FS["path"] = "./"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/nfsfetch-badger"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Sink: SinkConfig{
			FS: make(map[string]any),
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
