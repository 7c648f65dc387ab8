package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete nfsfetch configuration.
//
// This structure captures all configurable aspects of the fetcher:
//   - Logging configuration
//   - Client identity and READ pipelining (AUTH_SYS credential, read size)
//   - Transport settings shared by every RPC connection
//   - Sink selection and configuration (sink-specific)
//   - Metrics exposition
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NFSFETCH_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Sink Configuration Pattern:
// Each sink implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., sink.fs, sink.s3) and only
// the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Client contains the RPC identity and READ settings
	Client ClientConfig `mapstructure:"client" yaml:"client"`

	// Transport contains connection settings
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Sink specifies where fetched files go
	Sink SinkConfig `mapstructure:"sink" yaml:"sink"`

	// Metrics controls Prometheus exposition
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ClientConfig contains the AUTH_SYS identity and READ loop settings.
type ClientConfig struct {
	// Hostname is the AUTH_SYS machine name
	Hostname string `mapstructure:"hostname" yaml:"hostname" validate:"required,max=255"`

	// UID is the AUTH_SYS user ID
	UID uint32 `mapstructure:"uid" yaml:"uid"`

	// GID is the AUTH_SYS primary group ID
	GID uint32 `mapstructure:"gid" yaml:"gid"`

	// AuxGIDs lists supplementary groups
	AuxGIDs []uint32 `mapstructure:"aux_gids" yaml:"aux_gids" validate:"max=16"`

	// ReadSize is the byte count requested by each READ call
	ReadSize uint32 `mapstructure:"read_size" yaml:"read_size" validate:"required,gt=0"`

	// MaxReadsInFlight bounds outstanding READ calls
	MaxReadsInFlight int `mapstructure:"max_reads_in_flight" yaml:"max_reads_in_flight" validate:"required,gte=1,lte=256"`

	// PortmapPort is used for URLs without an explicit port
	PortmapPort uint16 `mapstructure:"portmap_port" yaml:"portmap_port" validate:"required,gt=0"`

	// FetchTimeout bounds a whole fetch (0 = no limit)
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout" validate:"gte=0"`
}

// TransportConfig contains settings shared by every RPC connection.
type TransportConfig struct {
	// ConnectTimeout bounds each TCP dial
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`

	// WriteTimeout bounds each record write
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`

	// WindowBytes is the send window capacity (0 = unbounded)
	WindowBytes uint `mapstructure:"window_bytes" yaml:"window_bytes"`

	// BytesPerSecond is the send window refill rate (0 = no throttling)
	BytesPerSecond uint `mapstructure:"bytes_per_second" yaml:"bytes_per_second"`

	// MaxRecordSize bounds inbound reply records
	MaxRecordSize uint32 `mapstructure:"max_record_size" yaml:"max_record_size"`
}

// SinkConfig specifies sink configuration.
//
// The Type field determines which sink implementation is used.
// Only the corresponding type-specific configuration section is used.
type SinkConfig struct {
	// Type specifies which sink implementation to use
	// Valid values: memory, fs, s3, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory fs s3 badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// FS contains filesystem-specific configuration
	// Only used when Type = "fs"
	FS map[string]any `mapstructure:"fs" yaml:"fs"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	// Enabled turns on metrics collection
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the HTTP listen address for /metrics (empty = no server)
	Address string `mapstructure:"address" yaml:"address"`

	// TextfilePath receives a metrics snapshot after the run, for the
	// node_exporter textfile collector (empty = disabled)
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NFSFETCH_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use NFSFETCH_ prefix and underscores
	// Example: NFSFETCH_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("NFSFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment variables only override keys viper knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/nfsfetch/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar settings that can be set from the environment
// without a config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"client.hostname",
	"client.uid",
	"client.gid",
	"client.read_size",
	"client.max_reads_in_flight",
	"client.portmap_port",
	"client.fetch_timeout",
	"transport.connect_timeout",
	"transport.write_timeout",
	"transport.window_bytes",
	"transport.bytes_per_second",
	"transport.max_record_size",
	"sink.type",
	"metrics.enabled",
	"metrics.address",
	"metrics.textfile_path",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nfsfetch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "nfsfetch")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
