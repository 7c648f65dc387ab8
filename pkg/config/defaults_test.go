package config

import (
	"testing"
	"time"

	"github.com/marmos91/nfsfetch/pkg/transport"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Client(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Client.Hostname != "iPXE" {
		t.Errorf("Expected default hostname 'iPXE', got %q", cfg.Client.Hostname)
	}
	if cfg.Client.ReadSize != 1300 {
		t.Errorf("Expected default read_size 1300, got %d", cfg.Client.ReadSize)
	}
	if cfg.Client.MaxReadsInFlight != 8 {
		t.Errorf("Expected default max_reads_in_flight 8, got %d", cfg.Client.MaxReadsInFlight)
	}
	if cfg.Client.PortmapPort != 111 {
		t.Errorf("Expected default portmap_port 111, got %d", cfg.Client.PortmapPort)
	}
	if cfg.Client.UID != 0 || cfg.Client.GID != 0 {
		t.Errorf("Expected uid/gid 0/0, got %d/%d", cfg.Client.UID, cfg.Client.GID)
	}
}

func TestApplyDefaults_Transport(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Transport.ConnectTimeout != 10*time.Second {
		t.Errorf("Expected default connect_timeout 10s, got %v", cfg.Transport.ConnectTimeout)
	}
	if cfg.Transport.WriteTimeout != 30*time.Second {
		t.Errorf("Expected default write_timeout 30s, got %v", cfg.Transport.WriteTimeout)
	}
	if cfg.Transport.MaxRecordSize != transport.DefaultMaxRecordSize {
		t.Errorf("Expected default max_record_size %d, got %d", transport.DefaultMaxRecordSize, cfg.Transport.MaxRecordSize)
	}
	if cfg.Transport.WindowBytes != 0 || cfg.Transport.BytesPerSecond != 0 {
		t.Error("Expected flow control disabled by default")
	}
}

func TestApplyDefaults_Sink(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Sink.Type != "fs" {
		t.Errorf("Expected default sink type 'fs', got %q", cfg.Sink.Type)
	}
	if cfg.Sink.Memory == nil || cfg.Sink.S3 == nil || cfg.Sink.Badger == nil {
		t.Error("Expected sink maps to be initialized")
	}
	if cfg.Sink.FS["path"] != "./" {
		t.Errorf("Expected default fs path './', got %v", cfg.Sink.FS["path"])
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "WARN", Format: "json", Output: "/var/log/nfsfetch.log"},
		Client: ClientConfig{
			Hostname:         "node-7",
			UID:              1000,
			ReadSize:         32768,
			MaxReadsInFlight: 2,
			PortmapPort:      1111,
		},
		Transport: TransportConfig{ConnectTimeout: time.Second, WindowBytes: 8192},
		Sink: SinkConfig{
			Type: "s3",
			FS:   map[string]any{"path": "/srv/boot"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "/var/log/nfsfetch.log" {
		t.Error("Explicit logging values were overwritten")
	}
	if cfg.Client.Hostname != "node-7" || cfg.Client.ReadSize != 32768 ||
		cfg.Client.MaxReadsInFlight != 2 || cfg.Client.PortmapPort != 1111 {
		t.Errorf("Explicit client values were overwritten: %+v", cfg.Client)
	}
	if cfg.Transport.ConnectTimeout != time.Second || cfg.Transport.WindowBytes != 8192 {
		t.Errorf("Explicit transport values were overwritten: %+v", cfg.Transport)
	}
	if cfg.Sink.Type != "s3" || cfg.Sink.FS["path"] != "/srv/boot" {
		t.Errorf("Explicit sink values were overwritten: %+v", cfg.Sink)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
}

func TestGetDefaultConfig_MetricsDisabled(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("Expected sample metrics address ':9090', got %q", cfg.Metrics.Address)
	}
}
