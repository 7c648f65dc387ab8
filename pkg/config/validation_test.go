package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "Level") {
		t.Errorf("Expected error to mention Level, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for invalid log format")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected lowercase level %q to validate, got: %v", level, err)
		}
	}
}

func TestValidate_InvalidSinkType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Sink.Type = "tape"

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for invalid sink type")
	}
}

func TestValidate_HostnameTooLong(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.Hostname = strings.Repeat("h", 256)

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for hostname over 255 bytes")
	}
}

func TestValidate_TooManyAuxGIDs(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.AuxGIDs = make([]uint32, 17)

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for more than 16 supplementary groups")
	}
}

func TestValidate_ZeroReadsInFlight(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.MaxReadsInFlight = 0

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for max_reads_in_flight 0")
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.ConnectTimeout = -time.Second

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for negative connect_timeout")
	}
}

func TestValidate_WindowTooSmall(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.WindowBytes = 1024

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for window below minimum")
	}
	if !strings.Contains(err.Error(), "window_bytes") {
		t.Errorf("Expected error to mention window_bytes, got: %v", err)
	}

	cfg.Transport.WindowBytes = MinWindowBytes
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected minimum window to validate, got: %v", err)
	}
}

func TestValidate_RateWithoutWindow(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.BytesPerSecond = 1 << 20

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for bytes_per_second without window_bytes")
	}
}

func TestValidate_ReadSizeExceedsRecord(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.ReadSize = 65536
	cfg.Transport.MaxRecordSize = 65536

	if err := Validate(cfg); err == nil {
		t.Error("Expected error when a READ reply cannot fit in one record")
	}
}

func TestValidate_MetricsWithoutOutput(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = ""

	if err := Validate(cfg); err == nil {
		t.Error("Expected error for metrics enabled without address or textfile_path")
	}

	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/nfsfetch.prom"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected textfile-only metrics to validate, got: %v", err)
	}
}
