package config

import (
	"github.com/marmos91/nfsfetch/pkg/fetch"
	"github.com/marmos91/nfsfetch/pkg/metrics"
	"github.com/marmos91/nfsfetch/pkg/transport"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled
	// or no address is configured)
	Server *metrics.Server

	// RPCMetrics is the collector for RPC sessions (never nil, uses noop if disabled)
	RPCMetrics metrics.RPCMetrics

	// FetchMetrics is the collector for fetches (never nil, uses noop if disabled)
	FetchMetrics metrics.FetchMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server when an address is set
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Returns an error only if the HTTP listener cannot be bound.
func InitializeMetrics(cfg *Config) (*MetricsResult, error) {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			RPCMetrics:   metrics.NewNoopRPCMetrics(),
			FetchMetrics: metrics.NewNoopFetchMetrics(),
		}, nil
	}

	metrics.InitRegistry()

	result := &MetricsResult{
		RPCMetrics:   metrics.NewRPCMetrics(),
		FetchMetrics: metrics.NewFetchMetrics(),
	}

	if cfg.Metrics.Address != "" {
		server, err := metrics.NewServer(metrics.ServerConfig{
			Address: cfg.Metrics.Address,
		})
		if err != nil {
			return nil, err
		}
		result.Server = server
	}

	return result, nil
}

// FetchOptions builds fetcher options from the client and transport
// sections. m may be nil, in which case metrics are disabled.
func (cfg *Config) FetchOptions(m *MetricsResult) fetch.Options {
	opts := fetch.Options{
		Hostname:         cfg.Client.Hostname,
		UID:              cfg.Client.UID,
		GID:              cfg.Client.GID,
		AuxGIDs:          cfg.Client.AuxGIDs,
		ReadSize:         cfg.Client.ReadSize,
		MaxReadsInFlight: cfg.Client.MaxReadsInFlight,
		PortmapPort:      cfg.Client.PortmapPort,
		Transport: transport.Options{
			ConnectTimeout: cfg.Transport.ConnectTimeout,
			WriteTimeout:   cfg.Transport.WriteTimeout,
			WindowBytes:    cfg.Transport.WindowBytes,
			BytesPerSecond: cfg.Transport.BytesPerSecond,
			MaxRecordSize:  cfg.Transport.MaxRecordSize,
		},
		SinkType: cfg.Sink.Type,
	}
	if m != nil {
		opts.RPCMetrics = m.RPCMetrics
		opts.FetchMetrics = m.FetchMetrics
	}
	return opts
}
