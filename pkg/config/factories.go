package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/pkg/sink"
	badgersink "github.com/marmos91/nfsfetch/pkg/sink/badger"
	fssink "github.com/marmos91/nfsfetch/pkg/sink/fs"
	"github.com/marmos91/nfsfetch/pkg/sink/memory"
	s3sink "github.com/marmos91/nfsfetch/pkg/sink/s3"
)

// CreateSink creates a sink for one fetched file based on configuration.
//
// This factory function uses the Type field to determine which sink
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the sink's constructor.
//
// Supported types:
//   - "memory": Uses pkg/sink/memory (data is discarded after the run)
//   - "fs": Uses pkg/sink/fs (local file, path may name a directory)
//   - "s3": Uses pkg/sink/s3 (Amazon S3 or compatible storage)
//   - "badger": Uses pkg/sink/badger (BadgerDB key/value store)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Sink configuration
//   - name: File name of the fetched file, used for generated paths and keys
//
// Returns:
//   - sink.Sink: Initialized sink; the caller must Close it
//   - error: Configuration or initialization error
func CreateSink(ctx context.Context, cfg *SinkConfig, name string) (sink.Sink, error) {
	switch cfg.Type {
	case "memory":
		return createMemorySink(cfg.Memory)
	case "fs":
		return createFSSink(ctx, cfg.FS, name)
	case "s3":
		return createS3Sink(ctx, cfg.S3, name)
	case "badger":
		return createBadgerSink(ctx, cfg.Badger, name)
	default:
		return nil, fmt.Errorf("unknown sink type: %q", cfg.Type)
	}
}

// createMemorySink creates an in-memory sink.
func createMemorySink(options map[string]any) (sink.Sink, error) {
	var sinkCfg memory.Config
	if err := mapstructure.Decode(options, &sinkCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory sink config: %w", err)
	}
	return memory.New(sinkCfg), nil
}

// createFSSink creates a filesystem sink. A path ending in a separator, or
// naming an existing directory, receives the file under its fetched name.
func createFSSink(ctx context.Context, options map[string]any, name string) (sink.Sink, error) {
	var sinkCfg fssink.Config
	if err := mapstructure.Decode(options, &sinkCfg); err != nil {
		return nil, fmt.Errorf("failed to decode fs sink config: %w", err)
	}
	sinkCfg.Path = resolveFSPath(sinkCfg.Path, name)

	s, err := fssink.New(ctx, sinkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create fs sink: %w", err)
	}
	logger.Debug("fs sink: writing %s", sinkCfg.Path)
	return s, nil
}

func resolveFSPath(path, name string) string {
	if path == "" {
		return name
	}
	if strings.HasSuffix(path, string(filepath.Separator)) || strings.HasSuffix(path, "/") {
		return filepath.Join(path, name)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, name)
	}
	return path
}

// createS3Sink creates an S3 sink and its client.
func createS3Sink(ctx context.Context, options map[string]any, name string) (sink.Sink, error) {
	var sinkCfg s3sink.Config
	if err := mapstructure.Decode(options, &sinkCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 sink config: %w", err)
	}

	if sinkCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 sink: bucket is required")
	}
	if sinkCfg.Region == "" {
		return nil, fmt.Errorf("S3 sink: region is required")
	}

	client, err := s3sink.NewClient(ctx, sinkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	s, err := s3sink.New(ctx, client, sinkCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 sink: %w", err)
	}

	logger.Info("S3 sink initialized: bucket=%s, region=%s, key=%s",
		sinkCfg.Bucket, sinkCfg.Region, s.Key())

	return s, nil
}

// createBadgerSink creates a BadgerDB sink that owns its database.
func createBadgerSink(ctx context.Context, options map[string]any, name string) (sink.Sink, error) {
	var sinkCfg badgersink.Config
	if err := mapstructure.Decode(options, &sinkCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger sink config: %w", err)
	}

	s, err := badgersink.New(ctx, sinkCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger sink: %w", err)
	}
	return s, nil
}
