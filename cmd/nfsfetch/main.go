package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/pkg/config"
	"github.com/marmos91/nfsfetch/pkg/fetch"
	"github.com/marmos91/nfsfetch/pkg/metrics"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] nfs://host[:port]/export/path/file ...\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/nfsfetch/config.yaml)")
	initConfig := flag.Bool("init", false, "Write a default config file and exit")
	force := flag.Bool("force", false, "Overwrite an existing config file with -init")

	// Overrides for the most common settings
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	output := flag.String("o", "", "Write to this file or directory (selects the fs sink)")
	sinkType := flag.String("sink", "", "Sink type (memory, fs, s3, badger)")
	hostname := flag.String("hostname", "", "AUTH_SYS machine name")
	uid := flag.Uint("uid", 0, "AUTH_SYS uid")
	gid := flag.Uint("gid", 0, "AUTH_SYS gid")
	timeout := flag.Duration("timeout", 0, "Per-file fetch timeout (0 = none)")

	flag.Usage = usage
	flag.Parse()

	if *initConfig {
		path := *configPath
		var err error
		if path == "" {
			path, err = config.InitConfig(*force)
		} else {
			err = config.InitConfigToPath(path, *force)
		}
		if err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Only flags given on the command line override the config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "o":
			cfg.Sink.Type = "fs"
			cfg.Sink.FS["path"] = *output
		case "sink":
			cfg.Sink.Type = *sinkType
		case "hostname":
			cfg.Client.Hostname = *hostname
		case "uid":
			cfg.Client.UID = uint32(*uid)
		case "gid":
			cfg.Client.GID = uint32(*gid)
		case "timeout":
			cfg.Client.FetchTimeout = *timeout
		}
	})
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := config.InitializeMetrics(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	if m.Server != nil {
		go func() {
			if err := m.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	fetcher, err := fetch.New(cfg.FetchOptions(m))
	if err != nil {
		log.Fatalf("Failed to create fetcher: %v", err)
	}

	failed := 0
	for _, rawURL := range flag.Args() {
		if ctx.Err() != nil {
			break
		}
		if err := fetchOne(ctx, cfg, fetcher, rawURL); err != nil {
			logger.Error("%s: %v", rawURL, err)
			failed++
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error("Failed to write metrics: %v", err)
		}
	}

	if m.Server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.Server.Stop(shutdownCtx)
		cancel()
	}

	if failed > 0 {
		// Deferred stop would be skipped by os.Exit
		stop()
		os.Exit(1)
	}
}

// fetchOne downloads one URL into a freshly created sink.
func fetchOne(ctx context.Context, cfg *config.Config, fetcher *fetch.Fetcher, rawURL string) error {
	u, err := fetch.ParseURL(rawURL)
	if err != nil {
		return err
	}

	if cfg.Client.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Client.FetchTimeout)
		defer cancel()
	}

	dst, err := config.CreateSink(ctx, &cfg.Sink, u.Filename)
	if err != nil {
		return err
	}
	// Close discards the data unless the fetch committed it
	defer func() {
		if err := dst.Close(); err != nil {
			logger.Warn("%s: close sink: %v", rawURL, err)
		}
	}()

	res, err := fetcher.Fetch(ctx, rawURL, dst)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d bytes in %v (mount port %d, nfs port %d)\n",
		res.URL, res.Bytes, res.Duration.Round(time.Millisecond), res.MountPort, res.NFSPort)
	return nil
}
