// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// The daemon ingests live streams via the embedded media server, mixes in
// auxiliary audio, and republishes to the configured destinations, all
// controlled over GraphQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/restreamer/internal/config"
	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/netutil"
	"github.com/ManuGH/restreamer/internal/server"
	"github.com/ManuGH/restreamer/internal/telemetry"
	"github.com/ManuGH/restreamer/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	publicHost := flag.String("public-host", "", "address clients reach this server at")
	debug := flag.Bool("debug", false, "enable the GraphQL playgrounds")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *publicHost != "" {
		cfg.PublicHost = *publicHost
	}
	if *debug {
		cfg.Debug = true
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "restreamer",
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.PublicHost == "" {
		host, err := netutil.DetectPublicIP(ctx)
		if err != nil {
			logger.Fatal().Err(err).
				Msg("public host not configured and not detectable")
		}
		cfg.PublicHost = host
		logger.Info().Str("host", host).Msg("detected public host")
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OtelEnabled,
		ServiceName:    "restreamer",
		ServiceVersion: version.Version,
		Environment:    "production",
		ExporterType:   cfg.OtelExporter,
		Endpoint:       cfg.OtelEndpoint,
		SamplingRate:   cfg.OtelSampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	srv, err := server.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	logger.Info().
		Str("version", version.Version).
		Str("public_host", cfg.PublicHost).
		Uint16("http_port", cfg.HTTPBindPort).
		Msg("starting")

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("stopped")
}
