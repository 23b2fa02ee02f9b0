// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config assembles the daemon configuration with the precedence
// ENV > YAML file > defaults, and fail-fast validation of everything the
// server cannot run without.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// Config is the full daemon configuration.
type Config struct {
	// Debug enables the GraphQL playgrounds and verbose logging.
	Debug bool `yaml:"debug"`
	// LogLevel is a zerolog level name (trace … disabled).
	LogLevel string `yaml:"log_level"`

	// PublicHost is the address clients reach this server at; detected via
	// an external echo service when empty.
	PublicHost string `yaml:"public_host"`

	// HTTPBindIP/HTTPBindPort is the API server's listen address.
	HTTPBindIP   string `yaml:"http_bind_ip"`
	HTTPBindPort uint16 `yaml:"http_bind_port"`
	// CallbackPort receives the media server's HTTP hooks (loopback only).
	CallbackPort uint16 `yaml:"callback_port"`

	// StatePath is the JSON snapshot the state store persists into.
	StatePath string `yaml:"state_path"`
	// FFmpegPath is the media-process binary.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Embedded media server.
	SrsPath     string `yaml:"srs_path"`
	SrsWorkDir  string `yaml:"srs_workdir"`
	SrsHTTPDir  string `yaml:"srs_http_dir"`
	SrsRTMPPort uint16 `yaml:"srs_rtmp_port"`
	SrsHTTPPort uint16 `yaml:"srs_http_port"`
	SrsAPIPort  uint16 `yaml:"srs_api_port"`

	// DVRRoot holds the recordings of file outputs.
	DVRRoot string `yaml:"dvr_root"`

	// Opt-in OpenTelemetry tracing.
	OtelEnabled  bool    `yaml:"otel_enabled"`
	OtelExporter string  `yaml:"otel_exporter"`
	OtelEndpoint string  `yaml:"otel_endpoint"`
	OtelSampling float64 `yaml:"otel_sampling"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		LogLevel:     "info",
		HTTPBindIP:   "0.0.0.0",
		HTTPBindPort: 80,
		CallbackPort: 8081,
		StatePath:    "state.json",
		FFmpegPath:   "/usr/local/bin/ffmpeg",
		SrsPath:      "/usr/local/srs/objs/srs",
		SrsWorkDir:   "/var/lib/restreamer/srs",
		SrsHTTPDir:   "/var/lib/restreamer/srs/www",
		SrsRTMPPort:  1935,
		SrsHTTPPort:  8080,
		SrsAPIPort:   8002,
		DVRRoot:      "/var/lib/restreamer/dvr",
		OtelExporter: "grpc",
		OtelEndpoint: "localhost:4317",
		OtelSampling: 1.0,
	}
}

// Validate fails fast on anything the daemon cannot start with: missing
// binaries, an unparseable state snapshot, or colliding ports.
func (c *Config) Validate() error {
	var errs []error

	if _, err := exec.LookPath(c.FFmpegPath); err != nil {
		errs = append(errs, fmt.Errorf("ffmpeg binary: %w", err))
	}
	if _, err := exec.LookPath(c.SrsPath); err != nil {
		errs = append(errs, fmt.Errorf("media server binary: %w", err))
	}
	if err := checkStateFile(c.StatePath); err != nil {
		errs = append(errs, err)
	}

	ports := map[string]uint16{
		"http_bind_port": c.HTTPBindPort,
		"callback_port":  c.CallbackPort,
		"srs_rtmp_port":  c.SrsRTMPPort,
		"srs_http_port":  c.SrsHTTPPort,
		"srs_api_port":   c.SrsAPIPort,
	}
	seen := make(map[uint16]string, len(ports))
	for name, port := range ports {
		if port == 0 {
			errs = append(errs, fmt.Errorf("%s must not be zero", name))
			continue
		}
		if other, ok := seen[port]; ok {
			errs = append(errs, fmt.Errorf("%s and %s collide on %d", name, other, port))
			continue
		}
		seen[port] = name
	}

	return errors.Join(errs...)
}

// checkStateFile accepts a missing snapshot (first start) but rejects one
// that exists and does not parse: silently starting empty would overwrite it.
func checkStateFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("state file %s holds invalid JSON", path)
	}
	return nil
}
