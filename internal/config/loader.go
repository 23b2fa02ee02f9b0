// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config with the precedence ENV > YAML > defaults.
type Loader struct {
	configPath string
}

// NewLoader prepares a loader; configPath may be empty (no YAML layer).
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load resolves the configuration. The YAML file is optional unless a path
// was given explicitly and is unreadable or malformed.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.applyFile(&cfg); err != nil {
			return Config{}, err
		}
	}
	l.applyEnv(&cfg)
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(l.configPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) {
	cfg.Debug = ParseBool("RESTREAMER_DEBUG", cfg.Debug)
	cfg.LogLevel = ParseString("RESTREAMER_LOG_LEVEL", cfg.LogLevel)
	cfg.PublicHost = ParseString("RESTREAMER_PUBLIC_HOST", cfg.PublicHost)

	cfg.HTTPBindIP = ParseString("RESTREAMER_HTTP_BIND_IP", cfg.HTTPBindIP)
	cfg.HTTPBindPort = envPort("RESTREAMER_HTTP_BIND_PORT", cfg.HTTPBindPort)
	cfg.CallbackPort = envPort("RESTREAMER_CALLBACK_PORT", cfg.CallbackPort)

	cfg.StatePath = ParseString("RESTREAMER_STATE_PATH", cfg.StatePath)
	cfg.FFmpegPath = ParseString("RESTREAMER_FFMPEG_PATH", cfg.FFmpegPath)

	cfg.SrsPath = ParseString("RESTREAMER_SRS_PATH", cfg.SrsPath)
	cfg.SrsWorkDir = ParseString("RESTREAMER_SRS_WORKDIR", cfg.SrsWorkDir)
	cfg.SrsHTTPDir = ParseString("RESTREAMER_SRS_HTTP_DIR", cfg.SrsHTTPDir)
	cfg.SrsRTMPPort = envPort("RESTREAMER_SRS_RTMP_PORT", cfg.SrsRTMPPort)
	cfg.SrsHTTPPort = envPort("RESTREAMER_SRS_HTTP_PORT", cfg.SrsHTTPPort)
	cfg.SrsAPIPort = envPort("RESTREAMER_SRS_API_PORT", cfg.SrsAPIPort)

	cfg.DVRRoot = ParseString("RESTREAMER_DVR_ROOT", cfg.DVRRoot)

	cfg.OtelEnabled = ParseBool("RESTREAMER_OTEL_ENABLED", cfg.OtelEnabled)
	cfg.OtelExporter = ParseString("RESTREAMER_OTEL_EXPORTER", cfg.OtelExporter)
	cfg.OtelEndpoint = ParseString("RESTREAMER_OTEL_ENDPOINT", cfg.OtelEndpoint)
	cfg.OtelSampling = ParseFloat("RESTREAMER_OTEL_SAMPLING", cfg.OtelSampling)
}

func envPort(key string, defaultValue uint16) uint16 {
	v := ParseInt(key, int(defaultValue))
	if v < 0 || v > 65535 {
		return defaultValue
	}
	return uint16(v)
}
