// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig points every checked path at something that exists.
func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o750))

	cfg := Default()
	cfg.FFmpegPath = bin
	cfg.SrsPath = bin
	cfg.StatePath = filepath.Join(dir, "state.json")
	return cfg
}

func TestValidateAcceptsWorkingConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingBinaries(t *testing.T) {
	cfg := validConfig(t)
	cfg.FFmpegPath = "/nonexistent/ffmpeg"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg binary")
}

func TestValidateRejectsCorruptStateFile(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, os.WriteFile(cfg.StatePath, []byte("{broken"), 0o640))
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestValidateAcceptsMissingAndEmptyStateFile(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate(), "missing snapshot is a first start")

	require.NoError(t, os.WriteFile(cfg.StatePath, nil, 0o640))
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsPortCollisions(t *testing.T) {
	cfg := validConfig(t)
	cfg.CallbackPort = cfg.SrsAPIPort
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collide")

	cfg = validConfig(t)
	cfg.SrsRTMPPort = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be zero")
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "restreamer.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"log_level: warn\nhttp_bind_port: 9090\npublic_host: from-file\n",
	), 0o640))

	t.Setenv("RESTREAMER_PUBLIC_HOST", "from-env")
	t.Setenv("RESTREAMER_SRS_API_PORT", "9002")

	cfg, err := NewLoader(file).Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel, "file overrides default")
	assert.Equal(t, uint16(9090), cfg.HTTPBindPort)
	assert.Equal(t, "from-env", cfg.PublicHost, "env overrides file")
	assert.Equal(t, uint16(9002), cfg.SrsAPIPort)
	assert.Equal(t, uint16(1935), cfg.SrsRTMPPort, "default survives")
}

func TestLoaderMissingFileIsFine(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, Default().HTTPBindPort, cfg.HTTPBindPort)
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte(":\n\t"), 0o640))
	_, err := NewLoader(file).Load()
	assert.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("RESTREAMER_TEST_STR", "value")
	assert.Equal(t, "value", ParseString("RESTREAMER_TEST_STR", "d"))
	assert.Equal(t, "d", ParseString("RESTREAMER_TEST_UNSET", "d"))

	t.Setenv("RESTREAMER_TEST_BOOL", "true")
	assert.True(t, ParseBool("RESTREAMER_TEST_BOOL", false))
	t.Setenv("RESTREAMER_TEST_BOOL", "nope")
	assert.True(t, ParseBool("RESTREAMER_TEST_BOOL", true), "unparseable keeps default")

	t.Setenv("RESTREAMER_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("RESTREAMER_TEST_INT", 7))

	t.Setenv("RESTREAMER_TEST_FLOAT", "0.25")
	assert.Equal(t, 0.25, ParseFloat("RESTREAMER_TEST_FLOAT", 1.0))

	t.Setenv("RESTREAMER_TEST_PORT", "70000")
	assert.Equal(t, uint16(80), envPort("RESTREAMER_TEST_PORT", 80), "out of range keeps default")
}
