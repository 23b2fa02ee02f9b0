// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/restreamer/internal/log"
)

// ParseString reads a string environment variable, falling back to the
// default when unset or empty.
func ParseString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		logEnv(key, v)
		return v
	}
	return defaultValue
}

// ParseBool reads a boolean environment variable; anything strconv cannot
// parse falls back to the default.
func ParseBool(key string, defaultValue bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			logEnv(key, v)
			return b
		}
	}
	return defaultValue
}

// ParseInt reads an integer environment variable.
func ParseInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			logEnv(key, v)
			return i
		}
	}
	return defaultValue
}

// ParseFloat reads a float environment variable.
func ParseFloat(key string, defaultValue float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			logEnv(key, v)
			return f
		}
	}
	return defaultValue
}

// ParseDuration reads a Go duration environment variable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			logEnv(key, v)
			return d
		}
	}
	return defaultValue
}

func logEnv(key, value string) {
	logger := log.WithComponent("config")
	lower := strings.ToLower(key)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
		logger.Debug().Str("key", key).Bool("sensitive", true).
			Msg("using environment variable")
		return
	}
	logger.Debug().Str("key", key).Str("value", value).
		Msg("using environment variable")
}
