// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLoopbackAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1":       true,
		"127.0.0.1:53445": true,
		"::1":             true,
		"[::1]:53445":     true,
		" 127.0.0.1":      true,
		"192.168.1.5":     false,
		"203.0.113.7":     false,
		"example.com":     false,
		"":                false,
	} {
		assert.Equal(t, want, IsLoopbackAddr(addr), addr)
	}
}
