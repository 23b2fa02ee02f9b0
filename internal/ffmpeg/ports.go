// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import "sync/atomic"

const firstControlPort = 20000

var lastControlPort atomic.Uint32

func init() {
	lastControlPort.Store(firstControlPort)
}

// nextControlPort hands out ports for the per-filter ZeroMQ control sockets.
// The counter wraps back to its base on overflow; a collision after a wrap
// merely breaks hot-tuning for a single restart cycle.
func nextControlPort() uint16 {
	for {
		cur := lastControlPort.Load()
		next := cur + 1
		if next > 65535 {
			next = firstControlPort
		}
		if lastControlPort.CompareAndSwap(cur, next) {
			return uint16(next)
		}
	}
}
