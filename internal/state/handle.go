// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import "sync"

// SrsClientID identifies a publisher or player connection inside the embedded
// media server.
type SrsClientID string

// SrsClientHandle owns one media-server connection. Releasing the handle
// kicks the client off the server; the kick fires at most once. Handles are
// runtime-only and never persisted.
type SrsClientHandle struct {
	id   SrsClientID
	once sync.Once
	kick func(SrsClientID)
}

// NewSrsClientHandle wraps id with the kick callback invoked on Release.
func NewSrsClientHandle(id SrsClientID, kick func(SrsClientID)) *SrsClientHandle {
	return &SrsClientHandle{id: id, kick: kick}
}

// ID returns the media-server client id.
func (h *SrsClientHandle) ID() SrsClientID {
	if h == nil {
		return ""
	}
	return h.id
}

// Release kicks the client. Safe to call multiple times and on nil.
func (h *SrsClientHandle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.kick != nil {
			h.kick(h.id)
		}
	})
}
