// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

// Status is the liveness of an endpoint, output or mixin. It is runtime-only
// and never persisted.
type Status string

const (
	// StatusOffline means no process is running or the upstream is gone.
	StatusOffline Status = "OFFLINE"
	// StatusInitializing means a process has been spawned and has not yet
	// survived its settle window.
	StatusInitializing Status = "INITIALIZING"
	// StatusOnline means the process settled, or the media server confirmed
	// an active publisher on the endpoint.
	StatusOnline Status = "ONLINE"
	// StatusUnstable means the process re-failed within the unstable window.
	StatusUnstable Status = "UNSTABLE"
)

// Norm maps the zero value onto Offline so freshly decoded entities carry a
// concrete status.
func (s Status) Norm() Status {
	if s == "" {
		return StatusOffline
	}
	return s
}
