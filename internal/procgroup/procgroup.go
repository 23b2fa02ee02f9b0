// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup spawns child processes in their own process group and
// terminates the whole group, so that children forked by the child (FFmpeg
// filter helpers, SRS workers) do not outlive it.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrKillFailed      = errors.New("kill operation failed")
)

// Set configures the command to start in a new process group.
// Mandatory for Signal and KillGroup to act as group operations.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Signal delivers sig to the whole process group of cmd.
// A process that already exited is treated as success.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	return signalGroup(cmd, sig)
}

// KillGroup terminates an entire process group: SIGTERM, wait up to grace,
// then SIGKILL, wait up to timeout. The process MUST have been spawned with
// procgroup.Set(cmd).
func KillGroup(pid int, grace, timeout time.Duration) error {
	return killGroup(pid, grace, timeout)
}
