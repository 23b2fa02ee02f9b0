// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetMarksProcessGroup(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	Set(cmd)

	require.NotNil(t, cmd.SysProcAttr)
	require.True(t, cmd.SysProcAttr.Setpgid)
}

func TestSignalOnNilProcess(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	// Not started: Process is nil, Signal must be a no-op.
	require.NoError(t, Signal(cmd, syscall.SIGTERM))
	require.NoError(t, Signal(nil, syscall.SIGTERM))
}

func TestKillGroupTerminatesChild(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	Set(cmd)
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	require.NoError(t, KillGroup(cmd.Process.Pid, 500*time.Millisecond, 2*time.Second))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("child did not exit after KillGroup")
	}
}

func TestKillGroupOnAbsentPID(t *testing.T) {
	// PID 0 and negative PIDs are rejected up front.
	require.NoError(t, KillGroup(0, time.Millisecond, time.Millisecond))
	require.NoError(t, KillGroup(-1, time.Millisecond, time.Millisecond))
}
