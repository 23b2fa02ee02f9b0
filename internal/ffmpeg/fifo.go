// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// FIFOPath is where a voice-chat mixin's captured audio is handed to the
// child process.
func FIFOPath(mixinID uuid.UUID) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("restreamer_mixin_%s.pipe", mixinID))
}

// createFIFO makes the named pipe unless it already exists. The child cannot
// start without it.
func createFIFO(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

func removeFIFO(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// openFIFOWriter opens the pipe for writing once the child has opened the
// read side. A plain blocking open would hang forever if the child dies
// before reading, so it polls in non-blocking mode instead.
func openFIFOWriter(ctx context.Context, path string) (*os.File, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		if !isNoReader(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isNoReader(err error) bool {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err == unix.ENXIO
	}
	return false
}
