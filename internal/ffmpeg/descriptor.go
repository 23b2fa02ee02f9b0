// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg derives FFmpeg child processes from the configuration tree
// and keeps them running: descriptors capture the restart-requiring
// parameters and emit argument vectors, supervisors own one child each, the
// pool reconciles the running set against every snapshot, and the tuner
// adjusts volumes in place over ZeroMQ.
package ffmpeg

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuGH/restreamer/internal/state"
)

// FileStore materializes file:// destinations into recording paths. The
// recording store implements it.
type FileStore interface {
	// FileURL returns the stable file URL of an output's recording slot.
	FileURL(outputID uuid.UUID, dst state.OutputDstURL) string
	// NewFilePath allocates a fresh timestamped file under the slot of the
	// given file URL, one per child launch.
	NewFilePath(fileURL string) (string, error)
}

// Env carries what argument building needs beyond the descriptor itself:
// up-to-date volumes from the store and recording paths from the file store.
type Env struct {
	Store *state.Store
	Files FileStore
}

// Descriptor captures the parameters of one child process that require a
// restart when changed, and builds its argument vector.
type Descriptor interface {
	// EntityID is the id of the state entity this process serves; it keys
	// the process in the pool and receives the status write-backs.
	EntityID() uuid.UUID
	// Kind names the descriptor variant for logs and metrics.
	Kind() string
	// Args builds the child's argument vector.
	Args(env *Env) ([]string, error)
}

// needsRestart reports whether the running process behind cur must be
// respawned to satisfy next. A Mix absorbs volume-only changes by hot-tuning
// the live filters through the tuner instead.
func needsRestart(cur, next Descriptor, tuner VolumeTuner) bool {
	switch c := cur.(type) {
	case *Copy:
		n, ok := next.(*Copy)
		return !ok || *c != *n
	case *Transcode:
		n, ok := next.(*Transcode)
		return !ok || *c != *n
	case *Mix:
		n, ok := next.(*Mix)
		return !ok || c.needsRestart(n, tuner)
	}
	return true
}

// Copy re-streams from one URL to another as is, transmuxing to the
// destination container where needed.
type Copy struct {
	ID      uuid.UUID
	FromURL string
	ToURL   string
}

// EntityID implements Descriptor.
func (c *Copy) EntityID() uuid.UUID { return c.ID }

// Kind implements Descriptor.
func (c *Copy) Kind() string { return "copy" }

// Args implements Descriptor.
func (c *Copy) Args(env *Env) ([]string, error) {
	args := pullArgs(c.FromURL)

	to, err := url.Parse(c.ToURL)
	if err != nil {
		return nil, fmt.Errorf("destination URL %q: %w", c.ToURL, err)
	}
	switch to.Scheme {
	case "file":
		filePath, err := env.Files.NewFilePath(c.ToURL)
		if err != nil {
			return nil, err
		}
		switch ext := path.Ext(to.Path); ext {
		case ".flv":
			args = append(args, "-c", "copy", filePath)
		case ".wav":
			args = append(args,
				"-vn", "-acodec", "pcm_s16le", "-ar", "48000", "-ac", "2",
				filePath)
		case ".mp3":
			args = append(args,
				"-vn", "-acodec", "libmp3lame", "-b:a", "64k",
				"-ar", "48000", "-ac", "2",
				filePath)
		default:
			return nil, fmt.Errorf("unsupported recording extension %q", ext)
		}

	case "icecast":
		args = append(args,
			"-vn", "-acodec", "libmp3lame", "-b:a", "64k",
			"-f", "mp3", "-content_type", "audio/mpeg",
			c.ToURL)

	case "rtmp", "rtmps":
		args = append(args, "-c", "copy", "-f", "flv", c.ToURL)

	case "srt":
		args = append(args, "-c", "copy", "-strict", "-2", "-y", "-f", "mpegts", c.ToURL)

	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", to.Scheme)
	}
	return args, nil
}

// Transcode re-streams from one URL to another re-encoding with the given
// codec settings. Empty fields keep the source codec.
type Transcode struct {
	ID       uuid.UUID
	FromURL  string
	ToURL    string
	VCodec   string
	VProfile string
	VPreset  string
	ACodec   string
}

// EntityID implements Descriptor.
func (t *Transcode) EntityID() uuid.UUID { return t.ID }

// Kind implements Descriptor.
func (t *Transcode) Kind() string { return "transcode" }

// Args implements Descriptor.
func (t *Transcode) Args(_ *Env) ([]string, error) {
	args := []string{"-i", t.FromURL}
	if t.VCodec != "" {
		args = append(args, "-c:v", t.VCodec)
	}
	if t.VPreset != "" {
		args = append(args, "-preset", t.VPreset)
	}
	if t.VProfile != "" {
		args = append(args, "-profile:v", t.VProfile)
	}
	if t.ACodec != "" {
		args = append(args, "-c:a", t.ACodec)
	}

	to, err := url.Parse(t.ToURL)
	if err != nil {
		return nil, fmt.Errorf("destination URL %q: %w", t.ToURL, err)
	}
	switch to.Scheme {
	case "rtmp", "rtmps":
		args = append(args, "-f", "flv")
	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", to.Scheme)
	}
	return append(args, t.ToURL), nil
}

// pullArgs builds the input side. HLS playlists are read with realtime
// pacing; live RTMP sources already pace themselves.
func pullArgs(fromURL string) []string {
	args := make([]string, 0, 3)
	if u, err := url.Parse(fromURL); err == nil {
		if (u.Scheme == "http" || u.Scheme == "https") && strings.HasSuffix(u.Path, ".m3u8") {
			args = append(args, "-re")
		}
	}
	return append(args, "-i", fromURL)
}
