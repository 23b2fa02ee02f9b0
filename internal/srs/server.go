// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package srs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/ffmpeg"
	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/procgroup"
	"github.com/ManuGH/restreamer/internal/state"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// A run longer than this resets the backoff to the initial delay.
	stableAfter = time.Minute

	killTimeout = 5 * time.Second
	kickTimeout = 5 * time.Second
)

// Server keeps one SRS instance running until its context ends.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	ring   *ffmpeg.LineRing
	client *http.Client
}

// NewServer prepares the supervisor; the binary is not started yet.
func NewServer(cfg Config) (*Server, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("create srs work dir: %w", err)
	}
	if err := os.MkdirAll(cfg.HTTPServerDir, 0o750); err != nil {
		return nil, fmt.Errorf("create srs serving dir: %w", err)
	}
	if err := cfg.WriteConf(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		logger: log.WithComponent("srs"),
		ring:   ffmpeg.NewLineRing(256),
		client: &http.Client{Timeout: kickTimeout},
	}, nil
}

// Run spawns the server and respawns it with exponential backoff on exit.
// It returns when ctx is cancelled and the process group is gone.
func (s *Server) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		started := time.Now()
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if time.Since(started) >= stableAfter {
			backoff = initialBackoff
		}
		s.logger.Error().Err(err).
			Str(log.FieldEvent, "srs.exit").
			Dur("backoff", backoff).
			Strs("stderr", s.ring.LastN(20)).
			Msg("media server exited, respawning")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *Server) runOnce(ctx context.Context) error {
	cmd := exec.Command(s.cfg.BinPath, "-c", s.cfg.ConfPath())
	cmd.Dir = s.cfg.WorkDir
	cmd.Stdout = s.ring
	cmd.Stderr = s.ring
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.BinPath, err)
	}
	s.logger.Info().
		Str(log.FieldEvent, "srs.spawn").
		Int("pid", cmd.Process.Pid).
		Uint16(log.FieldPort, s.cfg.RTMPPort).
		Msg("media server started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		if err := procgroup.KillGroup(cmd.Process.Pid, killTimeout, time.Second); err != nil {
			s.logger.Warn().Err(err).Msg("cannot kill media server group")
		}
		<-waitCh
		return nil
	}
}

// NewClientHandle wraps an SRS client id so that releasing the handle drops
// the connection off the server.
func (s *Server) NewClientHandle(id state.SrsClientID) *state.SrsClientHandle {
	return state.NewSrsClientHandle(id, s.kick)
}

// kick is fire-and-forget: the handle may be released from a state mutation
// and must never block on the media server.
func (s *Server) kick(id state.SrsClientID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), kickTimeout)
		defer cancel()
		if err := s.kickClient(ctx, id); err != nil {
			s.logger.Warn().Err(err).
				Str(log.FieldClient, string(id)).
				Msg("cannot kick media server client")
			return
		}
		s.logger.Info().
			Str(log.FieldClient, string(id)).
			Msg("kicked media server client")
	}()
}

func (s *Server) kickClient(ctx context.Context, id state.SrsClientID) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/clients/%s", s.cfg.APIPort, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.New("kick rejected: " + strings.TrimSpace(resp.Status))
	}
	return nil
}
