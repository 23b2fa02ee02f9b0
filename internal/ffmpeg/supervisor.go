// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
	"github.com/ManuGH/restreamer/internal/procgroup"
	"github.com/ManuGH/restreamer/internal/state"
)

const (
	// onlineAfter is how long a child must survive before its entity is
	// considered Online.
	onlineAfter = 10 * time.Second
	// unstableWindow classifies a failure shortly after the previous one as
	// Unstable rather than Offline.
	unstableWindow = 15 * time.Second
	// respawnDelay throttles the restart loop.
	respawnDelay = 2 * time.Second
	// killAfter hard-aborts a child ignoring the termination signal.
	killAfter = 5 * time.Second
)

// Supervisor owns one child process: it spawns, classifies liveness, writes
// status transitions back to the store and re-spawns until stopped.
type Supervisor struct {
	desc   Descriptor
	bin    string
	env    *Env
	logger zerolog.Logger
	ring   *LineRing

	cancel context.CancelFunc
	done   chan struct{}
}

func startSupervisor(desc Descriptor, bin string, env *Env) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		desc: desc,
		bin:  bin,
		env:  env,
		logger: log.WithComponent("ffmpeg").With().
			Str(log.FieldProcessID, desc.EntityID().String()).
			Str("kind", desc.Kind()).
			Logger(),
		ring:   NewLineRing(256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.loop(ctx)
	return s
}

// Stop requests a graceful shutdown of the child; it does not wait. Done
// closes once the child has fully stopped.
func (s *Supervisor) Stop() { s.cancel() }

// Done closes when the supervised child has stopped and the loop exited.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)
	defer s.setStatus(state.StatusOffline)

	var lastFail time.Time
	for {
		s.setStatus(classifyStatus(lastFail, state.StatusInitializing))

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		s.setStatus(classifyStatus(lastFail, state.StatusOffline))
		lastFail = time.Now()
		if err != nil {
			s.logger.Error().Err(err).
				Strs("stderr", s.ring.LastN(20)).
				Msg("re-streaming child failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(respawnDelay):
		}
	}
}

// classifyStatus downgrades to Unstable when the previous failure was recent.
func classifyStatus(lastFail time.Time, fallback state.Status) state.Status {
	if !lastFail.IsZero() && time.Since(lastFail) < unstableWindow {
		return state.StatusUnstable
	}
	return fallback
}

// setStatus writes the supervision status back to the inducing entity; for a
// Mix also to its mixins. Online on input endpoints is filtered out by the
// store, the callback endpoint owns it.
func (s *Supervisor) setStatus(st state.Status) {
	s.env.Store.SetProcessStatus(s.desc.EntityID(), st)
	if m, ok := s.desc.(*Mix); ok {
		for _, mixin := range m.Mixins {
			s.env.Store.SetProcessStatus(mixin.ID, st)
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	args, err := s.desc.Args(s.env)
	if err != nil {
		return err
	}

	mix, _ := s.desc.(*Mix)
	if mix != nil {
		for _, mixin := range mix.Mixins {
			if mixin.Capture == nil {
				continue
			}
			if err := createFIFO(FIFOPath(mixin.ID)); err != nil {
				return err
			}
		}
		defer func() {
			for _, mixin := range mix.Mixins {
				if mixin.Capture != nil {
					_ = removeFIFO(FIFOPath(mixin.ID))
				}
			}
		}()
	}

	cmd := exec.Command(s.bin, args...) // #nosec G204 -- args built from validated state
	cmd.Stderr = s.ring
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	metrics.RecordProcessSpawn(s.desc.Kind())
	s.logger.Debug().Strs("args", args).Msg("child spawned")

	pumpCtx, pumpCancel := context.WithCancel(ctx)
	defer pumpCancel()
	var pumps sync.WaitGroup
	if mix != nil {
		for _, mixin := range mix.Mixins {
			if mixin.Capture == nil {
				continue
			}
			pumps.Add(1)
			go s.pumpFIFO(pumpCtx, &pumps, mixin)
		}
	}
	defer pumps.Wait()

	onlineTimer := time.AfterFunc(onlineAfter, func() {
		s.setStatus(state.StatusOnline)
	})
	defer onlineTimer.Stop()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		pumpCancel()
		return s.classifyExit(err)

	case <-ctx.Done():
		pumpCancel()
		// The child needs the signal twice to tear down its nested
		// re-streaming before exiting.
		_ = procgroup.Signal(cmd, syscall.SIGTERM)
		time.Sleep(time.Millisecond)
		_ = procgroup.Signal(cmd, syscall.SIGTERM)

		select {
		case err := <-waitCh:
			return s.classifyExit(err)
		case <-time.After(killAfter):
			s.logger.Warn().Msg("child ignored termination, killing group")
			_ = procgroup.KillGroup(cmd.Process.Pid, 0, time.Second)
			err := <-waitCh
			return s.classifyExit(err)
		}
	}
}

// classifyExit treats exit codes 0 and 255 and death by the termination
// signal as clean stops.
func (s *Supervisor) classifyExit(err error) error {
	if err == nil {
		metrics.RecordProcessExit(s.desc.Kind(), "clean")
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		var sig syscall.Signal = -1
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			sig = ws.Signal()
		}
		if isCleanExit(code, sig) {
			metrics.RecordProcessExit(s.desc.Kind(), "clean")
			s.logger.Debug().
				Int(log.FieldExitCode, code).
				Msg("child stopped cleanly")
			return nil
		}
	}
	metrics.RecordProcessExit(s.desc.Kind(), "error")
	return err
}

func isCleanExit(code int, sig syscall.Signal) bool {
	return code == 0 || code == 255 || sig == syscall.SIGTERM
}

// pumpFIFO copies captured voice-chat audio into the mixin's named pipe
// until the child stops reading it.
func (s *Supervisor) pumpFIFO(ctx context.Context, wg *sync.WaitGroup, mixin *MixinDesc) {
	defer wg.Done()

	path := FIFOPath(mixin.ID)
	f, err := openFIFOWriter(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).
				Str(log.FieldMixin, mixin.ID.String()).
				Str(log.FieldPath, path).
				Msg("cannot open mixin pipe")
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()

	if _, err := io.Copy(f, mixin.Capture); err != nil && ctx.Err() == nil {
		s.logger.Debug().Err(err).
			Str(log.FieldMixin, mixin.ID.String()).
			Msg("mixin pipe drained")
	}
	_ = f.Close()
}
