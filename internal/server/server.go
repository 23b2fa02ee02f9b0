// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package server assembles the daemon: state store, process pool, embedded
// media server, HTTP surfaces, and the background loops that keep them
// aligned. Run blocks until the context ends and everything has shut down.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/restreamer/internal/callback"
	"github.com/ManuGH/restreamer/internal/clientstat"
	"github.com/ManuGH/restreamer/internal/config"
	"github.com/ManuGH/restreamer/internal/dvr"
	"github.com/ManuGH/restreamer/internal/ffmpeg"
	"github.com/ManuGH/restreamer/internal/graphqlapi"
	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/srs"
	"github.com/ManuGH/restreamer/internal/state"
	"github.com/ManuGH/restreamer/internal/sysinfo"
	"github.com/ManuGH/restreamer/internal/vc"
)

const (
	// shutdownGrace bounds HTTP server drain and the voice-chat
	// disconnect barrier on shutdown.
	shutdownGrace = 5 * time.Second

	// apiRateLimit is requests per IP per minute on the public API.
	apiRateLimit = 600
)

// Server holds the wired components of one daemon instance.
type Server struct {
	cfg    config.Config
	logger zerolog.Logger

	store      *state.Store
	recordings *dvr.Storage
	vcPool     *vc.Pool
	pool       *ffmpeg.Pool
	media      *srs.Server
	hooks      *callback.Handler
	poller     *clientstat.Poller
	sampler    *sysinfo.Sampler
	gql        *graphqlapi.Handler
}

// New wires a server from the validated configuration. The state snapshot
// is loaded here so a broken file fails before anything listens.
func New(cfg config.Config) (*Server, error) {
	store := state.NewStore()
	snap, err := state.LoadSnapshot(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if snap != nil {
		store.Restore(*snap)
	}

	recordings, err := dvr.NewStorage(cfg.DVRRoot)
	if err != nil {
		return nil, fmt.Errorf("recording store: %w", err)
	}

	media, err := srs.NewServer(srs.Config{
		BinPath:        cfg.SrsPath,
		WorkDir:        cfg.SrsWorkDir,
		HTTPServerDir:  cfg.SrsHTTPDir,
		RTMPPort:       cfg.SrsRTMPPort,
		HTTPServerPort: cfg.SrsHTTPPort,
		APIPort:        cfg.SrsAPIPort,
		CallbackPort:   cfg.CallbackPort,
	})
	if err != nil {
		return nil, fmt.Errorf("media server: %w", err)
	}

	sampler, err := sysinfo.NewSampler(store)
	if err != nil {
		return nil, fmt.Errorf("sysinfo sampler: %w", err)
	}

	vcPool := vc.NewPool(&vc.WebsocketTransport{})
	pool := ffmpeg.NewPool(cfg.FFmpegPath, store, recordings, vcPool, ffmpeg.NewZMQTuner())

	return &Server{
		cfg:        cfg,
		logger:     log.WithComponent("server"),
		store:      store,
		recordings: recordings,
		vcPool:     vcPool,
		pool:       pool,
		media:      media,
		hooks:      callback.NewHandler(store, media.NewClientHandle),
		poller:     clientstat.NewPoller(store, nil),
		sampler:    sampler,
		gql: graphqlapi.NewHandler(graphqlapi.Deps{
			Store:      store,
			Recordings: recordings,
			PublicHost: cfg.PublicHost,
		}, cfg.Debug),
	}, nil
}

// Store exposes the state store, mainly for tests.
func (s *Server) Store() *state.Store { return s.store }

// Run starts every component and blocks until ctx is cancelled and the
// components have stopped. The process pool drains its children before the
// voice-chat barrier is awaited, so captured audio connections outlive
// their consumers by at most the grace period.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.media.Run(ctx) })
	g.Go(func() error { return s.pool.Run(ctx) })
	g.Go(func() error { return s.poller.Run(ctx) })
	g.Go(func() error { return s.sampler.Run(ctx) })
	g.Go(func() error { return s.recordings.Watch(ctx) })
	g.Go(func() error {
		s.store.PersistOnChange(ctx, s.cfg.StatePath)
		return nil
	})
	g.Go(func() error {
		s.cleanupRecordingsOnChange(ctx)
		return nil
	})

	g.Go(func() error { return s.serveAPI(ctx) })
	g.Go(func() error { return s.serveCallback(ctx) })

	err := g.Wait()

	// The pool has stopped its children by now; the captures they held
	// release asynchronously, so bound the disconnect barrier.
	finishCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if ferr := s.vcPool.Finish(finishCtx); ferr != nil {
		s.logger.Warn().Err(ferr).Msg("voice-chat captures did not drain in time")
	}

	return err
}

// cleanupRecordingsOnChange prunes recording directories of removed file
// outputs. The deferral lets a burst of edits settle before disk is touched.
func (s *Server) cleanupRecordingsOnChange(ctx context.Context) {
	const settle = time.Second

	sub := s.store.Restreams.Subscribe(ctx)
	var (
		pending []state.Restream
		dirty   bool
	)
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case restreams, ok := <-sub:
			if !ok {
				return
			}
			pending = restreams
			if !dirty {
				timer.Reset(settle)
				dirty = true
			}
		case <-timer.C:
			s.recordings.Cleanup(pending)
			dirty = false
		}
	}
}

// serveAPI runs the public HTTP server: the GraphQL surfaces and /metrics.
func (s *Server) serveAPI(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(apiRateLimit, time.Minute))
	if s.cfg.OtelEnabled {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "api")
		})
	}
	s.gql.Mount(r)
	r.Handle("/metrics", promhttp.Handler())

	addr := net.JoinHostPort(s.cfg.HTTPBindIP, fmt.Sprint(s.cfg.HTTPBindPort))
	return s.serve(ctx, "api", addr, r)
}

// serveCallback runs the media-server hook endpoint, loopback only: the
// hooks carry no authentication, SRS is a local process.
func (s *Server) serveCallback(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(s.cfg.CallbackPort))
	return s.serve(ctx, "callback", addr, callback.NewRouter(s.hooks))
}

func (s *Server) serve(ctx context.Context, name, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("server", name).Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Str("server", name).Msg("forced close after drain timeout")
		_ = srv.Close()
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
