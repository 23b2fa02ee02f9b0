// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vc

import (
	"context"
	"io"
	"sync"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/rs/zerolog"
)

// Pool tracks every open voice-chat capture so shutdown can wait for all of
// them to disconnect before the process exits.
type Pool struct {
	transport Transport
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	live   map[*Handle]struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewPool creates a pool dialing through the given transport; nil selects the
// websocket transport.
func NewPool(t Transport) *Pool {
	if t == nil {
		t = &WebsocketTransport{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		transport: t,
		logger:    log.WithComponent("vc"),
		ctx:       ctx,
		cancel:    cancel,
		live:      make(map[*Handle]struct{}),
	}
}

// Open registers a new capture handle. The connection is established lazily
// on the first Read, so descriptors can be built without touching the
// network.
func (p *Pool) Open(cfg ConnConfig) *Handle {
	h := &Handle{pool: p, cfg: cfg}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		h.closed = true
		return h
	}
	p.live[h] = struct{}{}
	p.wg.Add(1)
	return h
}

// Finish closes every live capture and blocks until all of them have
// disconnected, or until ctx expires.
func (p *Pool) Finish(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	handles := make([]*Handle, 0, len(p.live))
	for h := range p.live {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		_ = h.Close()
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[h]; !ok {
		return
	}
	delete(p.live, h)
	p.wg.Done()
}

// Handle is one live voice-chat capture, shared between successive mix
// descriptors of the same output so reconnect churn stays bounded to actual
// source changes.
type Handle struct {
	pool *Pool
	cfg  ConnConfig

	mu     sync.Mutex
	conn   io.ReadCloser
	closed bool
}

// Config returns the capture parameters this handle was opened with.
func (h *Handle) Config() ConnConfig { return h.cfg }

// Read delivers captured PCM bytes, dialing on first use. A transport error
// drops the connection so the next Read dials afresh.
func (h *Handle) Read(p []byte) (int, error) {
	conn, err := h.ensureConn()
	if err != nil {
		return 0, err
	}
	n, err := conn.Read(p)
	if err != nil {
		h.mu.Lock()
		if h.conn == conn {
			_ = conn.Close()
			h.conn = nil
		}
		h.mu.Unlock()
	}
	return n, err
}

func (h *Handle) ensureConn() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, io.ErrClosedPipe
	}
	if h.conn != nil {
		return h.conn, nil
	}
	conn, err := h.pool.transport.Dial(h.pool.ctx, h.cfg)
	if err != nil {
		h.pool.logger.Error().Err(err).
			Str("host", h.cfg.Host).
			Str("channel", h.cfg.Channel).
			Msg("voice chat connection failed")
		return nil, err
	}
	h.pool.logger.Debug().
		Str("host", h.cfg.Host).
		Str("channel", h.cfg.Channel).
		Str("name", h.cfg.Name).
		Msg("voice chat connected")
	h.conn = conn
	return conn, nil
}

// Close disconnects the capture and unregisters it from the pool. Safe to
// call more than once and on a nil handle.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	h.pool.release(h)
	return err
}
