// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clientstat polls sibling restreamers for their aggregate health.
// One loop per tracked peer; results and failures land in the peer's
// statistics slot on the dashboard.
package clientstat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
	"github.com/ManuGH/restreamer/internal/state"
)

const (
	pollInterval = 2 * time.Second
	pollTimeout  = 5 * time.Second
)

// statisticsQuery is the fixed GraphQL document sent to a peer's open
// statistics schema.
const statisticsQuery = `{ statistics { clientTitle timestamp ` +
	`inputs { status count } outputs { status count } ` +
	`serverInfo { cpuUsage cpuCores ramTotal ramFree txDelta rxDelta errorMsg } } }`

// Poller follows the Clients cell and keeps one polling loop per peer alive.
type Poller struct {
	store  *state.Store
	client *http.Client
	logger zerolog.Logger

	mu    sync.Mutex
	loops map[state.ClientID]context.CancelFunc
	wg    sync.WaitGroup
}

// NewPoller builds the poller; httpClient may be nil for a default one.
func NewPoller(store *state.Store, httpClient *http.Client) *Poller {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: pollTimeout}
	}
	return &Poller{
		store:  store,
		client: httpClient,
		logger: log.WithComponent("clientstat"),
		loops:  make(map[state.ClientID]context.CancelFunc),
	}
}

// Run reconciles polling loops against the Clients cell until ctx ends,
// then stops every loop.
func (p *Poller) Run(ctx context.Context) error {
	for clients := range p.store.Clients.Subscribe(ctx) {
		p.reconcile(ctx, clients)
	}
	p.mu.Lock()
	for _, cancel := range p.loops {
		cancel()
	}
	p.loops = make(map[state.ClientID]context.CancelFunc)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func (p *Poller) reconcile(ctx context.Context, clients []state.Client) {
	wanted := make(map[state.ClientID]struct{}, len(clients))
	for _, c := range clients {
		wanted[c.ID] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.loops {
		if _, ok := wanted[id]; !ok {
			cancel()
			delete(p.loops, id)
		}
	}
	for id := range wanted {
		if _, ok := p.loops[id]; ok {
			continue
		}
		loopCtx, cancel := context.WithCancel(ctx)
		p.loops[id] = cancel
		p.wg.Add(1)
		go p.loop(loopCtx, id)
	}
}

func (p *Poller) loop(ctx context.Context, id state.ClientID) {
	defer p.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		p.store.SetClientStatistics(id, p.pollOnce(ctx, id))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce never lets a single peer take the poller down: transport and
// decode failures, and even panics out of a malformed payload, end up as
// the peer's error list.
func (p *Poller) pollOnce(ctx context.Context, id state.ClientID) (resp *state.ClientStatisticsResponse) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordPeerPoll("panic")
			p.logger.Error().
				Str(log.FieldClient, string(id)).
				Interface("panic", r).
				Msg("peer poll panicked")
			resp = &state.ClientStatisticsResponse{
				Errors: []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()

	stats, err := p.fetch(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return &state.ClientStatisticsResponse{Errors: []string{err.Error()}}
		}
		metrics.RecordPeerPoll("error")
		p.logger.Warn().Err(err).
			Str(log.FieldClient, string(id)).
			Msg("peer poll failed")
		return &state.ClientStatisticsResponse{Errors: []string{err.Error()}}
	}
	metrics.RecordPeerPoll("ok")
	return &state.ClientStatisticsResponse{Data: stats}
}

func (p *Poller) fetch(ctx context.Context, id state.ClientID) (*state.ClientStatistics, error) {
	body, err := json.Marshal(map[string]string{"query": statisticsQuery})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		string(id)+"/api-statistics", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("peer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peer unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer answered %s", resp.Status)
	}

	var payload struct {
		Data *struct {
			Statistics *state.ClientStatistics `json:"statistics"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unparseable peer answer: %w", err)
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("peer error: %s", payload.Errors[0].Message)
	}
	if payload.Data == nil || payload.Data.Statistics == nil {
		return nil, fmt.Errorf("peer answer carries no statistics")
	}
	return payload.Data.Statistics, nil
}
