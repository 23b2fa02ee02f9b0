// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
	"github.com/ManuGH/restreamer/internal/state"
	"github.com/ManuGH/restreamer/internal/vc"
)

// Pool keeps the running child processes aligned with the configuration
// tree: every restreams snapshot is diffed against the running set, keyed by
// the inducing entity's UUID.
type Pool struct {
	bin    string
	env    *Env
	vcPool *vc.Pool
	tuner  VolumeTuner
	logger zerolog.Logger

	procs map[uuid.UUID]*Supervisor
}

// NewPool creates a pool spawning children from the given binary.
func NewPool(bin string, store *state.Store, files FileStore, vcPool *vc.Pool, tuner VolumeTuner) *Pool {
	return &Pool{
		bin:    bin,
		env:    &Env{Store: store, Files: files},
		vcPool: vcPool,
		tuner:  tuner,
		logger: log.WithComponent("pool"),
		procs:  make(map[uuid.UUID]*Supervisor),
	}
}

// Run reconciles on every restreams snapshot until ctx ends, then tears the
// whole pool down and waits for the children to stop.
func (p *Pool) Run(ctx context.Context) error {
	for restreams := range p.env.Store.Restreams.Subscribe(ctx) {
		p.Reconcile(restreams)
	}
	p.shutdown()
	return nil
}

// Reconcile diffs the desired process set derived from restreams against the
// running one. Running processes whose descriptors need no restart are kept;
// everything else is started or gracefully stopped.
func (p *Pool) Reconcile(restreams []state.Restream) {
	metrics.PoolReconciliations.Inc()

	next := make(map[uuid.UUID]*Supervisor, len(p.procs)+1)
	var discarded []Descriptor

	for i := range restreams {
		r := &restreams[i]
		p.reconcileInput(r, &r.Input, next, &discarded)

		if !r.Input.Enabled || !r.Input.HasOnlineRTMP() {
			continue
		}
		fromURL := r.MainEndpointURL()
		for j := range r.Outputs {
			desc := p.outputDescriptor(&r.Outputs[j], fromURL)
			p.reconcileDesired(desc, next, &discarded)
		}
	}

	for id, s := range p.procs {
		s.Stop()
		discarded = append(discarded, s.desc)
		delete(p.procs, id)
	}
	p.procs = next

	p.closeOrphanCaptures(discarded)
	metrics.ProcessesRunning.Set(float64(len(next)))
}

// reconcileInput walks the input tree, failover children first.
func (p *Pool) reconcileInput(r *state.Restream, in *state.Input, next map[uuid.UUID]*Supervisor, discarded *[]Descriptor) {
	if in.Src != nil {
		for i := range in.Src.Failover {
			p.reconcileInput(r, &in.Src.Failover[i], next, discarded)
		}
	}
	for i := range in.Endpoints {
		p.reconcileDesired(inputDescriptor(r, in, &in.Endpoints[i]), next, discarded)
	}
}

// reconcileDesired places one desired descriptor into next, preserving the
// running process when it can absorb the change.
func (p *Pool) reconcileDesired(desc Descriptor, next map[uuid.UUID]*Supervisor, discarded *[]Descriptor) {
	if desc == nil {
		return
	}
	id := desc.EntityID()

	old, running := p.procs[id]
	if running {
		delete(p.procs, id)
		if !needsRestart(old.desc, desc, p.tuner) {
			next[id] = old
			*discarded = append(*discarded, desc)
			return
		}
		old.Stop()
		*discarded = append(*discarded, old.desc)
		p.logger.Info().
			Str(log.FieldProcessID, id.String()).
			Str("kind", desc.Kind()).
			Msg("restarting child for changed parameters")
	}
	next[id] = startSupervisor(desc, p.bin, p.env)
}

// closeOrphanCaptures closes voice-chat captures of dropped or discarded mix
// descriptors that no running descriptor adopted.
func (p *Pool) closeOrphanCaptures(discarded []Descriptor) {
	adopted := make(map[*vc.Handle]struct{})
	for _, s := range p.procs {
		if m, ok := s.desc.(*Mix); ok {
			for _, mixin := range m.Mixins {
				if mixin.Capture != nil {
					adopted[mixin.Capture] = struct{}{}
				}
			}
		}
	}
	for _, desc := range discarded {
		m, ok := desc.(*Mix)
		if !ok {
			continue
		}
		for _, mixin := range m.Mixins {
			if mixin.Capture == nil {
				continue
			}
			if _, ok := adopted[mixin.Capture]; !ok {
				_ = mixin.Capture.Close()
			}
		}
	}
}

// shutdown stops every child and waits for them to exit.
func (p *Pool) shutdown() {
	for _, s := range p.procs {
		s.Stop()
	}
	deadline := time.After(killAfter + 2*time.Second)
	for id, s := range p.procs {
		select {
		case <-s.Done():
		case <-deadline:
			p.logger.Warn().
				Str(log.FieldProcessID, id.String()).
				Msg("child did not stop before shutdown deadline")
		}
	}
	p.procs = make(map[uuid.UUID]*Supervisor)
	metrics.ProcessesRunning.Set(0)
}

// inputDescriptor synthesizes the process serving one input endpoint, or nil
// when the endpoint needs none.
func inputDescriptor(r *state.Restream, in *state.Input, e *state.InputEndpoint) Descriptor {
	if !in.Enabled {
		return nil
	}
	switch e.Kind {
	case state.EndpointRTMP:
		if in.Src == nil {
			// Push inputs publish straight to the media server.
			return nil
		}
		var fromURL string
		switch {
		case in.Src.Remote != nil:
			fromURL = string(*in.Src.Remote)
		default:
			for i := range in.Src.Failover {
				inner := &in.Src.Failover[i]
				ep := inner.Endpoint(state.EndpointRTMP)
				if ep != nil && ep.Status == state.StatusOnline {
					fromURL = r.EndpointURL(inner, state.EndpointRTMP)
					break
				}
			}
			if fromURL == "" {
				// No failover source is Online yet; the callback raising one
				// will trigger another reconciliation.
				return nil
			}
		}
		return &Copy{
			ID:      e.ID,
			FromURL: fromURL,
			ToURL:   r.EndpointURL(in, state.EndpointRTMP),
		}

	case state.EndpointHLS:
		if !in.HasOnlineRTMP() {
			return nil
		}
		return &Transcode{
			ID:       e.ID,
			FromURL:  r.EndpointURL(in, state.EndpointRTMP),
			ToURL:    r.EndpointURL(in, state.EndpointHLS),
			VCodec:   "libx264",
			VProfile: "baseline",
			VPreset:  "superfast",
			ACodec:   "libfdk_aac",
		}
	}
	return nil
}

// outputDescriptor synthesizes the process pushing one output, or nil when
// the output is disabled.
func (p *Pool) outputDescriptor(o *state.Output, fromURL string) Descriptor {
	if !o.Enabled {
		return nil
	}
	toURL := string(o.Dst)
	if o.Dst.Scheme() == "file" {
		toURL = p.env.Files.FileURL(o.ID, o.Dst)
	}
	if len(o.Mixins) == 0 {
		return &Copy{ID: o.ID, FromURL: fromURL, ToURL: toURL}
	}

	var prev *Mix
	if old, ok := p.procs[o.ID]; ok {
		prev, _ = old.desc.(*Mix)
	}
	return NewMix(o, fromURL, toURL, prev, p.vcPool)
}
