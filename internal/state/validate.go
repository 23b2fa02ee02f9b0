// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"errors"
	"fmt"
)

// Mixin limits per output.
const (
	MixinsMax          = 5
	TeamspeakMixinsMax = 3
)

// Validation sentinels; the GraphQL layer maps them onto domain error codes.
var (
	ErrRestreamKeyTaken = errors.New("restream key is already in use")
	ErrOutputDstTaken   = errors.New("output destination is already in use")
	ErrTooManyMixins    = errors.New("too many mixins")
	ErrDuplicateMixin   = errors.New("duplicate mixin source")
	ErrTooManyTeamspeak = errors.New("too many teamspeak mixins")
	ErrTooManySidechain = errors.New("at most one sidechain mixin is allowed")
	ErrClientExists     = errors.New("client is already registered")
)

// ValidateRestreams enforces the cross-entity invariants on a whole tree;
// invoked on every apply and on snapshot load.
func ValidateRestreams(rs []Restream) error {
	keys := make(map[RestreamKey]struct{}, len(rs))
	for i := range rs {
		r := &rs[i]
		if _, dup := keys[r.Key]; dup {
			return fmt.Errorf("restream %q: %w", r.Key, ErrRestreamKeyTaken)
		}
		keys[r.Key] = struct{}{}
		if err := ValidateInput(&r.Input); err != nil {
			return fmt.Errorf("restream %q: %w", r.Key, err)
		}
		dsts := make(map[OutputDstURL]struct{}, len(r.Outputs))
		for j := range r.Outputs {
			o := &r.Outputs[j]
			if _, dup := dsts[o.Dst]; dup {
				return fmt.Errorf("restream %q output %q: %w", r.Key, o.Dst, ErrOutputDstTaken)
			}
			dsts[o.Dst] = struct{}{}
			if err := ValidateMixins(o.Mixins); err != nil {
				return fmt.Errorf("restream %q output %q: %w", r.Key, o.Dst, err)
			}
		}
	}
	return nil
}

// ValidateInput enforces the per-input invariants recursively: endpoint kinds
// unique, at least one RTMP endpoint, failover children with unique keys and
// unique remote URLs.
func ValidateInput(in *Input) error {
	kinds := make(map[EndpointKind]struct{}, len(in.Endpoints))
	hasRTMP := false
	for i := range in.Endpoints {
		kind := in.Endpoints[i].Kind
		if _, dup := kinds[kind]; dup {
			return fmt.Errorf("input %q: duplicate %s endpoint", in.Key, kind)
		}
		kinds[kind] = struct{}{}
		if kind == EndpointRTMP {
			hasRTMP = true
		}
	}
	if !hasRTMP {
		return fmt.Errorf("input %q: at least one RTMP endpoint is required", in.Key)
	}
	if in.Src != nil {
		if in.Src.Remote != nil && in.Src.Failover != nil {
			return fmt.Errorf("input %q: src must be either remote or failover", in.Key)
		}
		if in.Src.Remote == nil && in.Src.Failover == nil {
			return fmt.Errorf("input %q: empty src", in.Key)
		}
		keys := make(map[InputKey]struct{}, len(in.Src.Failover))
		urls := make(map[InputSrcURL]struct{})
		for i := range in.Src.Failover {
			sub := &in.Src.Failover[i]
			if _, dup := keys[sub.Key]; dup {
				return fmt.Errorf("input %q: duplicate failover input key %q", in.Key, sub.Key)
			}
			keys[sub.Key] = struct{}{}
			if sub.Src != nil && sub.Src.Remote != nil {
				if _, dup := urls[*sub.Src.Remote]; dup {
					return fmt.Errorf("input %q: duplicate failover source %q", in.Key, *sub.Src.Remote)
				}
				urls[*sub.Src.Remote] = struct{}{}
			}
			if err := ValidateInput(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateMixins enforces the per-output mixin limits: at most 5 mixins, at
// most 3 voice-chat ones, at most one sidechain, sources unique.
func ValidateMixins(mixins []Mixin) error {
	if len(mixins) > MixinsMax {
		return ErrTooManyMixins
	}
	srcs := make(map[MixinSrcURL]struct{}, len(mixins))
	teamspeak, sidechain := 0, 0
	for i := range mixins {
		m := &mixins[i]
		if _, dup := srcs[m.Src]; dup {
			return ErrDuplicateMixin
		}
		srcs[m.Src] = struct{}{}
		if m.Src.IsTeamspeak() {
			teamspeak++
		}
		if m.Sidechain {
			sidechain++
		}
	}
	if teamspeak > TeamspeakMixinsMax {
		return ErrTooManyTeamspeak
	}
	if sidechain > 1 {
		return ErrTooManySidechain
	}
	return nil
}
