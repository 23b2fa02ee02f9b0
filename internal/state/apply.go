// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import "github.com/google/uuid"

// applyRestreams merges incoming restreams into rs, matching by key. Matched
// restreams keep their UUIDs and runtime state; unmatched incoming ones are
// inserted. With replace=true, restreams (and nested outputs/mixins) absent
// from incoming are dropped.
func applyRestreams(rs, incoming []Restream, replace bool) []Restream {
	next := make([]Restream, 0, len(rs)+len(incoming))
	if replace {
		for i := range rs {
			if hasRestreamKey(incoming, rs[i].Key) {
				next = append(next, rs[i])
			}
		}
	} else {
		next = append(next, rs...)
	}
	for _, inc := range incoming {
		if existing := findRestreamByKey(next, inc.Key); existing != nil {
			applyRestream(existing, inc, replace)
			continue
		}
		materializeRestream(&inc)
		next = append(next, inc)
	}
	return next
}

// applyRestream merges src onto dst in place, preserving UUIDs and runtime
// state of items matched by their natural key (input key, endpoint kind,
// output dst, mixin src). Enabled flags of matched items are kept: a
// re-import must not interrupt ongoing re-streams. With replace=false,
// existing outputs absent from src survive.
func applyRestream(dst *Restream, src Restream, replace bool) {
	dst.Key = src.Key
	dst.Label = src.Label
	applyInput(&dst.Input, src.Input)

	if replace {
		outputs := make([]Output, 0, len(src.Outputs))
		for _, inc := range src.Outputs {
			if existing := findOutputByDst(dst.Outputs, inc.Dst); existing != nil {
				applyOutput(existing, inc, replace)
				outputs = append(outputs, *existing)
				continue
			}
			materializeOutput(&inc)
			outputs = append(outputs, inc)
		}
		dst.Outputs = outputs
		return
	}
	for _, inc := range src.Outputs {
		if existing := findOutputByDst(dst.Outputs, inc.Dst); existing != nil {
			applyOutput(existing, inc, replace)
			continue
		}
		materializeOutput(&inc)
		dst.Outputs = append(dst.Outputs, inc)
	}
}

// applyInput merges src onto dst, keeping dst's UUID, enabled flag and the
// endpoint runtime state where the endpoint kind matches. When the key
// changes, the input is disabled in src, or the push/pull type flips, the
// current publisher and players are kicked: the media-server topology of the
// input is no longer the same.
func applyInput(dst *Input, src Input) {
	srcIsPull := src.Src != nil
	dstIsPull := dst.Src != nil
	if dst.Key != src.Key || !src.Enabled || srcIsPull != dstIsPull {
		for i := range dst.Endpoints {
			dst.Endpoints[i].DropClients()
		}
	}

	dst.Key = src.Key
	// dst.Enabled stays untouched to avoid breaking ongoing re-streams.

	endpoints := make([]InputEndpoint, 0, len(src.Endpoints))
	for _, inc := range src.Endpoints {
		if existing := dst.Endpoint(inc.Kind); existing != nil {
			existing.Label = inc.Label
			endpoints = append(endpoints, *existing)
			continue
		}
		materializeEndpoint(&inc)
		endpoints = append(endpoints, inc)
	}
	dst.Endpoints = endpoints

	switch {
	case src.Src == nil:
		dst.Src = nil
	case dst.Src == nil || (src.Src.Failover == nil) != (dst.Src.Failover == nil):
		next := *src.Src
		for i := range next.Failover {
			materializeInput(&next.Failover[i])
		}
		dst.Src = &next
	case src.Src.Remote != nil:
		dst.Src.Remote = src.Src.Remote
	default:
		children := make([]Input, 0, len(src.Src.Failover))
		for _, inc := range src.Src.Failover {
			if existing := findInputByKey(dst.Src.Failover, inc.Key); existing != nil {
				applyInput(existing, inc)
				children = append(children, *existing)
				continue
			}
			materializeInput(&inc)
			children = append(children, inc)
		}
		dst.Src.Failover = children
	}
}

// applyOutput merges src onto dst, keeping dst's UUID, enabled flag and
// status. Mixins matched by src URL keep their UUID and status while taking
// the incoming tunings; with replace=false, existing mixins absent from src
// survive.
func applyOutput(dst *Output, src Output, replace bool) {
	dst.Dst = src.Dst
	dst.Label = src.Label
	dst.PreviewURL = src.PreviewURL
	dst.Volume = src.Volume
	// dst.Enabled stays untouched to avoid breaking ongoing re-streams.

	if replace {
		mixins := make([]Mixin, 0, len(src.Mixins))
		for _, inc := range src.Mixins {
			if existing := findMixinBySrc(dst.Mixins, inc.Src); existing != nil {
				inc.ID = existing.ID
				inc.Status = existing.Status
			} else {
				materializeMixin(&inc)
			}
			mixins = append(mixins, inc)
		}
		dst.Mixins = mixins
		return
	}
	for _, inc := range src.Mixins {
		if existing := findMixinBySrc(dst.Mixins, inc.Src); existing != nil {
			existing.Volume = inc.Volume
			existing.Delay = inc.Delay
			existing.Sidechain = inc.Sidechain
			continue
		}
		materializeMixin(&inc)
		dst.Mixins = append(dst.Mixins, inc)
	}
}

// materializeRestream assigns missing UUIDs and normalizes runtime fields on
// a freshly created restream tree.
func materializeRestream(r *Restream) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	materializeInput(&r.Input)
	for i := range r.Outputs {
		materializeOutput(&r.Outputs[i])
	}
}

func materializeInput(in *Input) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	for i := range in.Endpoints {
		materializeEndpoint(&in.Endpoints[i])
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			materializeInput(&in.Src.Failover[i])
		}
	}
}

func materializeEndpoint(e *InputEndpoint) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = e.Status.Norm()
}

func materializeOutput(o *Output) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.Status = o.Status.Norm()
	for i := range o.Mixins {
		materializeMixin(&o.Mixins[i])
	}
}

func materializeMixin(m *Mixin) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Status = m.Status.Norm()
}

func hasRestreamKey(rs []Restream, key RestreamKey) bool {
	for i := range rs {
		if rs[i].Key == key {
			return true
		}
	}
	return false
}

func findRestreamByKey(rs []Restream, key RestreamKey) *Restream {
	for i := range rs {
		if rs[i].Key == key {
			return &rs[i]
		}
	}
	return nil
}

func findOutputByDst(os []Output, dst OutputDstURL) *Output {
	for i := range os {
		if os[i].Dst == dst {
			return &os[i]
		}
	}
	return nil
}

func findInputByKey(ins []Input, key InputKey) *Input {
	for i := range ins {
		if ins[i].Key == key {
			return &ins[i]
		}
	}
	return nil
}

func findMixinBySrc(ms []Mixin, src MixinSrcURL) *Mixin {
	for i := range ms {
		if ms[i].Src == src {
			return &ms[i]
		}
	}
	return nil
}
