// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"fmt"

	"github.com/google/uuid"
)

// EndpointKind is the protocol surface of an input endpoint.
type EndpointKind string

const (
	// EndpointRTMP accepts or serves the stream over RTMP.
	EndpointRTMP EndpointKind = "RTMP"
	// EndpointHLS serves the stream as HLS, transcoded from the RTMP one.
	EndpointHLS EndpointKind = "HLS"
)

// InputEndpoint is one concrete protocol surface of an input. Status and the
// media-server client handles are runtime-only.
type InputEndpoint struct {
	ID    uuid.UUID    `json:"id"`
	Kind  EndpointKind `json:"kind"`
	Label *Label       `json:"label,omitempty"`

	Status    Status                           `json:"-"`
	Publisher *SrsClientHandle                 `json:"-"`
	Players   map[SrsClientID]*SrsClientHandle `json:"-"`
}

// Clone deep-copies the endpoint. Client handles are shared, not duplicated:
// ownership of a connection stays with the single handle.
func (e InputEndpoint) Clone() InputEndpoint {
	out := e
	if e.Label != nil {
		l := *e.Label
		out.Label = &l
	}
	if e.Players != nil {
		out.Players = make(map[SrsClientID]*SrsClientHandle, len(e.Players))
		for id, h := range e.Players {
			out.Players[id] = h
		}
	}
	return out
}

// SetPublisher installs h as the current publisher and releases the previous
// handle afterwards, so the kick of the prior client never races the install.
func (e *InputEndpoint) SetPublisher(h *SrsClientHandle) {
	prev := e.Publisher
	e.Publisher = h
	prev.Release()
}

// DropClients releases the publisher and all player handles and clears them.
func (e *InputEndpoint) DropClients() {
	e.SetPublisher(nil)
	for _, h := range e.Players {
		h.Release()
	}
	e.Players = nil
}

// InputSrc is where an input pulls its stream from: exactly one of Remote
// (a single pull URL) or Failover (ordered alternative inputs, first Online
// wins) is set.
type InputSrc struct {
	Remote   *InputSrcURL `json:"remote,omitempty"`
	Failover []Input      `json:"failover,omitempty"`
}

// Clone deep-copies the source.
func (s *InputSrc) Clone() *InputSrc {
	if s == nil {
		return nil
	}
	out := &InputSrc{}
	if s.Remote != nil {
		u := *s.Remote
		out.Remote = &u
	}
	if s.Failover != nil {
		out.Failover = make([]Input, len(s.Failover))
		for i, in := range s.Failover {
			out.Failover[i] = in.Clone()
		}
	}
	return out
}

// Input is the pull or receive side of a restream.
type Input struct {
	ID        uuid.UUID       `json:"id"`
	Key       InputKey        `json:"key"`
	Endpoints []InputEndpoint `json:"endpoints"`
	Src       *InputSrc       `json:"src,omitempty"`
	Enabled   bool            `json:"enabled"`
}

// Clone deep-copies the input tree.
func (in Input) Clone() Input {
	out := in
	out.Endpoints = make([]InputEndpoint, len(in.Endpoints))
	for i, e := range in.Endpoints {
		out.Endpoints[i] = e.Clone()
	}
	out.Src = in.Src.Clone()
	return out
}

// Endpoint returns the endpoint of the given kind, or nil.
func (in *Input) Endpoint(kind EndpointKind) *InputEndpoint {
	for i := range in.Endpoints {
		if in.Endpoints[i].Kind == kind {
			return &in.Endpoints[i]
		}
	}
	return nil
}

// Find walks the input tree (self included) for the input with the given id.
func (in *Input) Find(id uuid.UUID) *Input {
	if in.ID == id {
		return in
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			if found := in.Src.Failover[i].Find(id); found != nil {
				return found
			}
		}
	}
	return nil
}

// FindEndpoint walks the input tree for the endpoint with the given id.
func (in *Input) FindEndpoint(id uuid.UUID) *InputEndpoint {
	for i := range in.Endpoints {
		if in.Endpoints[i].ID == id {
			return &in.Endpoints[i]
		}
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			if found := in.Src.Failover[i].FindEndpoint(id); found != nil {
				return found
			}
		}
	}
	return nil
}

// FindByKey walks the input tree for the input with the given key,
// optionally restricted to enabled branches.
func (in *Input) FindByKey(key InputKey, enabledOnly bool) *Input {
	if enabledOnly && !in.Enabled {
		return nil
	}
	if in.Key == key {
		return in
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			if found := in.Src.Failover[i].FindByKey(key, enabledOnly); found != nil {
				return found
			}
		}
	}
	return nil
}

// SetEnabled flips the input and every failover descendant. Disabling also
// drops the endpoints' client handles and forces their status Offline, so the
// reconciler observes the change without waiting for a media-server callback.
// Reports whether anything flipped.
func (in *Input) SetEnabled(enabled bool) bool {
	changed := in.Enabled != enabled
	in.Enabled = enabled
	if !enabled {
		for i := range in.Endpoints {
			e := &in.Endpoints[i]
			e.DropClients()
			if e.Status != StatusOffline {
				e.Status = StatusOffline
				changed = true
			}
		}
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			if in.Src.Failover[i].SetEnabled(enabled) {
				changed = true
			}
		}
	}
	return changed
}

// HasOnlineRTMP reports whether some RTMP endpoint in the tree is Online.
func (in *Input) HasOnlineRTMP() bool {
	if e := in.Endpoint(EndpointRTMP); e != nil && e.Status == StatusOnline {
		return true
	}
	if in.Src != nil {
		for i := range in.Src.Failover {
			if in.Src.Failover[i].HasOnlineRTMP() {
				return true
			}
		}
	}
	return false
}

// Output is a push-side destination of a restream.
type Output struct {
	ID         uuid.UUID    `json:"id"`
	Dst        OutputDstURL `json:"dst"`
	Label      *Label       `json:"label,omitempty"`
	PreviewURL *string      `json:"preview_url,omitempty"`
	Volume     Volume       `json:"volume"`
	Mixins     []Mixin      `json:"mixins"`
	Enabled    bool         `json:"enabled"`

	Status Status `json:"-"`
}

// Clone deep-copies the output.
func (o Output) Clone() Output {
	out := o
	if o.Label != nil {
		l := *o.Label
		out.Label = &l
	}
	if o.PreviewURL != nil {
		p := *o.PreviewURL
		out.PreviewURL = &p
	}
	out.Mixins = make([]Mixin, len(o.Mixins))
	copy(out.Mixins, o.Mixins)
	return out
}

// Mixin finds a mixin by id, or nil.
func (o *Output) Mixin(id uuid.UUID) *Mixin {
	for i := range o.Mixins {
		if o.Mixins[i].ID == id {
			return &o.Mixins[i]
		}
	}
	return nil
}

// Mixin is an auxiliary audio source folded into an output.
type Mixin struct {
	ID        uuid.UUID   `json:"id"`
	Src       MixinSrcURL `json:"src"`
	Volume    Volume      `json:"volume"`
	Delay     Delay       `json:"delay"`
	Sidechain bool        `json:"sidechain"`

	Status Status `json:"-"`
}

// Restream is one named pipeline from one input to many outputs.
type Restream struct {
	ID      uuid.UUID   `json:"id"`
	Key     RestreamKey `json:"key"`
	Label   *Label      `json:"label,omitempty"`
	Input   Input       `json:"input"`
	Outputs []Output    `json:"outputs"`
}

// Clone deep-copies the restream.
func (r Restream) Clone() Restream {
	out := r
	if r.Label != nil {
		l := *r.Label
		out.Label = &l
	}
	out.Input = r.Input.Clone()
	out.Outputs = make([]Output, len(r.Outputs))
	for i, o := range r.Outputs {
		out.Outputs[i] = o.Clone()
	}
	return out
}

// Output finds an output by id, or nil.
func (r *Restream) Output(id uuid.UUID) *Output {
	for i := range r.Outputs {
		if r.Outputs[i].ID == id {
			return &r.Outputs[i]
		}
	}
	return nil
}

// EndpointURL derives the internal media-server URL of the given input's
// endpoint of the given kind: rtmp://127.0.0.1:1935/<key>[?vhost=hls]/<input>.
func (r *Restream) EndpointURL(in *Input, kind EndpointKind) string {
	if kind == EndpointHLS {
		return fmt.Sprintf("rtmp://127.0.0.1:1935/%s?vhost=hls/%s", r.Key, in.Key)
	}
	return fmt.Sprintf("rtmp://127.0.0.1:1935/%s/%s", r.Key, in.Key)
}

// MainEndpointURL is the internal RTMP URL of the restream's top-level input,
// the pull side of every output process.
func (r *Restream) MainEndpointURL() string {
	return r.EndpointURL(&r.Input, EndpointRTMP)
}

// CloneRestreams deep-copies a restream list; the Restreams cell uses it as
// its snapshot copier.
func CloneRestreams(rs []Restream) []Restream {
	if rs == nil {
		return nil
	}
	out := make([]Restream, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
