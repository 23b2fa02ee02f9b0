// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package spec is the versioned, shareable shape of the configuration tree:
// what export produces and import accepts. It strips runtime fields, checks
// the tree invariants while decoding, and tolerates absent UUIDs.
package spec

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ManuGH/restreamer/internal/state"
)

// Version is the wire tag of this spec revision.
const Version = "v1.0"

// Spec is a shareable snapshot of settings and restreams.
type Spec struct {
	Settings  *Settings
	Restreams []Restream
}

type specJSON struct {
	Version   string     `json:"version"`
	Settings  *Settings  `json:"settings,omitempty"`
	Restreams []Restream `json:"restreams"`
}

// MarshalJSON attaches the version tag.
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(specJSON{
		Version:   Version,
		Settings:  s.Settings,
		Restreams: s.Restreams,
	})
}

// UnmarshalJSON dispatches on the version tag and checks restream keys for
// uniqueness.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw specJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Version != Version {
		return fmt.Errorf("unsupported spec version %q, expected %q", raw.Version, Version)
	}
	seen := make(map[state.RestreamKey]struct{}, len(raw.Restreams))
	for _, r := range raw.Restreams {
		if _, dup := seen[r.Key]; dup {
			return fmt.Errorf("duplicate Restream.key in Spec.restreams: %s", r.Key)
		}
		seen[r.Key] = struct{}{}
	}
	s.Settings = raw.Settings
	s.Restreams = raw.Restreams
	return nil
}

// Parse decodes and validates a spec document.
func Parse(data []byte) (Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Settings is the importable subset of the server settings; password hashes
// never travel in a spec.
type Settings struct {
	Title              *string `json:"title,omitempty"`
	DeleteConfirmation *bool   `json:"delete_confirmation,omitempty"`
	EnableConfirmation *bool   `json:"enable_confirmation,omitempty"`
}

// Restream is the shareable shape of one restream.
type Restream struct {
	ID      *uuid.UUID        `json:"id,omitempty"`
	Key     state.RestreamKey `json:"key"`
	Label   *state.Label      `json:"label,omitempty"`
	Input   Input             `json:"input"`
	Outputs []Output          `json:"outputs,omitempty"`
}

// UnmarshalJSON checks output destinations for uniqueness.
func (r *Restream) UnmarshalJSON(data []byte) error {
	type alias Restream
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	seen := make(map[state.OutputDstURL]struct{}, len(a.Outputs))
	for _, o := range a.Outputs {
		if _, dup := seen[o.Dst]; dup {
			return fmt.Errorf("duplicate Output.dst in Restream.outputs: %s", o.Dst)
		}
		seen[o.Dst] = struct{}{}
	}
	*r = Restream(a)
	return nil
}

// Input is the shareable shape of an input. UUIDs found in a document are
// ignored on decode: matching happens by key.
type Input struct {
	Key       state.InputKey  `json:"key"`
	Endpoints []InputEndpoint `json:"endpoints"`
	Src       *InputSrc       `json:"src,omitempty"`
	Enabled   bool            `json:"enabled,omitempty"`
}

// UnmarshalJSON checks endpoint kinds for uniqueness, requires an RTMP
// endpoint and validates failover subtrees for unique keys and pull URLs.
func (in *Input) UnmarshalJSON(data []byte) error {
	type alias Input
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	kinds := make(map[state.EndpointKind]struct{}, len(a.Endpoints))
	for _, e := range a.Endpoints {
		if _, dup := kinds[e.Kind]; dup {
			return fmt.Errorf("duplicate InputEndpoint.kind in Input.endpoints: %s", e.Kind)
		}
		kinds[e.Kind] = struct{}{}
	}
	if _, ok := kinds[state.EndpointRTMP]; !ok {
		return fmt.Errorf("Input.endpoints should contain at least one %s endpoint", state.EndpointRTMP)
	}

	if a.Src != nil {
		urls := make(map[state.InputSrcURL]struct{})
		keys := map[state.InputKey]struct{}{a.Key: {}}
		if err := ensureSrcsUnique(a.Src, urls, keys); err != nil {
			return err
		}
	}

	*in = Input(a)
	return nil
}

func ensureSrcsUnique(src *InputSrc, urls map[state.InputSrcURL]struct{}, keys map[state.InputKey]struct{}) error {
	if src.RemoteURL != nil {
		if _, dup := urls[*src.RemoteURL]; dup {
			return fmt.Errorf("duplicate RemoteInputSrc.url in Input.src: %s", *src.RemoteURL)
		}
		urls[*src.RemoteURL] = struct{}{}
		return nil
	}
	for _, i := range src.FailoverInputs {
		if _, dup := keys[i.Key]; dup {
			return fmt.Errorf("duplicate Input.key in Input.srcs: %s", i.Key)
		}
		keys[i.Key] = struct{}{}
		if i.Src != nil {
			if err := ensureSrcsUnique(i.Src, urls, keys); err != nil {
				return err
			}
		}
	}
	return nil
}

// InputEndpoint is the shareable shape of an endpoint.
type InputEndpoint struct {
	Kind  state.EndpointKind `json:"kind"`
	Label *state.Label       `json:"label,omitempty"`
}

// InputSrc is the shareable pull source: exactly one of the two fields is
// set.
type InputSrc struct {
	RemoteURL      *state.InputSrcURL `json:"remote_url,omitempty"`
	FailoverInputs []Input            `json:"failover_inputs,omitempty"`
}

// UnmarshalJSON requires exactly one variant.
func (s *InputSrc) UnmarshalJSON(data []byte) error {
	type alias InputSrc
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if (a.RemoteURL == nil) == (a.FailoverInputs == nil) {
		return fmt.Errorf("Input.src must be either remote_url or failover_inputs")
	}
	*s = InputSrc(a)
	return nil
}

// Output is the shareable shape of an output.
type Output struct {
	ID         *uuid.UUID         `json:"id,omitempty"`
	Dst        state.OutputDstURL `json:"dst"`
	Label      *state.Label       `json:"label,omitempty"`
	PreviewURL *string            `json:"preview_url,omitempty"`
	Volume     *state.Volume      `json:"volume,omitempty"` // origin when absent
	Mixins     []Mixin            `json:"mixins,omitempty"`
	Enabled    bool               `json:"enabled,omitempty"`
}

// UnmarshalJSON enforces the mixin limits.
func (o *Output) UnmarshalJSON(data []byte) error {
	type alias Output
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	mixins := make([]state.Mixin, len(a.Mixins))
	for i, m := range a.Mixins {
		mixins[i] = state.Mixin{Src: m.Src, Sidechain: m.Sidechain}
	}
	if err := state.ValidateMixins(mixins); err != nil {
		return fmt.Errorf("Output.mixins of %s: %w", a.Dst, err)
	}
	*o = Output(a)
	return nil
}

// Mixin is the shareable shape of a mixin.
type Mixin struct {
	Src       state.MixinSrcURL `json:"src"`
	Volume    *state.Volume     `json:"volume,omitempty"` // origin when absent
	Delay     state.Delay       `json:"delay,omitempty"`
	Sidechain bool              `json:"sidechain,omitempty"`
}
