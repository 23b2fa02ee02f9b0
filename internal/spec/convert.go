// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package spec

import (
	"github.com/ManuGH/restreamer/internal/state"
)

// ModelRestreams converts the spec restreams into state-model values. UUIDs
// absent from the document stay uuid.Nil; the store assigns fresh ones for
// items it cannot match by natural key.
func (s Spec) ModelRestreams() []state.Restream {
	out := make([]state.Restream, len(s.Restreams))
	for i, r := range s.Restreams {
		out[i] = r.Model()
	}
	return out
}

// ApplyTo bulk-upserts the spec into the store. Settings apply when present
// in the document, or reset to defaults on replace.
func (s Spec) ApplyTo(store *state.Store, replace bool) error {
	if err := store.Apply(s.ModelRestreams(), replace); err != nil {
		return err
	}
	if s.Settings != nil || replace {
		incoming := s.Settings
		if incoming == nil {
			def := ExportSettings(state.DefaultSettings())
			incoming = &def
		}
		store.Settings.Update(func(cur *state.Settings) {
			cur.ApplySpec(incoming.Title, incoming.DeleteConfirmation, incoming.EnableConfirmation)
		})
	}
	return nil
}

// Model converts one spec restream into its state-model value.
func (r Restream) Model() state.Restream {
	out := state.Restream{
		Key:     r.Key,
		Label:   r.Label,
		Input:   r.Input.Model(),
		Outputs: make([]state.Output, len(r.Outputs)),
	}
	if r.ID != nil {
		out.ID = *r.ID
	}
	for i, o := range r.Outputs {
		out.Outputs[i] = o.Model()
	}
	return out
}

// Model converts one spec input into its state-model value.
func (in Input) Model() state.Input {
	out := state.Input{
		Key:       in.Key,
		Enabled:   in.Enabled,
		Endpoints: make([]state.InputEndpoint, len(in.Endpoints)),
	}
	for i, e := range in.Endpoints {
		out.Endpoints[i] = state.InputEndpoint{Kind: e.Kind, Label: e.Label}
	}
	if in.Src != nil {
		src := &state.InputSrc{}
		if in.Src.RemoteURL != nil {
			u := *in.Src.RemoteURL
			src.Remote = &u
		} else {
			src.Failover = make([]state.Input, len(in.Src.FailoverInputs))
			for i, sub := range in.Src.FailoverInputs {
				src.Failover[i] = sub.Model()
			}
		}
		out.Src = src
	}
	return out
}

// Model converts one spec output into its state-model value.
func (o Output) Model() state.Output {
	out := state.Output{
		Dst:        o.Dst,
		Label:      o.Label,
		PreviewURL: o.PreviewURL,
		Volume:     volumeOrOrigin(o.Volume),
		Enabled:    o.Enabled,
		Mixins:     make([]state.Mixin, len(o.Mixins)),
	}
	if o.ID != nil {
		out.ID = *o.ID
	}
	for i, m := range o.Mixins {
		out.Mixins[i] = state.Mixin{
			Src:       m.Src,
			Volume:    volumeOrOrigin(m.Volume),
			Delay:     m.Delay,
			Sidechain: m.Sidechain,
		}
	}
	return out
}

func volumeOrOrigin(v *state.Volume) state.Volume {
	if v == nil {
		return state.VolumeOrigin()
	}
	return *v
}

// Export renders the persisted state as a shareable spec. UUIDs travel along
// so a replace re-import keeps identities.
func Export(settings state.Settings, restreams []state.Restream) Spec {
	s := ExportSettings(settings)
	out := Spec{Settings: &s, Restreams: make([]Restream, len(restreams))}
	for i := range restreams {
		out.Restreams[i] = ExportRestream(restreams[i])
	}
	return out
}

// ExportSettings strips the password hashes.
func ExportSettings(s state.Settings) Settings {
	return Settings{
		Title:              s.Title,
		DeleteConfirmation: s.DeleteConfirmation,
		EnableConfirmation: s.EnableConfirmation,
	}
}

// ExportRestream renders one restream, runtime fields stripped.
func ExportRestream(r state.Restream) Restream {
	id := r.ID
	out := Restream{
		ID:      &id,
		Key:     r.Key,
		Label:   r.Label,
		Input:   exportInput(r.Input),
		Outputs: make([]Output, len(r.Outputs)),
	}
	for i := range r.Outputs {
		out.Outputs[i] = exportOutput(r.Outputs[i])
	}
	return out
}

func exportInput(in state.Input) Input {
	out := Input{
		Key:       in.Key,
		Enabled:   in.Enabled,
		Endpoints: make([]InputEndpoint, len(in.Endpoints)),
	}
	for i, e := range in.Endpoints {
		out.Endpoints[i] = InputEndpoint{Kind: e.Kind, Label: e.Label}
	}
	if in.Src != nil {
		src := &InputSrc{}
		if in.Src.Remote != nil {
			u := *in.Src.Remote
			src.RemoteURL = &u
		} else {
			src.FailoverInputs = make([]Input, len(in.Src.Failover))
			for i := range in.Src.Failover {
				src.FailoverInputs[i] = exportInput(in.Src.Failover[i])
			}
		}
		out.Src = src
	}
	return out
}

func exportOutput(o state.Output) Output {
	id := o.ID
	vol := o.Volume
	out := Output{
		ID:         &id,
		Dst:        o.Dst,
		Label:      o.Label,
		PreviewURL: o.PreviewURL,
		Volume:     &vol,
		Enabled:    o.Enabled,
		Mixins:     make([]Mixin, len(o.Mixins)),
	}
	for i, m := range o.Mixins {
		mv := m.Volume
		out.Mixins[i] = Mixin{
			Src:       m.Src,
			Volume:    &mv,
			Delay:     m.Delay,
			Sidechain: m.Sidechain,
		}
	}
	return out
}
