// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"fmt"

	"github.com/google/uuid"
)

// Store holds the whole configuration tree, each top-level slice in its own
// reactive cell. All mutators are transactional on their cell: either the
// whole change commits and one snapshot is published, or nothing changes.
type Store struct {
	Settings   *Cell[Settings]
	Restreams  *Cell[[]Restream]
	Clients    *Cell[[]Client]
	ServerInfo *Cell[ServerInfo]
}

// NewStore creates an empty store with default settings.
func NewStore() *Store {
	return &Store{
		Settings:   NewCell(DefaultSettings(), Settings.Clone),
		Restreams:  NewCell([]Restream(nil), CloneRestreams),
		Clients:    NewCell([]Client(nil), CloneClients),
		ServerInfo: NewCell(ServerInfo{}, ServerInfo.Clone),
	}
}

// updateRestreams runs fn on a deep copy of the restream list and commits the
// result only when fn succeeds.
func (s *Store) updateRestreams(fn func(rs []Restream) ([]Restream, error)) (changed bool, err error) {
	changed = s.Restreams.Update(func(cur *[]Restream) {
		next, ferr := fn(CloneRestreams(*cur))
		if ferr != nil {
			err = ferr
			return
		}
		*cur = next
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// AddRestream appends a new restream. Missing UUIDs are assigned; the key
// must be free.
func (s *Store) AddRestream(r Restream) error {
	_, err := s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		materializeRestream(&r)
		rs = append(rs, r)
		if err := ValidateRestreams(rs); err != nil {
			return nil, err
		}
		return rs, nil
	})
	return err
}

// EditRestream applies r onto the restream with the given id, preserving
// UUIDs and runtime state of items matched by their natural key. It reports
// found=false when the id is unknown and fails when the new key collides
// with another restream.
func (s *Store) EditRestream(id uuid.UUID, r Restream) (found bool, err error) {
	_, err = s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		for i := range rs {
			if rs[i].ID != id {
				continue
			}
			found = true
			applyRestream(&rs[i], r, true)
			if err := ValidateRestreams(rs); err != nil {
				return nil, err
			}
			return rs, nil
		}
		return rs, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Apply bulk-upserts restreams matched by key. With replace=true, restreams
// absent from incoming are dropped. Matched items keep their UUIDs and
// runtime status; Input.enabled and Output.enabled are deliberately never
// overwritten, so a re-import cannot interrupt ongoing re-streams.
func (s *Store) Apply(incoming []Restream, replace bool) error {
	_, err := s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		next := applyRestreams(rs, incoming, replace)
		if err := ValidateRestreams(next); err != nil {
			return nil, err
		}
		return next, nil
	})
	return err
}

// ApplyToRestream applies a single incoming restream onto the restream with
// the given id, with the same key-preserving merge as Apply.
func (s *Store) ApplyToRestream(id uuid.UUID, incoming Restream) (found bool, err error) {
	_, err = s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		for i := range rs {
			if rs[i].ID != id {
				continue
			}
			found = true
			applyRestream(&rs[i], incoming, true)
			if err := ValidateRestreams(rs); err != nil {
				return nil, err
			}
			return rs, nil
		}
		return rs, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// RemoveRestream deletes the restream with the given id.
func (s *Store) RemoveRestream(id uuid.UUID) bool {
	found := false
	_, _ = s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		for i := range rs {
			if rs[i].ID == id {
				found = true
				return append(rs[:i], rs[i+1:]...), nil
			}
		}
		return rs, nil
	})
	return found
}

// SetRestreamEnabled toggles the input of the restream with the given id,
// recursively through failover children.
func (s *Store) SetRestreamEnabled(id uuid.UUID, enabled bool) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		for i := range *rs {
			if (*rs)[i].ID == id {
				found = true
				(*rs)[i].Input.SetEnabled(enabled)
				return
			}
		}
	})
	return changed, found
}

// SetInputEnabled toggles one input (failover descendants included) of the
// given restream.
func (s *Store) SetInputEnabled(restreamID, inputID uuid.UUID, enabled bool) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		r := findRestream(*rs, restreamID)
		if r == nil {
			return
		}
		in := r.Input.Find(inputID)
		if in == nil {
			return
		}
		found = true
		in.SetEnabled(enabled)
	})
	return changed, found
}

// SetOutput adds an output (id == uuid.Nil) or edits an existing one. On
// edit, mixins matched by src keep their id, status and tunings; the output
// keeps its enabled flag and, when it still has mixins, its volume. New
// outputs start disabled so an operator enables them deliberately.
func (s *Store) SetOutput(restreamID uuid.UUID, id uuid.UUID, o Output) (found bool, err error) {
	_, err = s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		r := findRestream(rs, restreamID)
		if r == nil {
			return rs, nil
		}
		found = true
		if id == uuid.Nil {
			materializeOutput(&o)
			o.Enabled = false
			r.Outputs = append(r.Outputs, o)
		} else {
			existing := r.Output(id)
			if existing == nil {
				found = false
				return rs, nil
			}
			applyOutput(existing, o, true)
		}
		if err := ValidateRestreams(rs); err != nil {
			return nil, err
		}
		return rs, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// RemoveOutput deletes an output by id.
func (s *Store) RemoveOutput(restreamID, outputID uuid.UUID) bool {
	found := false
	_, _ = s.updateRestreams(func(rs []Restream) ([]Restream, error) {
		r := findRestream(rs, restreamID)
		if r == nil {
			return rs, nil
		}
		for i := range r.Outputs {
			if r.Outputs[i].ID == outputID {
				found = true
				r.Outputs = append(r.Outputs[:i], r.Outputs[i+1:]...)
				break
			}
		}
		return rs, nil
	})
	return found
}

// SetOutputEnabled toggles one output.
func (s *Store) SetOutputEnabled(restreamID, outputID uuid.UUID, enabled bool) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		r := findRestream(*rs, restreamID)
		if r == nil {
			return
		}
		o := r.Output(outputID)
		if o == nil {
			return
		}
		found = true
		o.Enabled = enabled
	})
	return changed, found
}

// SetAllOutputsEnabled toggles every output of one restream; changed reports
// whether any flipped.
func (s *Store) SetAllOutputsEnabled(restreamID uuid.UUID, enabled bool) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		r := findRestream(*rs, restreamID)
		if r == nil {
			return
		}
		found = true
		for i := range r.Outputs {
			r.Outputs[i].Enabled = enabled
		}
	})
	return changed, found
}

// SetAllOutputsOfRestreamsEnabled toggles every output of every restream.
func (s *Store) SetAllOutputsOfRestreamsEnabled(enabled bool) (changed bool) {
	return s.Restreams.Update(func(rs *[]Restream) {
		for i := range *rs {
			for j := range (*rs)[i].Outputs {
				(*rs)[i].Outputs[j].Enabled = enabled
			}
		}
	})
}

// TuneVolume adjusts the volume of an output (mixinID == uuid.Nil) or of one
// of its mixins.
func (s *Store) TuneVolume(restreamID, outputID, mixinID uuid.UUID, vol Volume) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		o := findOutput(*rs, restreamID, outputID)
		if o == nil {
			return
		}
		if mixinID == uuid.Nil {
			found = true
			o.Volume = vol
			return
		}
		if m := o.Mixin(mixinID); m != nil {
			found = true
			m.Volume = vol
		}
	})
	return changed, found
}

// TuneDelay adjusts the delay of a mixin.
func (s *Store) TuneDelay(restreamID, outputID, mixinID uuid.UUID, delay Delay) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		o := findOutput(*rs, restreamID, outputID)
		if o == nil {
			return
		}
		if m := o.Mixin(mixinID); m != nil {
			found = true
			m.Delay = delay
		}
	})
	return changed, found
}

// TuneSidechain flips the sidechain flag of a mixin. Enabling clears the
// flag on the output's other mixins first, keeping the at-most-one invariant.
func (s *Store) TuneSidechain(restreamID, outputID, mixinID uuid.UUID, sidechain bool) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		o := findOutput(*rs, restreamID, outputID)
		if o == nil {
			return
		}
		m := o.Mixin(mixinID)
		if m == nil {
			return
		}
		found = true
		if sidechain {
			for i := range o.Mixins {
				o.Mixins[i].Sidechain = false
			}
		}
		m.Sidechain = sidechain
	})
	return changed, found
}

// ChangeEndpointLabel sets or clears the label of one input endpoint.
func (s *Store) ChangeEndpointLabel(restreamID, inputID, endpointID uuid.UUID, label *Label) (changed, found bool) {
	changed = s.Restreams.Update(func(rs *[]Restream) {
		r := findRestream(*rs, restreamID)
		if r == nil {
			return
		}
		in := r.Input.Find(inputID)
		if in == nil {
			return
		}
		for i := range in.Endpoints {
			if in.Endpoints[i].ID == endpointID {
				found = true
				in.Endpoints[i].Label = label
				return
			}
		}
	})
	return changed, found
}

// SetProcessStatus records the supervision status of whatever entity induced
// a child process: the output with that id, or an input endpoint. Online on
// input endpoints is reserved for the media-server callback and is dropped
// here.
func (s *Store) SetProcessStatus(id uuid.UUID, status Status) bool {
	return s.Restreams.Update(func(rs *[]Restream) {
		for i := range *rs {
			r := &(*rs)[i]
			if o := r.Output(id); o != nil {
				o.Status = status
				return
			}
			if m := findMixin(r, id); m != nil {
				m.Status = status
				return
			}
			if status == StatusOnline {
				continue
			}
			if e := r.Input.FindEndpoint(id); e != nil {
				e.Status = status
				return
			}
		}
	})
}

func findMixin(r *Restream, id uuid.UUID) *Mixin {
	for i := range r.Outputs {
		if m := r.Outputs[i].Mixin(id); m != nil {
			return m
		}
	}
	return nil
}

// AddClient registers a sibling restreamer on the dashboard.
func (s *Store) AddClient(id ClientID) error {
	var err error
	s.Clients.Update(func(cs *[]Client) {
		for _, c := range *cs {
			if c.ID == id {
				err = fmt.Errorf("client %q: %w", id, ErrClientExists)
				return
			}
		}
		*cs = append(*cs, Client{ID: id})
	})
	return err
}

// RemoveClient drops a sibling restreamer.
func (s *Store) RemoveClient(id ClientID) bool {
	found := false
	s.Clients.Update(func(cs *[]Client) {
		for i, c := range *cs {
			if c.ID == id {
				found = true
				*cs = append((*cs)[:i], (*cs)[i+1:]...)
				return
			}
		}
	})
	return found
}

// SetClientStatistics stores the latest poll result for a peer.
func (s *Store) SetClientStatistics(id ClientID, resp *ClientStatisticsResponse) bool {
	found := false
	s.Clients.Update(func(cs *[]Client) {
		for i := range *cs {
			if (*cs)[i].ID == id {
				found = true
				(*cs)[i].Statistics = resp
				return
			}
		}
	})
	return found
}

func findRestream(rs []Restream, id uuid.UUID) *Restream {
	for i := range rs {
		if rs[i].ID == id {
			return &rs[i]
		}
	}
	return nil
}

func findOutput(rs []Restream, restreamID, outputID uuid.UUID) *Output {
	r := findRestream(rs, restreamID)
	if r == nil {
		return nil
	}
	return r.Output(outputID)
}
