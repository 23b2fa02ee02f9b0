// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"github.com/google/uuid"

	"github.com/ManuGH/restreamer/internal/state"
)

// mixResolver is the root of the per-output mixing surface on /api-mix.
type mixResolver struct {
	deps Deps
}

func (r *mixResolver) Output(args outputTargetArgs) (*outputResolver, error) {
	restreamID, outputID, err := parseOutputTarget(args)
	if err != nil {
		return nil, err
	}
	output := lookupOutput(r.deps.Store, restreamID, outputID)
	if output == nil {
		return nil, nil
	}
	return &outputResolver{o: *output}, nil
}

func (r *mixResolver) TuneVolume(args tuneVolumeArgs) (*bool, error) {
	return tuneVolume(r.deps, args)
}

func (r *mixResolver) TuneDelay(args tuneDelayArgs) (*bool, error) {
	return tuneDelay(r.deps, args)
}

func lookupOutput(store *state.Store, restreamID, outputID uuid.UUID) *state.Output {
	for _, restream := range store.Restreams.Get() {
		if restream.ID != restreamID {
			continue
		}
		return restream.Output(outputID)
	}
	return nil
}

// dashboardResolver is the root of the peer-management surface on
// /api-dashboard.
type dashboardResolver struct {
	deps Deps
}

func (r *dashboardResolver) Clients() []*clientResolver {
	return newClientResolvers(r.deps.Store.Clients.Get())
}

// AddClient registers a sibling restreamer for statistics polling; false
// when it is already registered.
func (r *dashboardResolver) AddClient(args struct{ ClientID string }) (bool, error) {
	id, err := state.ParseClientID(args.ClientID)
	if err != nil {
		return false, errUnknown(err)
	}
	if err := r.deps.Store.AddClient(id); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *dashboardResolver) RemoveClient(args struct{ ClientID string }) bool {
	id, err := state.ParseClientID(args.ClientID)
	if err != nil {
		return false
	}
	return r.deps.Store.RemoveClient(id)
}
