// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"encoding/json"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/ManuGH/restreamer/internal/dvr"
	"github.com/ManuGH/restreamer/internal/spec"
	"github.com/ManuGH/restreamer/internal/state"
)

// Deps are the collaborators every schema resolves against.
type Deps struct {
	Store      *state.Store
	Recordings *dvr.Storage
	PublicHost string
}

// apiResolver is the root of the full control surface on /api.
type apiResolver struct {
	deps Deps
}

func (r *apiResolver) Info() *infoResolver {
	return &infoResolver{publicHost: r.deps.PublicHost, settings: r.deps.Store.Settings.Get()}
}

func (r *apiResolver) ServerInfo() *serverInfoResolver {
	return &serverInfoResolver{info: r.deps.Store.ServerInfo.Get()}
}

func (r *apiResolver) AllRestreams() []*restreamResolver {
	return newRestreamResolvers(r.deps.Store.Restreams.Get())
}

func (r *apiResolver) DvrFiles(args struct{ ID graphql.ID }) ([]string, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	return r.deps.Recordings.ListFiles(id), nil
}

// Export renders the selected restreams (all when ids is absent or empty) as
// a shareable JSON document, settings alongside. Null when nothing matches.
func (r *apiResolver) Export(args struct{ IDs *[]graphql.ID }) (*string, error) {
	wanted := make(map[string]struct{})
	if args.IDs != nil {
		for _, id := range *args.IDs {
			wanted[string(id)] = struct{}{}
		}
	}
	var selected []state.Restream
	for _, restream := range r.deps.Store.Restreams.Get() {
		if len(wanted) > 0 {
			if _, ok := wanted[restream.ID.String()]; !ok {
				continue
			}
		}
		selected = append(selected, restream)
	}
	if len(selected) == 0 {
		return nil, nil
	}
	doc := spec.Export(r.deps.Store.Settings.Get(), selected)
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errUnknown(err)
	}
	out := string(body)
	return &out, nil
}

// currentStatistics aggregates the local health report: restream inputs are
// grouped by the status of their main RTMP endpoint, outputs by their own
// status.
func currentStatistics(deps Deps) state.ClientStatistics {
	inputs := make(map[state.Status]int32)
	outputs := make(map[state.Status]int32)
	for _, restream := range deps.Store.Restreams.Get() {
		status := state.StatusOffline
		if e := restream.Input.Endpoint(state.EndpointRTMP); e != nil {
			status = e.Status.Norm()
		}
		inputs[status]++
		for _, o := range restream.Outputs {
			outputs[o.Status.Norm()]++
		}
	}

	settings := deps.Store.Settings.Get()
	title := deps.PublicHost
	if settings.Title != nil && *settings.Title != "" {
		title = *settings.Title
	}

	return state.ClientStatistics{
		ClientTitle: title,
		Timestamp:   time.Now().UTC(),
		Inputs:      statusCounts(inputs),
		Outputs:     statusCounts(outputs),
		ServerInfo:  deps.Store.ServerInfo.Get(),
	}
}

// statusCounts renders a count map in stable status order, zero counts
// omitted.
func statusCounts(counts map[state.Status]int32) []state.StatusStatistics {
	order := []state.Status{
		state.StatusOffline,
		state.StatusInitializing,
		state.StatusOnline,
		state.StatusUnstable,
	}
	out := make([]state.StatusStatistics, 0, len(counts))
	for _, status := range order {
		if n := counts[status]; n > 0 {
			out = append(out, state.StatusStatistics{Status: status, Count: n})
		}
	}
	return out
}

// statisticsResolver is the root of the public /api-statistics surface.
type statisticsResolver struct {
	deps Deps
}

func (r *statisticsResolver) Statistics() *clientStatisticsResolver {
	return &clientStatisticsResolver{cs: currentStatistics(r.deps)}
}
