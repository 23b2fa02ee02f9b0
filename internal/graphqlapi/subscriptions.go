// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"context"
	"reflect"

	"github.com/ManuGH/restreamer/internal/state"
)

// mapChan republishes a cell subscription through f. The input channel
// closes when ctx is done, which ends the goroutine and closes the output.
func mapChan[T, R any](ctx context.Context, in <-chan T, f func(T) R) <-chan R {
	out := make(chan R, 1)
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- f(v):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// apiSubscription is the websocket root of /api.
type apiSubscription struct {
	deps Deps
}

func (r *apiSubscription) Ping() bool { return true }

func (r *apiSubscription) Info(ctx context.Context) <-chan *infoResolver {
	return mapChan(ctx, r.deps.Store.Settings.Subscribe(ctx), func(s state.Settings) *infoResolver {
		return &infoResolver{publicHost: r.deps.PublicHost, settings: s}
	})
}

func (r *apiSubscription) ServerInfo(ctx context.Context) <-chan *serverInfoResolver {
	return mapChan(ctx, r.deps.Store.ServerInfo.Subscribe(ctx), func(info state.ServerInfo) *serverInfoResolver {
		return &serverInfoResolver{info: info}
	})
}

func (r *apiSubscription) AllRestreams(ctx context.Context) <-chan []*restreamResolver {
	return mapChan(ctx, r.deps.Store.Restreams.Subscribe(ctx), newRestreamResolvers)
}

// mixSubscription is the websocket root of /api-mix.
type mixSubscription struct {
	deps Deps
}

func (r *mixSubscription) Ping() bool { return true }

// Output streams one output, deduplicated: restream updates that leave the
// output untouched are swallowed. A removed output yields a null once.
func (r *mixSubscription) Output(ctx context.Context, args outputTargetArgs) (<-chan *outputResolver, error) {
	restreamID, outputID, err := parseOutputTarget(args)
	if err != nil {
		return nil, err
	}
	in := r.deps.Store.Restreams.Subscribe(ctx)
	out := make(chan *outputResolver, 1)
	go func() {
		defer close(out)
		var last *state.Output
		first := true
		for {
			select {
			case rs, ok := <-in:
				if !ok {
					return
				}
				var cur *state.Output
				for i := range rs {
					if rs[i].ID == restreamID {
						cur = rs[i].Output(outputID)
						break
					}
				}
				if !first && reflect.DeepEqual(last, cur) {
					continue
				}
				first = false
				last = cur
				var res *outputResolver
				if cur != nil {
					res = &outputResolver{o: cur.Clone()}
				}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// dashboardSubscription is the websocket root of /api-dashboard.
type dashboardSubscription struct {
	deps Deps
}

func (r *dashboardSubscription) Ping() bool { return true }

func (r *dashboardSubscription) Clients(ctx context.Context) <-chan []*clientResolver {
	return mapChan(ctx, r.deps.Store.Clients.Subscribe(ctx), newClientResolvers)
}
