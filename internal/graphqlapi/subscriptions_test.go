// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/restreamer/internal/dvr"
	"github.com/ManuGH/restreamer/internal/state"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	storage, err := dvr.NewStorage(t.TempDir())
	require.NoError(t, err)
	return Deps{Store: state.NewStore(), Recordings: storage, PublicHost: testPublicHost}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a value")
		panic("unreachable")
	}
}

func TestAllRestreamsSubscription(t *testing.T) {
	deps := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &apiSubscription{deps: deps}
	ch := sub.AllRestreams(ctx)

	require.Empty(t, recv(t, ch))

	seedRestream(t, deps.Store, "live")
	next := recv(t, ch)
	require.Len(t, next, 1)
	require.Equal(t, "live", next[0].Key())
}

func TestInfoSubscriptionFollowsSettings(t *testing.T) {
	deps := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &apiSubscription{deps: deps}
	ch := sub.Info(ctx)

	first := recv(t, ch)
	require.Nil(t, first.Title())
	require.Equal(t, testPublicHost, first.PublicHost())

	title := "My Server"
	deps.Store.Settings.Update(func(s *state.Settings) { s.Title = &title })
	second := recv(t, ch)
	require.NotNil(t, second.Title())
	require.Equal(t, title, *second.Title())
}

func TestMixOutputSubscriptionDeduplicates(t *testing.T) {
	deps := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := seedRestream(t, deps.Store, "live")
	found, err := deps.Store.SetOutput(r.ID, uuid.Nil, state.Output{
		Dst:    "rtmp://sink.example.com/app/k",
		Volume: state.VolumeOrigin(),
	})
	require.True(t, found)
	require.NoError(t, err)
	outputID := deps.Store.Restreams.Get()[0].Outputs[0].ID

	sub := &mixSubscription{deps: deps}
	ch, err := sub.Output(ctx, outputTargetArgs{
		RestreamID: gqlID(r.ID),
		OutputID:   gqlID(outputID),
	})
	require.NoError(t, err)

	first := recv(t, ch)
	require.NotNil(t, first)
	require.False(t, first.Enabled())

	// A change elsewhere in the tree must not re-emit this output.
	seedRestream(t, deps.Store, "other")
	changed, found := deps.Store.SetOutputEnabled(r.ID, outputID, true)
	require.True(t, changed)
	require.True(t, found)

	second := recv(t, ch)
	require.NotNil(t, second)
	require.True(t, second.Enabled())
}

func TestMixOutputSubscriptionEmitsNullOnRemoval(t *testing.T) {
	deps := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := seedRestream(t, deps.Store, "live")
	found, err := deps.Store.SetOutput(r.ID, uuid.Nil, state.Output{
		Dst:    "rtmp://sink.example.com/app/k",
		Volume: state.VolumeOrigin(),
	})
	require.True(t, found)
	require.NoError(t, err)
	outputID := deps.Store.Restreams.Get()[0].Outputs[0].ID

	sub := &mixSubscription{deps: deps}
	ch, err := sub.Output(ctx, outputTargetArgs{
		RestreamID: gqlID(r.ID),
		OutputID:   gqlID(outputID),
	})
	require.NoError(t, err)
	require.NotNil(t, recv(t, ch))

	require.True(t, deps.Store.RemoveOutput(r.ID, outputID))
	require.Nil(t, recv(t, ch))
}

func TestClientsSubscription(t *testing.T) {
	deps := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &dashboardSubscription{deps: deps}
	ch := sub.Clients(ctx)
	require.Empty(t, recv(t, ch))

	require.NoError(t, deps.Store.AddClient("http://peer.example.com:8080"))
	next := recv(t, ch)
	require.Len(t, next, 1)
	require.Equal(t, "http://peer.example.com:8080", next[0].ID())
}
