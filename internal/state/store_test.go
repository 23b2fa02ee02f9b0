// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRestream(key string) Restream {
	return Restream{
		Key: RestreamKey(key),
		Input: Input{
			Key:       InputKey(key),
			Enabled:   true,
			Endpoints: []InputEndpoint{{Kind: EndpointRTMP}},
		},
	}
}

func mustAdd(t *testing.T, s *Store, r Restream) Restream {
	t.Helper()
	require.NoError(t, s.AddRestream(r))
	rs := s.Restreams.Get()
	return rs[len(rs)-1]
}

func TestAddRestreamAssignsIDsAndRejectsDuplicateKey(t *testing.T) {
	s := NewStore()
	added := mustAdd(t, s, testRestream("live1"))

	assert.NotEqual(t, uuid.Nil, added.ID)
	assert.NotEqual(t, uuid.Nil, added.Input.ID)
	assert.NotEqual(t, uuid.Nil, added.Input.Endpoints[0].ID)
	assert.Equal(t, StatusOffline, added.Input.Endpoints[0].Status)

	err := s.AddRestream(testRestream("live1"))
	assert.ErrorIs(t, err, ErrRestreamKeyTaken)
	assert.Len(t, s.Restreams.Get(), 1, "failed add must not commit")
}

func TestApplyMatchesByKeyAndPreservesIDs(t *testing.T) {
	s := NewStore()
	a := mustAdd(t, s, testRestream("a"))
	b := mustAdd(t, s, testRestream("b"))

	// Re-apply the same shape: UUIDs survive.
	require.NoError(t, s.Apply([]Restream{testRestream("a"), testRestream("b")}, true))
	rs := s.Restreams.Get()
	require.Len(t, rs, 2)
	assert.Equal(t, a.ID, rs[0].ID)
	assert.Equal(t, a.Input.ID, rs[0].Input.ID)
	assert.Equal(t, b.ID, rs[1].ID)

	// Replace with only "a": "b" is dropped.
	require.NoError(t, s.Apply([]Restream{testRestream("a")}, true))
	rs = s.Restreams.Get()
	require.Len(t, rs, 1)
	assert.Equal(t, a.ID, rs[0].ID)

	// Merge (replace=false) keeps "a" and inserts "c".
	require.NoError(t, s.Apply([]Restream{testRestream("c")}, false))
	assert.Len(t, s.Restreams.Get(), 2)
}

func TestApplyNeverOverwritesEnabled(t *testing.T) {
	s := NewStore()
	added := mustAdd(t, s, testRestream("live"))
	_, found := s.SetRestreamEnabled(added.ID, false)
	require.True(t, found)

	incoming := testRestream("live")
	incoming.Input.Enabled = true
	require.NoError(t, s.Apply([]Restream{incoming}, true))

	assert.False(t, s.Restreams.Get()[0].Input.Enabled,
		"apply must keep the stored enabled flag")
}

func TestDisableRestreamForcesEndpointsOffline(t *testing.T) {
	s := NewStore()
	added := mustAdd(t, s, testRestream("live"))

	kicked := false
	s.Restreams.Update(func(rs *[]Restream) {
		e := &(*rs)[0].Input.Endpoints[0]
		e.Status = StatusOnline
		e.SetPublisher(NewSrsClientHandle("pub-1", func(SrsClientID) { kicked = true }))
	})

	changed, found := s.SetRestreamEnabled(added.ID, false)
	assert.True(t, changed)
	assert.True(t, found)

	e := s.Restreams.Get()[0].Input.Endpoints[0]
	assert.Equal(t, StatusOffline, e.Status)
	assert.Nil(t, e.Publisher)
	assert.True(t, kicked, "dropping the publisher handle must kick the client")
}

func TestSetOutputAddsDisabledAndEditsPreservingMixinIdentity(t *testing.T) {
	s := NewStore()
	r := mustAdd(t, s, testRestream("live"))

	dst, err := ParseOutputDstURL("rtmp://dst.example/app")
	require.NoError(t, err)
	mixSrc, err := ParseMixinSrcURL("ts://vc.example/room")
	require.NoError(t, err)

	found, err := s.SetOutput(r.ID, uuid.Nil, Output{
		Dst:     dst,
		Volume:  VolumeOrigin(),
		Enabled: true,
		Mixins:  []Mixin{{Src: mixSrc, Volume: VolumeOrigin()}},
	})
	require.NoError(t, err)
	require.True(t, found)

	out := s.Restreams.Get()[0].Outputs[0]
	assert.False(t, out.Enabled, "new outputs start disabled")
	require.Len(t, out.Mixins, 1)
	mixinID := out.Mixins[0].ID
	require.NotEqual(t, uuid.Nil, mixinID)

	// Edit with the same mixin src: UUID survives, tunings are taken over.
	found, err = s.SetOutput(r.ID, out.ID, Output{
		Dst:    dst,
		Volume: Volume{Level: 50},
		Mixins: []Mixin{{Src: mixSrc, Volume: Volume{Level: 30}, Sidechain: true}},
	})
	require.NoError(t, err)
	require.True(t, found)

	edited := s.Restreams.Get()[0].Outputs[0]
	assert.Equal(t, mixinID, edited.Mixins[0].ID)
	assert.Equal(t, uint16(30), edited.Mixins[0].Volume.Level)
	assert.True(t, edited.Mixins[0].Sidechain)
}

func TestSetOutputRejectsDuplicateDstAndMixinLimits(t *testing.T) {
	s := NewStore()
	r := mustAdd(t, s, testRestream("live"))
	dst, _ := ParseOutputDstURL("rtmp://dst.example/app")

	_, err := s.SetOutput(r.ID, uuid.Nil, Output{Dst: dst, Volume: VolumeOrigin()})
	require.NoError(t, err)

	_, err = s.SetOutput(r.ID, uuid.Nil, Output{Dst: dst, Volume: VolumeOrigin()})
	assert.ErrorIs(t, err, ErrOutputDstTaken)

	var mixins []Mixin
	for _, u := range []string{
		"https://a.example/1.mp3", "https://a.example/2.mp3",
		"https://a.example/3.mp3", "https://a.example/4.mp3",
		"https://a.example/5.mp3", "https://a.example/6.mp3",
	} {
		src, err := ParseMixinSrcURL(u)
		require.NoError(t, err)
		mixins = append(mixins, Mixin{Src: src, Volume: VolumeOrigin()})
	}
	other, _ := ParseOutputDstURL("rtmp://dst.example/other")
	_, err = s.SetOutput(r.ID, uuid.Nil, Output{Dst: other, Volume: VolumeOrigin(), Mixins: mixins})
	assert.ErrorIs(t, err, ErrTooManyMixins)
}

func TestTuneVolumeDelaySidechain(t *testing.T) {
	s := NewStore()
	r := mustAdd(t, s, testRestream("live"))
	dst, _ := ParseOutputDstURL("rtmp://dst.example/app")
	src, _ := ParseMixinSrcURL("ts://vc.example/room")

	_, err := s.SetOutput(r.ID, uuid.Nil, Output{
		Dst: dst, Volume: VolumeOrigin(),
		Mixins: []Mixin{{Src: src, Volume: VolumeOrigin()}},
	})
	require.NoError(t, err)
	out := s.Restreams.Get()[0].Outputs[0]
	mixin := out.Mixins[0]

	changed, found := s.TuneVolume(r.ID, out.ID, mixin.ID, Volume{Level: 50})
	assert.True(t, changed)
	assert.True(t, found)

	changed, found = s.TuneVolume(r.ID, out.ID, mixin.ID, Volume{Level: 50})
	assert.False(t, changed, "same volume must not publish")
	assert.True(t, found)

	delay, err := NewDelayMillis(3500)
	require.NoError(t, err)
	changed, found = s.TuneDelay(r.ID, out.ID, mixin.ID, delay)
	assert.True(t, changed)
	assert.True(t, found)

	changed, found = s.TuneSidechain(r.ID, out.ID, mixin.ID, true)
	assert.True(t, changed)
	assert.True(t, found)

	_, found = s.TuneVolume(r.ID, out.ID, uuid.New(), VolumeOrigin())
	assert.False(t, found, "unknown mixin is absent, not an error")
}

func TestClientLifecycle(t *testing.T) {
	s := NewStore()
	id, err := ParseClientID("https://peer.example")
	require.NoError(t, err)

	require.NoError(t, s.AddClient(id))
	assert.ErrorIs(t, s.AddClient(id), ErrClientExists)

	ok := s.SetClientStatistics(id, &ClientStatisticsResponse{Errors: []string{"boom"}})
	assert.True(t, ok)
	assert.Equal(t, []string{"boom"}, s.Clients.Get()[0].Statistics.Errors)

	assert.True(t, s.RemoveClient(id))
	assert.False(t, s.RemoveClient(id))
}

func TestFailoverApplyPreservesChildIdentity(t *testing.T) {
	s := NewStore()
	r := testRestream("live")
	r.Input.Src = &InputSrc{Failover: []Input{
		{Key: "main", Endpoints: []InputEndpoint{{Kind: EndpointRTMP}}, Enabled: true},
		{Key: "backup", Endpoints: []InputEndpoint{{Kind: EndpointRTMP}}, Enabled: true},
	}}
	added := mustAdd(t, s, r)
	mainID := added.Input.Src.Failover[0].ID
	require.NotEqual(t, uuid.Nil, mainID)

	again := testRestream("live")
	again.Input.Src = &InputSrc{Failover: []Input{
		{Key: "main", Endpoints: []InputEndpoint{{Kind: EndpointRTMP}}, Enabled: true},
		{Key: "backup", Endpoints: []InputEndpoint{{Kind: EndpointRTMP}}, Enabled: true},
	}}
	require.NoError(t, s.Apply([]Restream{again}, true))

	got := s.Restreams.Get()[0]
	assert.Equal(t, mainID, got.Input.Src.Failover[0].ID)
}
