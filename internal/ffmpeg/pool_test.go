// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/restreamer/internal/state"
	"github.com/ManuGH/restreamer/internal/vc"
)

func testRestream(t *testing.T) *state.Restream {
	t.Helper()
	key, err := state.NewRestreamKey("live")
	require.NoError(t, err)
	inKey, err := state.NewInputKey("main")
	require.NoError(t, err)
	return &state.Restream{
		ID:  uuid.New(),
		Key: key,
		Input: state.Input{
			ID:      uuid.New(),
			Key:     inKey,
			Enabled: true,
			Endpoints: []state.InputEndpoint{
				{ID: uuid.New(), Kind: state.EndpointRTMP},
			},
		},
	}
}

func TestInputDescriptorRemotePull(t *testing.T) {
	r := testRestream(t)
	src, err := state.ParseInputSrcURL("rtmp://origin.example.com/live/key")
	require.NoError(t, err)
	r.Input.Src = &state.InputSrc{Remote: &src}

	desc := inputDescriptor(r, &r.Input, &r.Input.Endpoints[0])
	require.IsType(t, &Copy{}, desc)
	c := desc.(*Copy)
	assert.Equal(t, r.Input.Endpoints[0].ID, c.ID)
	assert.Equal(t, "rtmp://origin.example.com/live/key", c.FromURL)
	assert.Equal(t, "rtmp://127.0.0.1:1935/live/main", c.ToURL)
}

func TestInputDescriptorPushInputNeedsNoProcess(t *testing.T) {
	r := testRestream(t)
	assert.Nil(t, inputDescriptor(r, &r.Input, &r.Input.Endpoints[0]))
}

func TestInputDescriptorDisabledInput(t *testing.T) {
	r := testRestream(t)
	src, err := state.ParseInputSrcURL("rtmp://origin.example.com/live/key")
	require.NoError(t, err)
	r.Input.Src = &state.InputSrc{Remote: &src}
	r.Input.Enabled = false

	assert.Nil(t, inputDescriptor(r, &r.Input, &r.Input.Endpoints[0]))
}

func TestInputDescriptorFailoverPicksFirstOnline(t *testing.T) {
	r := testRestream(t)
	mainKey, err := state.NewInputKey("primary")
	require.NoError(t, err)
	backupKey, err := state.NewInputKey("backup")
	require.NoError(t, err)

	r.Input.Src = &state.InputSrc{Failover: []state.Input{
		{
			ID: uuid.New(), Key: mainKey, Enabled: true,
			Endpoints: []state.InputEndpoint{{ID: uuid.New(), Kind: state.EndpointRTMP}},
		},
		{
			ID: uuid.New(), Key: backupKey, Enabled: true,
			Endpoints: []state.InputEndpoint{{ID: uuid.New(), Kind: state.EndpointRTMP}},
		},
	}}

	// Nothing Online yet: the endpoint stays without a process.
	assert.Nil(t, inputDescriptor(r, &r.Input, &r.Input.Endpoints[0]))

	r.Input.Src.Failover[1].Endpoints[0].Status = state.StatusOnline
	desc := inputDescriptor(r, &r.Input, &r.Input.Endpoints[0])
	require.IsType(t, &Copy{}, desc)
	assert.Equal(t, "rtmp://127.0.0.1:1935/live/backup", desc.(*Copy).FromURL)

	// The first inner input coming Online takes precedence.
	r.Input.Src.Failover[0].Endpoints[0].Status = state.StatusOnline
	desc = inputDescriptor(r, &r.Input, &r.Input.Endpoints[0])
	assert.Equal(t, "rtmp://127.0.0.1:1935/live/primary", desc.(*Copy).FromURL)
}

func TestInputDescriptorHLSWaitsForOnlineRTMP(t *testing.T) {
	r := testRestream(t)
	hls := state.InputEndpoint{ID: uuid.New(), Kind: state.EndpointHLS}
	r.Input.Endpoints = append(r.Input.Endpoints, hls)

	assert.Nil(t, inputDescriptor(r, &r.Input, &r.Input.Endpoints[1]),
		"no transcoder until the upstream confirms the RTMP input")

	r.Input.Endpoints[0].Status = state.StatusOnline
	desc := inputDescriptor(r, &r.Input, &r.Input.Endpoints[1])
	require.IsType(t, &Transcode{}, desc)
	tr := desc.(*Transcode)
	assert.Equal(t, "rtmp://127.0.0.1:1935/live/main", tr.FromURL)
	assert.Equal(t, "rtmp://127.0.0.1:1935/live?vhost=hls/main", tr.ToURL)
	assert.Equal(t, "libx264", tr.VCodec)
	assert.Equal(t, "baseline", tr.VProfile)
	assert.Equal(t, "superfast", tr.VPreset)
	assert.Equal(t, "libfdk_aac", tr.ACodec)
}

func TestOutputDescriptor(t *testing.T) {
	store := state.NewStore()
	p := NewPool("ffmpeg", store, fakeFiles{}, vc.NewPool(fakeTransport{}), &recordTuner{})

	out := &state.Output{
		ID:      uuid.New(),
		Dst:     "rtmp://cdn.example.com/app/stream",
		Volume:  state.VolumeOrigin(),
		Enabled: false,
	}
	assert.Nil(t, p.outputDescriptor(out, "rtmp://127.0.0.1:1935/live/main"))

	out.Enabled = true
	desc := p.outputDescriptor(out, "rtmp://127.0.0.1:1935/live/main")
	require.IsType(t, &Copy{}, desc)
	assert.Equal(t, "rtmp://cdn.example.com/app/stream", desc.(*Copy).ToURL)

	out.Mixins = []state.Mixin{{
		ID:     uuid.New(),
		Src:    mustMixinURL(t, "https://radio.example.com/a.mp3"),
		Volume: state.VolumeOrigin(),
	}}
	desc = p.outputDescriptor(out, "rtmp://127.0.0.1:1935/live/main")
	require.IsType(t, &Mix{}, desc)
	m := desc.(*Mix)
	require.Len(t, m.Mixins, 1)
	assert.NotZero(t, m.OrigPort)
	assert.Nil(t, m.Mixins[0].Capture, "remote MP3 needs no capture")
}

func TestOutputDescriptorFileDestinationUsesRecordingSlot(t *testing.T) {
	store := state.NewStore()
	p := NewPool("ffmpeg", store, fakeFiles{}, vc.NewPool(fakeTransport{}), &recordTuner{})

	out := &state.Output{
		ID:      uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		Dst:     "file:///show.flv",
		Volume:  state.VolumeOrigin(),
		Enabled: true,
	}
	desc := p.outputDescriptor(out, "rtmp://127.0.0.1:1935/live/main")
	require.IsType(t, &Copy{}, desc)
	assert.Equal(t, "file:///44444444-4444-4444-4444-444444444444/show.flv", desc.(*Copy).ToURL)
}
