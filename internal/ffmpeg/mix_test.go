// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/restreamer/internal/state"
	"github.com/ManuGH/restreamer/internal/vc"
)

type tuneCall struct {
	track uuid.UUID
	port  uint16
	vol   state.Volume
}

type recordTuner struct {
	calls []tuneCall
}

func (r *recordTuner) Tune(track uuid.UUID, port uint16, vol state.Volume) {
	r.calls = append(r.calls, tuneCall{track, port, vol})
}

func mustMixinURL(t *testing.T, s string) state.MixinSrcURL {
	t.Helper()
	u, err := state.ParseMixinSrcURL(s)
	require.NoError(t, err)
	return u
}

func TestMixArgsVoiceChatMixin(t *testing.T) {
	outID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	mixinID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	delay, err := state.NewDelayMillis(3500)
	require.NoError(t, err)

	m := &Mix{
		ID:         outID,
		FromURL:    "rtmp://127.0.0.1:1935/live/main",
		ToURL:      "rtmp://cdn.example.com/app/stream",
		OrigVolume: state.Volume{Level: 100},
		OrigPort:   20001,
		Mixins: []*MixinDesc{{
			ID:     mixinID,
			URL:    mustMixinURL(t, "ts://vc.example.com/lounge"),
			Delay:  delay,
			Volume: state.Volume{Level: 50},
			Port:   20002,
		}},
	}

	args, err := m.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)

	wantFilter := fmt.Sprintf(
		`[0:a]volume@%[1]s=1.00,aresample=48000,azmq=bind_address=tcp\\\://127.0.0.1\\\:20001[%[1]s];`+
			`[1:a]aresample=async=1,volume@%[2]s=0.50,adelay=delays=3500:all=1,azmq=bind_address=tcp\\\://127.0.0.1\\\:20002[%[2]s];`+
			`[%[1]s][%[2]s]amix=inputs=2:duration=longest[out]`,
		outID, mixinID)

	assert.Equal(t, []string{
		"-i", "rtmp://127.0.0.1:1935/live/main",
		"-thread_queue_size", "512",
		"-f", "f32le",
		"-sample_rate", "48000",
		"-channels", "2",
		"-use_wallclock_as_timestamps", "true",
		"-i", FIFOPath(mixinID),
		"-filter_complex", wantFilter,
		"-map", "[out]",
		"-max_muxing_queue_size", "50000000",
		"-map", "0:v",
		"-c:a", "libfdk_aac", "-c:v", "copy", "-shortest",
		"-f", "flv",
		"rtmp://cdn.example.com/app/stream",
	}, args)
}

func TestMixArgsSidechainRewiresOrigin(t *testing.T) {
	outID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	musicID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	voiceID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	m := &Mix{
		ID:         outID,
		FromURL:    "rtmp://127.0.0.1:1935/live/main",
		ToURL:      "icecast://ice.example.com:8000/radio",
		OrigVolume: state.VolumeOrigin(),
		OrigPort:   20010,
		Mixins: []*MixinDesc{
			{
				ID:     musicID,
				URL:    mustMixinURL(t, "https://radio.example.com/stream.mp3"),
				Volume: state.VolumeOrigin(),
				Port:   20011,
			},
			{
				ID:        voiceID,
				URL:       mustMixinURL(t, "ts://vc.example.com/stage"),
				Volume:    state.VolumeOrigin(),
				Sidechain: true,
				Port:      20012,
			},
		},
	}

	args, err := m.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
			break
		}
	}
	require.NotEmpty(t, filter)

	assert.Contains(t, filter, fmt.Sprintf("[%s]asplit=2[sc][mix]", voiceID))
	assert.Contains(t, filter, fmt.Sprintf(
		"[%s][sc]sidechaincompress=level_in=2:threshold=0.01:ratio=10:attack=10:release=1500[compr]", outID))
	assert.Contains(t, filter, fmt.Sprintf(
		"[compr][%s][mix]amix=inputs=3:duration=longest[out]", musicID))
	// MP3 mixins resample to 48k instead of async jitter compensation.
	assert.Contains(t, filter, fmt.Sprintf("[1:a]aresample=48000,volume@%s=1.00", musicID))
}

func TestMixArgsReadsVolumesFromStore(t *testing.T) {
	store := state.NewStore()

	key, err := state.NewRestreamKey("live")
	require.NoError(t, err)
	inKey, err := state.NewInputKey("main")
	require.NoError(t, err)

	r := state.Restream{
		Key: key,
		Input: state.Input{
			Key:       inKey,
			Enabled:   true,
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
		},
		Outputs: []state.Output{{
			Dst:     "rtmp://cdn.example.com/app/stream",
			Volume:  state.Volume{Level: 70},
			Enabled: true,
			Mixins: []state.Mixin{{
				Src:    mustMixinURL(t, "https://radio.example.com/a.mp3"),
				Volume: state.Volume{Level: 30},
			}},
		}},
	}
	require.NoError(t, store.AddRestream(r))
	stored := store.Restreams.Get()[0]

	m := &Mix{
		ID:         stored.Outputs[0].ID,
		FromURL:    "rtmp://127.0.0.1:1935/live/main",
		ToURL:      "rtmp://cdn.example.com/app/stream",
		OrigVolume: state.Volume{Level: 999}, // stale cached value
		OrigPort:   20020,
		Mixins: []*MixinDesc{{
			ID:     stored.Outputs[0].Mixins[0].ID,
			URL:    stored.Outputs[0].Mixins[0].Src,
			Volume: state.Volume{Level: 999},
			Port:   20021,
		}},
	}

	args, err := m.Args(&Env{Store: store, Files: fakeFiles{}})
	require.NoError(t, err)

	var filter string
	for i, a := range args {
		if a == "-filter_complex" {
			filter = args[i+1]
		}
	}
	assert.Contains(t, filter, fmt.Sprintf("volume@%s=0.70", m.ID))
	assert.Contains(t, filter, fmt.Sprintf("volume@%s=0.30", m.Mixins[0].ID))
}

func TestMixNeedsRestartAbsorbsVolumeChanges(t *testing.T) {
	outID := uuid.New()
	mixinID := uuid.New()
	src := mustMixinURL(t, "https://radio.example.com/a.mp3")

	cur := &Mix{
		ID: outID, FromURL: "rtmp://a/l/m", ToURL: "rtmp://b/l/m",
		OrigVolume: state.Volume{Level: 100}, OrigPort: 20030,
		Mixins: []*MixinDesc{{ID: mixinID, URL: src, Volume: state.Volume{Level: 100}, Port: 20031}},
	}
	next := &Mix{
		ID: outID, FromURL: "rtmp://a/l/m", ToURL: "rtmp://b/l/m",
		OrigVolume: state.Volume{Level: 80}, OrigPort: 20032,
		Mixins: []*MixinDesc{{ID: mixinID, URL: src, Volume: state.Volume{Level: 30}, Port: 20033}},
	}

	tuner := &recordTuner{}
	assert.False(t, needsRestart(cur, next, tuner))

	require.Len(t, tuner.calls, 2)
	assert.Equal(t, tuneCall{outID, 20030, state.Volume{Level: 80}}, tuner.calls[0])
	assert.Equal(t, tuneCall{mixinID, 20031, state.Volume{Level: 30}}, tuner.calls[1])
	// Caches updated in place so the next snapshot compares clean.
	assert.Equal(t, state.Volume{Level: 80}, cur.OrigVolume)
	assert.Equal(t, state.Volume{Level: 30}, cur.Mixins[0].Volume)
}

func TestMixNeedsRestartOnStructuralChange(t *testing.T) {
	outID := uuid.New()
	mixinID := uuid.New()
	src := mustMixinURL(t, "ts://vc.example.com/stage")
	delay, err := state.NewDelayMillis(3500)
	require.NoError(t, err)

	base := func() *Mix {
		return &Mix{
			ID: outID, FromURL: "rtmp://a/l/m", ToURL: "rtmp://b/l/m",
			OrigVolume: state.VolumeOrigin(), OrigPort: 20040,
			Mixins: []*MixinDesc{{ID: mixinID, URL: src, Delay: delay, Volume: state.VolumeOrigin(), Port: 20041}},
		}
	}

	tuner := &recordTuner{}

	next := base()
	next.Mixins[0].Sidechain = true
	assert.True(t, needsRestart(base(), next, tuner))

	next = base()
	next.Mixins[0].Delay = 0
	assert.True(t, needsRestart(base(), next, tuner))

	next = base()
	next.Mixins = nil
	assert.True(t, needsRestart(base(), next, tuner))

	assert.Empty(t, tuner.calls, "structural changes never tune")
}

func TestNewMixAdoptsPreviousPortsAndCaptures(t *testing.T) {
	vcPool := vc.NewPool(&fakeTransport{})

	mixinID := uuid.New()
	out := &state.Output{
		ID:      uuid.New(),
		Dst:     "rtmp://cdn.example.com/app/stream",
		Volume:  state.VolumeOrigin(),
		Enabled: true,
		Mixins: []state.Mixin{{
			ID:     mixinID,
			Src:    mustMixinURL(t, "ts://vc.example.com/stage?name=DJ"),
			Volume: state.VolumeOrigin(),
		}},
	}

	first := NewMix(out, "rtmp://a/l/m", "rtmp://b/l/m", nil, vcPool)
	require.NotNil(t, first.Mixins[0].Capture)
	assert.Equal(t, "DJ", first.Mixins[0].Capture.Config().Name)

	second := NewMix(out, "rtmp://a/l/m", "rtmp://b/l/m", first, vcPool)
	assert.Same(t, first.Mixins[0].Capture, second.Mixins[0].Capture,
		"capture survives descriptor rebuilds")

	require.NoError(t, second.Mixins[0].Capture.Close())
}

// fakeTransport never dials; captures stay lazy in these tests.
type fakeTransport struct{}

func (fakeTransport) Dial(context.Context, vc.ConnConfig) (io.ReadCloser, error) {
	return nil, errors.New("not dialed in tests")
}
