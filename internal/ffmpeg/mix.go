// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/state"
	"github.com/ManuGH/restreamer/internal/vc"
)

// Mix re-streams a live stream mixed with additional audio sources. Volumes
// are only the initial values: later changes land through the tuner, not a
// restart.
type Mix struct {
	ID         uuid.UUID
	FromURL    string
	ToURL      string
	OrigVolume state.Volume
	OrigPort   uint16
	Mixins     []*MixinDesc
}

// MixinDesc is one additional audio source of a Mix.
type MixinDesc struct {
	ID        uuid.UUID
	URL       state.MixinSrcURL
	Delay     state.Delay
	Volume    state.Volume
	Sidechain bool
	Port      uint16

	// Capture is the live voice-chat feed for ts:// sources; it is carried
	// over from the previous descriptor so only source changes reconnect.
	Capture *vc.Handle
}

// NewMix builds the descriptor for an output with mixins. prev, when given,
// donates control-socket ports and voice-chat captures of mixins that did not
// change.
func NewMix(o *state.Output, fromURL, toURL string, prev *Mix, vcPool *vc.Pool) *Mix {
	m := &Mix{
		ID:         o.ID,
		FromURL:    fromURL,
		ToURL:      toURL,
		OrigVolume: o.Volume,
		OrigPort:   nextControlPort(),
		Mixins:     make([]*MixinDesc, 0, len(o.Mixins)),
	}
	for i := range o.Mixins {
		var prevMixin *MixinDesc
		if prev != nil {
			for _, pm := range prev.Mixins {
				if pm.ID == o.Mixins[i].ID {
					prevMixin = pm
					break
				}
			}
		}
		m.Mixins = append(m.Mixins, newMixinDesc(&o.Mixins[i], o.Label, prevMixin, vcPool))
	}
	return m
}

func newMixinDesc(m *state.Mixin, label *state.Label, prev *MixinDesc, vcPool *vc.Pool) *MixinDesc {
	d := &MixinDesc{
		ID:        m.ID,
		URL:       m.Src,
		Delay:     m.Delay,
		Volume:    m.Volume,
		Sidechain: m.Sidechain,
		Port:      nextControlPort(),
	}
	if m.Src.IsTeamspeak() {
		if prev != nil && prev.Capture != nil {
			d.Capture = prev.Capture
		} else {
			d.Capture = vcPool.Open(vc.ConnConfigFromURL(m.Src, label, m.ID))
		}
	}
	return d
}

// EntityID implements Descriptor.
func (m *Mix) EntityID() uuid.UUID { return m.ID }

// Kind implements Descriptor.
func (m *Mix) Kind() string { return "mix" }

// needsRestart reports whether the process must be respawned for next.
// Volume-only changes are absorbed: the cached volumes are updated in place
// and pushed to the running filters through the tuner.
func (m *Mix) needsRestart(next *Mix, tuner VolumeTuner) bool {
	if m.FromURL != next.FromURL ||
		m.ToURL != next.ToURL ||
		len(m.Mixins) != len(next.Mixins) {
		return true
	}
	for i := range m.Mixins {
		if m.Mixins[i].needsRestart(next.Mixins[i]) {
			return true
		}
	}

	if m.OrigVolume != next.OrigVolume {
		m.OrigVolume = next.OrigVolume
		tuner.Tune(m.ID, m.OrigPort, m.OrigVolume)
	}
	for i := range m.Mixins {
		cur, actual := m.Mixins[i], next.Mixins[i]
		if cur.Volume != actual.Volume {
			cur.Volume = actual.Volume
			tuner.Tune(cur.ID, cur.Port, cur.Volume)
		}
	}
	return false
}

func (d *MixinDesc) needsRestart(next *MixinDesc) bool {
	return d.URL != next.URL ||
		d.Delay != next.Delay ||
		d.Sidechain != next.Sidechain
}

// The azmq filter wants the colons of the bind address escaped through both
// the filter-graph and the option parser.
const zmqBindPrefix = `azmq=bind_address=tcp\\\://127.0.0.1\\\:`

// Args implements Descriptor. Volumes are read back from the store when the
// output is still present, since tuned values never reach this descriptor's
// cached copies in time for a restart.
func (m *Mix) Args(env *Env) ([]string, error) {
	var current *state.Output
	if env.Store != nil {
		for _, r := range env.Store.Restreams.Get() {
			if o := r.Output(m.ID); o != nil {
				current = o
				break
			}
		}
	}

	var args []string
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		args = append(args, "-loglevel", "debug")
	}

	origVolume := m.OrigVolume
	if current != nil {
		origVolume = current.Volume
	}

	// The filter order matters here.
	filters := make([]string, 0, len(m.Mixins)+2)
	filters = append(filters, fmt.Sprintf(
		"[0:a]volume@%s=%s,aresample=48000,%s%d[%s]",
		m.ID, origVolume.Fraction(), zmqBindPrefix, m.OrigPort, m.ID))
	args = append(args, "-i", m.FromURL)

	for i, mixin := range m.Mixins {
		var prefix string
		switch {
		case mixin.URL.IsTeamspeak():
			prefix = "aresample=async=1,"
			args = append(args,
				"-thread_queue_size", "512",
				"-f", "f32le",
				"-sample_rate", "48000",
				"-channels", "2",
				"-use_wallclock_as_timestamps", "true",
				"-i", FIFOPath(mixin.ID))
		default:
			prefix = "aresample=48000,"
			args = append(args, "-i", string(mixin.URL))
		}

		volume := mixin.Volume
		if current != nil {
			if sm := current.Mixin(mixin.ID); sm != nil {
				volume = sm.Volume
			}
		}

		chain := fmt.Sprintf("%svolume@%s=%s,", prefix, mixin.ID, volume.Fraction())
		if mixin.Delay != 0 {
			chain += fmt.Sprintf("adelay=delays=%d:all=1,", mixin.Delay.Millis())
		}
		filters = append(filters, fmt.Sprintf(
			"[%d:a]%s%s%d[%s]", i+1, chain, zmqBindPrefix, mixin.Port, mixin.ID))
	}

	origLabel := m.ID.String()
	mixinLabels := make([]string, len(m.Mixins))
	for i, mixin := range m.Mixins {
		mixinLabels[i] = mixin.ID.String()
	}

	// The sidechain compresses the origin audio driven by one mixin; the
	// compressed stream replaces the origin in the final mixing stage.
	for _, mixin := range m.Mixins {
		if !mixin.Sidechain {
			continue
		}
		scID := mixin.ID.String()
		filters = append(filters, fmt.Sprintf(
			"[%s]asplit=2[sc][mix];"+
				"[%s][sc]sidechaincompress="+
				"level_in=2:threshold=0.01:ratio=10:attack=10:release=1500[compr]",
			scID, origLabel))
		for i := range mixinLabels {
			if mixinLabels[i] == scID {
				mixinLabels[i] = "mix"
			}
		}
		origLabel = "compr"
		break
	}

	filters = append(filters, fmt.Sprintf(
		"[%s][%s]amix=inputs=%d:duration=longest[out]",
		origLabel, strings.Join(mixinLabels, "]["), len(m.Mixins)+1))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[out]",
		"-max_muxing_queue_size", "50000000")

	to, err := url.Parse(m.ToURL)
	if err != nil {
		return nil, fmt.Errorf("destination URL %q: %w", m.ToURL, err)
	}
	switch to.Scheme {
	case "file":
		if ext := path.Ext(to.Path); ext != ".flv" {
			return nil, fmt.Errorf("unsupported recording extension %q for mixed output", ext)
		}
		filePath, err := env.Files.NewFilePath(m.ToURL)
		if err != nil {
			return nil, err
		}
		args = append(args,
			"-map", "0:v",
			"-c:a", "libfdk_aac", "-c:v", "copy", "-shortest",
			filePath)

	case "icecast":
		args = append(args,
			"-c:a", "libmp3lame", "-b:a", "64k",
			"-f", "mp3", "-content_type", "audio/mpeg",
			m.ToURL)

	case "rtmp", "rtmps":
		args = append(args,
			"-map", "0:v",
			"-c:a", "libfdk_aac", "-c:v", "copy", "-shortest",
			"-f", "flv",
			m.ToURL)

	case "srt":
		args = append(args,
			"-map", "0:v",
			"-c:a", "libfdk_aac", "-c:v", "copy", "-shortest",
			"-strict", "-2", "-y", "-f", "mpegts",
			m.ToURL)

	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", to.Scheme)
	}
	return args, nil
}
