// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/restreamer/internal/state"
)

func TestMain(m *testing.M) {
	// Keep descriptor arg vectors free of the debug loglevel flag.
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	goleak.VerifyTestMain(m)
}

// fakeFiles allocates deterministic recording paths.
type fakeFiles struct{}

func (fakeFiles) FileURL(outputID uuid.UUID, dst state.OutputDstURL) string {
	return fmt.Sprintf("file:///%s/%s", outputID, dst.FileName())
}

func (fakeFiles) NewFilePath(fileURL string) (string, error) {
	return "/dvr/current.flv", nil
}

func TestCopyArgsRTMP(t *testing.T) {
	c := &Copy{
		ID:      uuid.New(),
		FromURL: "rtmp://127.0.0.1:1935/live/main",
		ToURL:   "rtmp://cdn.example.com/app/stream",
	}
	args, err := c.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-i", "rtmp://127.0.0.1:1935/live/main",
		"-c", "copy", "-f", "flv", "rtmp://cdn.example.com/app/stream",
	}, args)
}

func TestCopyArgsHLSPullGetsRealtimePacing(t *testing.T) {
	c := &Copy{
		ID:      uuid.New(),
		FromURL: "https://origin.example.com/live/playlist.m3u8",
		ToURL:   "rtmp://127.0.0.1:1935/live/main",
	}
	args, err := c.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)
	assert.Equal(t, "-re", args[0])
}

func TestCopyArgsSRT(t *testing.T) {
	c := &Copy{
		ID:      uuid.New(),
		FromURL: "rtmp://127.0.0.1:1935/live/main",
		ToURL:   "srt://relay.example.com:9000",
	}
	args, err := c.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-i", "rtmp://127.0.0.1:1935/live/main",
		"-c", "copy", "-strict", "-2", "-y", "-f", "mpegts",
		"srt://relay.example.com:9000",
	}, args)
}

func TestCopyArgsIcecast(t *testing.T) {
	c := &Copy{
		ID:      uuid.New(),
		FromURL: "rtmp://127.0.0.1:1935/live/main",
		ToURL:   "icecast://source:pw@ice.example.com:8000/radio",
	}
	args, err := c.Args(&Env{Files: fakeFiles{}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-i", "rtmp://127.0.0.1:1935/live/main",
		"-vn", "-acodec", "libmp3lame", "-b:a", "64k",
		"-f", "mp3", "-content_type", "audio/mpeg",
		"icecast://source:pw@ice.example.com:8000/radio",
	}, args)
}

func TestCopyArgsRecordingVariants(t *testing.T) {
	for _, tc := range []struct {
		name string
		tail []string
	}{
		{"rec.flv", []string{"-c", "copy", "/dvr/current.flv"}},
		{"rec.wav", []string{"-vn", "-acodec", "pcm_s16le", "-ar", "48000", "-ac", "2", "/dvr/current.flv"}},
		{"rec.mp3", []string{"-vn", "-acodec", "libmp3lame", "-b:a", "64k", "-ar", "48000", "-ac", "2", "/dvr/current.flv"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &Copy{
				ID:      uuid.New(),
				FromURL: "rtmp://127.0.0.1:1935/live/main",
				ToURL:   "file:///" + tc.name,
			}
			args, err := c.Args(&Env{Files: fakeFiles{}})
			require.NoError(t, err)
			assert.Equal(t, append([]string{"-i", "rtmp://127.0.0.1:1935/live/main"}, tc.tail...), args)
		})
	}
}

func TestTranscodeArgs(t *testing.T) {
	tr := &Transcode{
		ID:       uuid.New(),
		FromURL:  "rtmp://127.0.0.1:1935/live/main",
		ToURL:    "rtmp://127.0.0.1:1935/live?vhost=hls/main",
		VCodec:   "libx264",
		VProfile: "baseline",
		VPreset:  "superfast",
		ACodec:   "libfdk_aac",
	}
	args, err := tr.Args(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-i", "rtmp://127.0.0.1:1935/live/main",
		"-c:v", "libx264",
		"-preset", "superfast",
		"-profile:v", "baseline",
		"-c:a", "libfdk_aac",
		"-f", "flv",
		"rtmp://127.0.0.1:1935/live?vhost=hls/main",
	}, args)
}

func TestNeedsRestartAcrossKinds(t *testing.T) {
	id := uuid.New()
	c := &Copy{ID: id, FromURL: "rtmp://a/x/y", ToURL: "rtmp://b/x/y"}
	tr := &Transcode{ID: id, FromURL: "rtmp://a/x/y", ToURL: "rtmp://b/x/y"}

	assert.True(t, needsRestart(c, tr, nil), "kind change always restarts")
	assert.False(t, needsRestart(c, &Copy{ID: id, FromURL: "rtmp://a/x/y", ToURL: "rtmp://b/x/y"}, nil))
	assert.True(t, needsRestart(c, &Copy{ID: id, FromURL: "rtmp://a/x/y", ToURL: "rtmp://other/x/y"}, nil))
	assert.True(t, needsRestart(tr, &Transcode{ID: id, FromURL: "rtmp://a/x/y", ToURL: "rtmp://b/x/y", VPreset: "fast"}, nil))
}

func TestControlPortsAdvanceAndWrap(t *testing.T) {
	a := nextControlPort()
	b := nextControlPort()
	assert.NotEqual(t, a, b)
	assert.Greater(t, int(a), firstControlPort-1)

	lastControlPort.Store(65535)
	assert.Equal(t, uint16(firstControlPort), nextControlPort())
}

func TestIsCleanExitBasic(t *testing.T) {
	assert.True(t, isCleanExit(0, -1))
	assert.True(t, isCleanExit(255, -1))
	assert.True(t, isCleanExit(-1, 15))
	assert.False(t, isCleanExit(1, -1))
	assert.False(t, isCleanExit(-1, 9))
}

func TestLineRingKeepsLastLines(t *testing.T) {
	r := NewLineRing(3)
	_, _ = r.Write([]byte("one\ntwo\n"))
	_, _ = r.Write([]byte("three\nfour\n"))
	assert.Equal(t, []string{"two", "three", "four"}, r.LastN(5))
	assert.Equal(t, []string{"four"}, r.LastN(1))
}
