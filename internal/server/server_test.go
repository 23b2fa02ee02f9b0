// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/restreamer/internal/config"
	"github.com/ManuGH/restreamer/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.StatePath = filepath.Join(root, "state.json")
	cfg.SrsWorkDir = filepath.Join(root, "srs")
	cfg.SrsHTTPDir = filepath.Join(root, "srs", "www")
	cfg.DVRRoot = filepath.Join(root, "dvr")
	return cfg
}

func TestNewRestoresSnapshot(t *testing.T) {
	cfg := testConfig(t)

	seed := state.NewStore()
	require.NoError(t, seed.AddRestream(state.Restream{
		Key: "live",
		Input: state.Input{
			Key:       "origin",
			Enabled:   true,
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
		},
	}))
	require.NoError(t, state.WriteSnapshot(cfg.StatePath, seed.Snapshot()))

	srv, err := New(cfg)
	require.NoError(t, err)

	restreams := srv.Store().Restreams.Get()
	require.Len(t, restreams, 1)
	require.Equal(t, state.RestreamKey("live"), restreams[0].Key)
}

func TestNewRejectsMalformedState(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.StatePath, []byte("{not json"), 0o600))

	_, err := New(cfg)
	require.Error(t, err)
}

func TestCleanupPrunesStaleRecordingDirs(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(cfg)
	require.NoError(t, err)

	stale := filepath.Join(cfg.DVRRoot, uuid.NewString())
	require.NoError(t, os.MkdirAll(stale, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "rec.mp4"), []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.cleanupRecordingsOnChange(ctx)
		close(done)
	}()

	// Any restreams change arms the settle timer; the stale dir belongs
	// to no output and must go.
	require.NoError(t, srv.Store().AddRestream(state.Restream{
		Key: "live",
		Input: state.Input{
			Key:       "origin",
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
		},
	}))

	// The prune waits out the settling delay instead of firing per snapshot.
	time.Sleep(200 * time.Millisecond)
	_, statErr := os.Stat(stale)
	require.NoError(t, statErr)

	require.Eventually(t, func() bool {
		_, statErr := os.Stat(stale)
		return os.IsNotExist(statErr)
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
