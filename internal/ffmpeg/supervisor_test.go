// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/restreamer/internal/state"
)

// stubDescriptor drives the supervisor with a fixed argument vector.
type stubDescriptor struct {
	id   uuid.UUID
	args []string
}

func (d *stubDescriptor) EntityID() uuid.UUID         { return d.id }
func (d *stubDescriptor) Kind() string                { return "stub" }
func (d *stubDescriptor) Args(*Env) ([]string, error) { return d.args, nil }

// seedOutput creates a store holding one restream with one output and
// returns the ids needed to observe the output's supervision status.
func seedOutput(t *testing.T) (*state.Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := state.NewStore()
	require.NoError(t, store.AddRestream(state.Restream{
		Key: "live",
		Input: state.Input{
			Key:       "origin",
			Enabled:   true,
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
		},
	}))
	restreamID := store.Restreams.Get()[0].ID

	dst, err := state.ParseOutputDstURL("rtmp://peer.example.com/app/stream")
	require.NoError(t, err)
	found, err := store.SetOutput(restreamID, uuid.Nil, state.Output{Dst: dst})
	require.NoError(t, err)
	require.True(t, found)

	return store, restreamID, store.Restreams.Get()[0].Outputs[0].ID
}

func outputStatus(store *state.Store, restreamID, outputID uuid.UUID) state.Status {
	for _, r := range store.Restreams.Get() {
		if r.ID != restreamID {
			continue
		}
		if o := r.Output(outputID); o != nil {
			return o.Status
		}
	}
	return state.StatusOffline
}

func TestSupervisorStopTerminatesChild(t *testing.T) {
	store, restreamID, outputID := seedOutput(t)
	desc := &stubDescriptor{id: outputID, args: []string{"-c", "sleep 60"}}

	s := startSupervisor(desc, "/bin/sh", &Env{Store: store})
	require.Eventually(t, func() bool {
		return outputStatus(store, restreamID, outputID) == state.StatusInitializing
	}, 2*time.Second, 20*time.Millisecond, "spawned child marks its entity initializing")

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop after Stop")
	}
	assert.Equal(t, state.StatusOffline, outputStatus(store, restreamID, outputID))
}

func TestSupervisorMarksUnstableOnQuickRespawn(t *testing.T) {
	store, restreamID, outputID := seedOutput(t)
	desc := &stubDescriptor{id: outputID, args: []string{"-c", "exit 1"}}

	s := startSupervisor(desc, "/bin/sh", &Env{Store: store})
	defer func() {
		s.Stop()
		<-s.Done()
	}()

	// The first failure leaves the entity offline; the respawn two seconds
	// later lands inside the unstable window.
	require.Eventually(t, func() bool {
		return outputStatus(store, restreamID, outputID) == state.StatusUnstable
	}, 6*time.Second, 50*time.Millisecond)
}

func TestIsCleanExit(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		sig   syscall.Signal
		clean bool
	}{
		{"exit zero", 0, -1, true},
		{"exit 255", 255, -1, true},
		{"terminated", -1, syscall.SIGTERM, true},
		{"exit one", 1, -1, false},
		{"killed", -1, syscall.SIGKILL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.clean, isCleanExit(tt.code, tt.sig))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, state.StatusInitializing,
		classifyStatus(time.Time{}, state.StatusInitializing))
	assert.Equal(t, state.StatusUnstable,
		classifyStatus(time.Now(), state.StatusInitializing))
	assert.Equal(t, state.StatusOffline,
		classifyStatus(time.Now().Add(-unstableWindow-time.Second), state.StatusOffline))
}
