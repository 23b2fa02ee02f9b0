// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sysinfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/restreamer/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSampleReadsHostMeasurements(t *testing.T) {
	s, err := NewSampler(state.NewStore())
	require.NoError(t, err)

	first := s.sample()
	require.Nil(t, first.ErrorMsg)
	require.NotNil(t, first.CPUCores)
	assert.Positive(t, *first.CPUCores)
	require.NotNil(t, first.RAMTotal)
	assert.Positive(t, *first.RAMTotal)

	// Rate gauges need two samples.
	assert.Nil(t, first.CPUUsage)
	assert.Nil(t, first.TxDelta)

	time.Sleep(100 * time.Millisecond)
	second := s.sample()
	require.NotNil(t, second.CPUUsage)
	assert.GreaterOrEqual(t, *second.CPUUsage, 0.0)
	assert.LessOrEqual(t, *second.CPUUsage, 100.0)
	require.NotNil(t, second.TxDelta)
	assert.GreaterOrEqual(t, *second.TxDelta, 0.0)
}

func TestRunPublishesIntoServerInfoCell(t *testing.T) {
	store := state.NewStore()
	s, err := NewSampler(store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for store.ServerInfo.Get().CPUCores == nil {
		select {
		case <-deadline:
			t.Fatal("sampler never published")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sampler did not stop")
	}
}
