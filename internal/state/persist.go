// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
)

// Snapshot is the persisted shape of the store: everything except runtime
// fields.
type Snapshot struct {
	Settings  Settings   `json:"settings"`
	Restreams []Restream `json:"restreams"`
	Clients   []Client   `json:"clients"`
}

// Snapshot captures the current persisted state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Settings:  s.Settings.Get(),
		Restreams: s.Restreams.Get(),
		Clients:   s.Clients.Get(),
	}
}

// Restore loads a snapshot into the cells, normalizing runtime fields.
func (s *Store) Restore(snap Snapshot) {
	for i := range snap.Restreams {
		materializeRestream(&snap.Restreams[i])
	}
	s.Settings.Set(snap.Settings)
	s.Restreams.Set(snap.Restreams)
	s.Clients.Set(snap.Clients)
}

// LoadSnapshot reads and validates the state file. An absent or empty file
// yields (nil, nil): the caller starts from defaults. A present but invalid
// file is an error, which the daemon treats as fatal.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if err := ValidateRestreams(snap.Restreams); err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	return &snap, nil
}

// WriteSnapshot writes the snapshot atomically and durably: temp file, fsync,
// rename.
func WriteSnapshot(path string, snap Snapshot) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer func() {
		// renameio removes the temp file if it was not committed.
		_ = pending.Cleanup()
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode state snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}

// PersistOnChange rewrites the state file whenever settings, restreams or
// clients change. Write failures are logged, never fatal: in-memory state
// proceeds and the next change retries. Blocks until ctx is done.
func (s *Store) PersistOnChange(ctx context.Context, path string) {
	logger := log.WithComponent("persist")

	settings := s.Settings.Subscribe(ctx)
	restreams := s.Restreams.Subscribe(ctx)
	clients := s.Clients.Subscribe(ctx)

	// Drain the initial snapshots so startup does not rewrite what was
	// just loaded.
	<-settings
	<-restreams
	<-clients

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-settings:
			if !ok {
				return
			}
		case _, ok := <-restreams:
			if !ok {
				return
			}
		case _, ok := <-clients:
			if !ok {
				return
			}
		}

		if err := WriteSnapshot(path, s.Snapshot()); err != nil {
			metrics.RecordStatePersist("error")
			logger.Error().Err(err).Str(log.FieldPath, path).Msg("state persist failed")
			continue
		}
		metrics.RecordStatePersist("ok")
		logger.Debug().Str(log.FieldPath, path).Msg("state persisted")
	}
}
