// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dvr stores the recordings of file:// outputs: one directory per
// output UUID, one timestamped file per re-streamer launch.
package dvr

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/state"
)

// Storage is the on-disk recording store. An in-memory index, kept current by
// an fsnotify watcher, backs the file listings served over GraphQL.
type Storage struct {
	root   string
	logger zerolog.Logger

	mu    sync.RWMutex
	index map[uuid.UUID][]string
}

// NewStorage opens (and creates if needed) the store rooted at root and
// builds the initial index from disk.
func NewStorage(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("recording root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create recording root: %w", err)
	}
	s := &Storage{
		root:   abs,
		logger: log.WithComponent("dvr"),
		index:  make(map[uuid.UUID][]string),
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the absolute recording root directory.
func (s *Storage) Root() string { return s.root }

// FileURL returns the stable file URL of an output's recording slot, the
// destination the process descriptors are built against.
func (s *Storage) FileURL(outputID uuid.UUID, dst state.OutputDstURL) string {
	return fmt.Sprintf("file:///%s/%s", outputID, dst.FileName())
}

// NewFilePath allocates a fresh timestamped file under the slot of the given
// file URL; called once per child launch.
func (s *Storage) NewFilePath(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("recording URL %q: %w", fileURL, err)
	}
	rel := strings.TrimPrefix(u.Path, "/")
	dir, name := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || name == "" {
		return "", fmt.Errorf("recording URL %q: missing output directory", fileURL)
	}
	if _, err := uuid.Parse(dir); err != nil {
		return "", fmt.Errorf("recording URL %q: %w", fileURL, err)
	}

	absDir := filepath.Join(s.root, dir)
	if err := os.MkdirAll(absDir, 0o750); err != nil {
		return "", fmt.Errorf("create recording dir: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(absDir, fmt.Sprintf("%s_%s", stamp, name)), nil
}

// ListFiles returns the recordings of one output, newest last, as paths
// relative to the root ("<output-id>/<file>").
func (s *Storage) ListFiles(outputID uuid.UUID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := s.index[outputID]
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = path.Join(outputID.String(), f)
	}
	return out
}

// ErrInvalidPath rejects removal paths that try to leave the store.
var ErrInvalidPath = fmt.Errorf("invalid recording path")

// RemoveFile deletes one recording by its root-relative path. Only paths of
// the exact "<output-id>/<file>" shape are accepted.
func (s *Storage) RemoveFile(rel string) error {
	dir, name, ok := splitRecordingPath(rel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	if err := os.Remove(filepath.Join(s.root, dir.String(), name)); err != nil {
		return err
	}
	s.dropIndexed(dir, name)
	return nil
}

func splitRecordingPath(rel string) (uuid.UUID, string, bool) {
	if strings.HasPrefix(rel, "/") || strings.Contains(rel, "..") {
		return uuid.Nil, "", false
	}
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || parts[1] == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, parts[1], true
}

// Cleanup drops the directories of outputs no longer present in restreams.
// The pool is given a settling delay before this runs, so a recording slot
// in the middle of a restart never loses its directory.
func (s *Storage) Cleanup(restreams []state.Restream) {
	referenced := make(map[string]struct{})
	for i := range restreams {
		for _, o := range restreams[i].Outputs {
			if o.Dst.Scheme() == "file" {
				referenced[o.ID.String()] = struct{}{}
			}
		}
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Error().Err(err).Msg("cannot scan recording root")
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		if _, ok := referenced[e.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			s.logger.Error().Err(err).
				Str(log.FieldOutput, e.Name()).
				Msg("cannot remove stale recording dir")
			continue
		}
		s.mu.Lock()
		delete(s.index, id)
		s.mu.Unlock()
		s.logger.Info().
			Str(log.FieldOutput, e.Name()).
			Msg("removed recordings of deleted output")
	}
}

// Watch keeps the index aligned with filesystem changes until ctx ends.
// External deletions (an operator pruning disk space) are picked up without
// a restart.
func (s *Storage) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}
	s.mu.RLock()
	for id := range s.index {
		_ = watcher.Add(filepath.Join(s.root, id.String()))
	}
	s.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("recording watcher error")
		}
	}
}

func (s *Storage) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")

	switch len(parts) {
	case 1:
		// Output directory appears or vanishes directly under the root.
		id, err := uuid.Parse(parts[0])
		if err != nil {
			return
		}
		if event.Op&fsnotify.Create != 0 {
			_ = watcher.Add(event.Name)
			if err := s.reindexDir(id); err != nil {
				s.logger.Warn().Err(err).Msg("cannot index recording dir")
			}
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			s.mu.Lock()
			delete(s.index, id)
			s.mu.Unlock()
		}

	case 2:
		id, err := uuid.Parse(parts[0])
		if err != nil {
			return
		}
		if event.Op&fsnotify.Create != 0 {
			s.addIndexed(id, parts[1])
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			s.dropIndexed(id, parts[1])
		}
	}
}

func (s *Storage) rebuildIndex() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("scan recording root: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = make(map[uuid.UUID][]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		files, err := listDir(filepath.Join(s.root, e.Name()))
		if err != nil {
			return err
		}
		s.index[id] = files
	}
	return nil
}

func (s *Storage) reindexDir(id uuid.UUID) error {
	files, err := listDir(filepath.Join(s.root, id.String()))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.index[id] = files
	s.mu.Unlock()
	return nil
}

func (s *Storage) addIndexed(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.index[id] {
		if f == name {
			return
		}
	}
	s.index[id] = append(s.index[id], name)
	sort.Strings(s.index[id])
}

func (s *Storage) dropIndexed(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.index[id]
	for i, f := range files {
		if f == name {
			s.index[id] = append(files[:i], files[i+1:]...)
			return
		}
	}
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
