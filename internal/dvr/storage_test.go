// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dvr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/restreamer/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustDstURL(t *testing.T, raw string) state.OutputDstURL {
	t.Helper()
	u, err := state.ParseOutputDstURL(raw)
	require.NoError(t, err)
	return u
}

func TestFileURLIsStablePerOutput(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	dst := mustDstURL(t, "file:///show.flv")

	got := s.FileURL(id, dst)
	assert.Equal(t, "file:///44444444-4444-4444-4444-444444444444/show.flv", got)
	assert.Equal(t, got, s.FileURL(id, dst), "slot URL must not vary between calls")
}

func TestNewFilePathAllocatesTimestampedFile(t *testing.T) {
	root := t.TempDir()
	s, err := NewStorage(root)
	require.NoError(t, err)

	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	p, err := s.NewFilePath(s.FileURL(id, mustDstURL(t, "file:///show.flv")))
	require.NoError(t, err)

	dir, name := filepath.Split(p)
	assert.Equal(t, filepath.Join(root, id.String())+string(filepath.Separator), dir)
	assert.True(t, strings.HasSuffix(name, "_show.flv"), "got %q", name)
	assert.DirExists(t, filepath.Join(root, id.String()))
}

func TestNewFilePathRejectsMalformedURLs(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	for _, raw := range []string{
		"file:///show.flv",
		"file:///not-a-uuid/show.flv",
		"file:///44444444-4444-4444-4444-444444444444/",
	} {
		_, err := s.NewFilePath(raw)
		assert.Error(t, err, raw)
	}
}

func TestListFilesReturnsRelativePathsSorted(t *testing.T) {
	root := t.TempDir()
	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	dir := filepath.Join(root, id.String())
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for _, f := range []string{"20250102-120000_b.flv", "20250101-120000_a.flv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o640))
	}

	s, err := NewStorage(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		id.String() + "/20250101-120000_a.flv",
		id.String() + "/20250102-120000_b.flv",
	}, s.ListFiles(id))
	assert.Empty(t, s.ListFiles(uuid.New()))
}

func TestRemoveFileGuardsPath(t *testing.T) {
	root := t.TempDir()
	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	dir := filepath.Join(root, id.String())
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec.flv"), nil, 0o640))

	s, err := NewStorage(root)
	require.NoError(t, err)

	for _, rel := range []string{
		"/etc/passwd",
		"../outside",
		id.String() + "/../../outside",
		"not-a-uuid/rec.flv",
		id.String(),
	} {
		assert.ErrorIs(t, s.RemoveFile(rel), ErrInvalidPath, rel)
	}

	require.NoError(t, s.RemoveFile(id.String()+"/rec.flv"))
	assert.NoFileExists(t, filepath.Join(dir, "rec.flv"))
	assert.Empty(t, s.ListFiles(id))
}

func TestCleanupRemovesUnreferencedOutputDirs(t *testing.T) {
	root := t.TempDir()
	kept := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	stale := uuid.MustParse("55555555-5555-5555-5555-555555555555")
	for _, id := range []uuid.UUID{kept, stale} {
		dir := filepath.Join(root, id.String())
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rec.flv"), nil, 0o640))
	}
	// Non-UUID directories under the root are left alone.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lost+found"), 0o750))

	s, err := NewStorage(root)
	require.NoError(t, err)

	s.Cleanup([]state.Restream{{
		Outputs: []state.Output{{ID: kept, Dst: mustDstURL(t, "file:///show.flv")}},
	}})

	assert.DirExists(t, filepath.Join(root, kept.String()))
	assert.NoDirExists(t, filepath.Join(root, stale.String()))
	assert.DirExists(t, filepath.Join(root, "lost+found"))
	assert.Empty(t, s.ListFiles(stale))
	assert.Len(t, s.ListFiles(kept), 1)
}
