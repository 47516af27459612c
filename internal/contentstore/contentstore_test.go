package contentstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	return s
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"One Piece", "One Piece"},
		{"Fate/Zero", "Fate-Zero"},
		{"  padded  ", "padded"},
		{"..", "_"},
		{"", "_"},
		{"tab\tname", "tabname"},
		{"Café", "Café"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), "SafeName(%q)", tt.in)
	}
}

func TestPaths(t *testing.T) {
	s := newTestStore(t)

	work := s.WorkPath("mangadex", "Tales of Demons")
	assert.Equal(t, filepath.Join(s.Root(), "mangadex", "Tales of Demons"), work)
	assert.Equal(t, filepath.Join(work, "cover.jpg"), s.CoverPath(work))

	// slugs with '/' nest; traversal segments are neutralized
	assert.Equal(t, filepath.Join(work, "vol-1", "ch-2"), s.ChapterPath(work, "vol-1/ch-2"))
	assert.Equal(t, filepath.Join(work, "_", "x"), s.ChapterPath(work, "../x"))
}

func TestWritePage_CountFiles(t *testing.T) {
	s := newTestStore(t)
	chapter := s.ChapterPath(s.WorkPath("p", "w"), "vol/1")

	n, err := s.CountFiles(chapter)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, name := range []string{"001.jpg", "002.jpg", "003.png"} {
		path, err := s.WritePage(chapter, name, []byte("img"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	}
	// stray partial write is not counted
	require.NoError(t, os.WriteFile(filepath.Join(chapter, ".partial-123"), []byte("x"), 0o644))

	n, err = s.CountFiles(chapter)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, s.FileExists(chapter, "002.jpg"))
	assert.False(t, s.FileExists(chapter, "004.jpg"))
	assert.False(t, s.FileExists(chapter, ""))

	_, err = s.WritePage(chapter, "empty.jpg", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestSaveCover_Overwrites(t *testing.T) {
	s := newTestStore(t)
	work := s.WorkPath("p", "w")

	_, err := s.SaveCover(work, []byte("first"))
	require.NoError(t, err)
	path, err := s.SaveCover(work, []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRemoveDir(t *testing.T) {
	s := newTestStore(t)
	work := s.WorkPath("p", "w")
	chapter := s.ChapterPath(work, "vol/1")
	_, err := s.WritePage(chapter, "1.jpg", []byte("x"))
	require.NoError(t, err)
	_, err = s.SaveCover(work, []byte("c"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveDir(chapter))
	assert.NoDirExists(t, chapter)
	// empty "vol" parent is pruned, the work directory is not
	assert.NoDirExists(t, filepath.Dir(chapter))
	assert.DirExists(t, work)

	// idempotent
	require.NoError(t, s.RemoveDir(chapter))

	assert.ErrorIs(t, s.RemoveDir(s.Root()), errors.ErrValidation)
	assert.ErrorIs(t, s.RemoveDir(filepath.Join(s.Root(), "..", "elsewhere")), errors.ErrValidation)
}

func TestMove(t *testing.T) {
	s := newTestStore(t)
	oldPath := s.WorkPath("p", "Old Name")
	newPath := s.WorkPath("p", "New Name")
	_, err := s.SaveCover(oldPath, []byte("c"))
	require.NoError(t, err)

	require.NoError(t, s.Move(oldPath, newPath))
	assert.NoDirExists(t, oldPath)
	assert.FileExists(t, s.CoverPath(newPath))

	// missing source is a no-op
	require.NoError(t, s.Move(oldPath, s.WorkPath("p", "Other")))

	// occupied destination
	require.NoError(t, s.EnsureDir(oldPath))
	assert.ErrorIs(t, s.Move(oldPath, newPath), errors.ErrConflict)
}

func TestFolderSize(t *testing.T) {
	s := newTestStore(t)
	chapter := s.ChapterPath(s.WorkPath("p", "w"), "1")
	_, err := s.WritePage(chapter, "a", make([]byte, 1500))
	require.NoError(t, err)
	_, err = s.WritePage(chapter, "b", make([]byte, 500))
	require.NoError(t, err)

	size, err := FolderSize(s.Root())
	require.NoError(t, err)
	assert.Equal(t, "2.0 kB", size)

	size, err = FolderSize(filepath.Join(s.Root(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, "0 B", size)
}
