// Package contentstore manages the on-disk hierarchy of work and chapter
// directories:
//
//	<root>/<provider_dir>/<work_name>/cover.jpg
//	<root>/<provider_dir>/<work_name>/<chapter_slug>/<page_filename>
//
// Paths are derived from names; nothing here touches the database.
package contentstore

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// CoverName is the file name covers are stored under, whatever their format.
const CoverName = "cover.jpg"

// Store manages content files under a root directory.
// Thread-safe for concurrent operations.
type Store struct {
	root   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates a Store rooted at root, creating the directory if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.Validation("content store root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeFilesystem, "create content store root")
	}
	return &Store{root: filepath.Clean(root), logger: logger}, nil
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// SafeName turns a display name into a single path segment. The result is
// NFC-normalized and never empty, "." or "..".
func SafeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..":
		return "_"
	}
	return name
}

// safeRelPath sanitizes each segment of a slash separated path.
func safeRelPath(p string) string {
	parts := strings.Split(norm.NFC.String(p), "/")
	out := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, SafeName(part))
	}
	if len(out) == 0 {
		return "_"
	}
	return filepath.Join(out...)
}

// WorkPath returns the directory of a work.
func (s *Store) WorkPath(providerDir, workName string) string {
	return filepath.Join(s.root, SafeName(providerDir), SafeName(workName))
}

// ChapterPath returns the directory of a chapter. The slug may contain '/',
// in which case the directory is nested.
func (s *Store) ChapterPath(workPath, chapterSlug string) string {
	return filepath.Join(workPath, safeRelPath(chapterSlug))
}

// CoverPath returns the cover file path of a work directory.
func (s *Store) CoverPath(workPath string) string {
	return filepath.Join(workPath, CoverName)
}

// EnsureDir creates path and its parents.
func (s *Store) EnsureDir(path string) error {
	if err := s.checkInside(path); err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "create directory")
	}
	return nil
}

// SaveCover writes cover bytes into a work directory.
func (s *Store) SaveCover(workPath string, data []byte) (string, error) {
	path := s.CoverPath(workPath)
	if err := s.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WritePage stores a page file in a chapter directory and returns its path.
func (s *Store) WritePage(chapterPath, filename string, data []byte) (string, error) {
	path := filepath.Join(chapterPath, SafeName(filename))
	if err := s.writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes data to a temporary sibling then renames it into place,
// so a reader never observes a partial file.
func (s *Store) writeFile(path string, data []byte) error {
	if len(data) == 0 {
		return errors.Validation("file data cannot be empty")
	}
	if err := s.checkInside(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "create directory")
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "create temporary file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeFilesystem, "write file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeFilesystem, "close file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeFilesystem, "chmod file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.CodeFilesystem, "move file into place")
	}
	return nil
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(path)
	return err == nil
}

// FileExists reports whether name exists as a regular file inside dir.
func (s *Store) FileExists(dir, name string) bool {
	if name == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(filepath.Join(dir, SafeName(name)))
	return err == nil && info.Mode().IsRegular()
}

// CountFiles counts the regular files directly inside dir, ignoring
// temporary files of interrupted writes. A missing dir counts zero.
func (s *Store) CountFiles(dir string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if stderrors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeFilesystem, "read directory")
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".partial-") {
			n++
		}
	}
	return n, nil
}

// RemoveDir removes path and everything below it. A missing path is not an error.
func (s *Store) RemoveDir(path string) error {
	if err := s.checkInside(path); err != nil {
		return err
	}
	if path == s.root {
		return errors.Validation("refusing to remove the content store root")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(path); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "remove directory")
	}
	s.pruneEmptyParents(filepath.Dir(path))
	return nil
}

// pruneEmptyParents removes empty directories left behind by nested chapter
// slugs, stopping at the root.
func (s *Store) pruneEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Move renames a work directory. A missing source is a no-op; an existing
// destination is a conflict.
func (s *Store) Move(oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	if err := s.checkInside(oldPath); err != nil {
		return err
	}
	if err := s.checkInside(newPath); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(oldPath); stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if _, err := os.Stat(newPath); err == nil {
		return errors.Conflictf("destination %s already exists", newPath)
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "create parent directory")
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "rename directory")
	}
	s.logger.Debug("moved directory", "from", oldPath, "to", newPath)
	return nil
}

func (s *Store) checkInside(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Validationf("path %s is outside the content store", path)
	}
	return nil
}

// FolderSize returns the total size of the files below path in human
// readable form, e.g. "4.2 MB".
func FolderSize(path string) (string, error) {
	var total uint64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size()) //nolint:gosec // sizes are non-negative
		return nil
	})
	if stderrors.Is(err, fs.ErrNotExist) {
		return humanize.Bytes(0), nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.CodeFilesystem, "walk directory")
	}
	return humanize.Bytes(total), nil
}
