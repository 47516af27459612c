package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/errors"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "credentials.json")
	s := NewFileSink(path)

	_, err := s.Get("mangadex")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, s.Store("mangadex", Credential{Username: "u", Password: "p"}))
	require.NoError(t, s.Store("komga", Credential{Username: "a", Password: "b", Address: "http://nas:25600"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := NewFileSink(path)
	c, err := reopened.Get("komga")
	require.NoError(t, err)
	assert.Equal(t, "http://nas:25600", c.Address)

	require.NoError(t, reopened.Clear("mangadex"))
	require.NoError(t, reopened.Clear("mangadex"))
	_, err = s.Get("mangadex")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	assert.ErrorIs(t, s.Store("x", Credential{Username: "u"}), errors.ErrValidation)
}

func TestFileSink_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	_, err := NewFileSink(path).Get("x")
	assert.ErrorIs(t, err, errors.ErrDecode)
}

func TestMemory(t *testing.T) {
	var s Sink = NewMemory()
	require.NoError(t, s.Store("a", Credential{Username: "u", Password: "p"}))
	c, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "u", c.Username)
	require.NoError(t, s.Clear("a"))
	_, err = s.Get("a")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
