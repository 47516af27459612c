package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	got, err := Generate("sub")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(got, "sub-"))
	suffix := strings.TrimPrefix(got, "sub-")
	assert.Len(t, suffix, 12)
	for _, r := range suffix {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for range 500 {
		s := MustGenerate("x")
		_, dup := seen[s]
		require.False(t, dup, "duplicate id %s", s)
		seen[s] = struct{}{}
	}
}
