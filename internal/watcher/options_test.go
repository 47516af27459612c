package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, 500*time.Millisecond, opts.SettleDelay)
	assert.Zero(t, opts.MaxDepth)
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
	assert.Contains(t, opts.IgnorePatterns, "*.tmp")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:   false,
		SettleDelay:    200 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
		MaxDepth:       2,
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
	assert.Equal(t, 2, opts.MaxDepth)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"partial page", "/data/mangadex/Work/1/.partial-001.jpg", true},
		{"hidden directory", "/data/.trash/Work", true},
		{"DS_Store", "/data/mangadex/.DS_Store", true},
		{"tmp file", "/data/mangadex/file.tmp", true},
		{"chapter directory", "/data/mangadex/Work/chapter-1", false},
		{"page", "/data/mangadex/Work/chapter-1/001.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}
