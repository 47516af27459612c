package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mangashelf/mangashelf/internal/errors"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"Ongoing":      StatusOngoing,
		" completed ":  StatusComplete,
		"Discontinued": StatusSuspended,
		"On Hiatus":    StatusHiatus,
		"whatever":     StatusUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseStatus(in), in)
	}
}

func TestHasAnyGenre(t *testing.T) {
	w := &Work{Genres: []string{"Action", "Webtoon"}}
	assert.True(t, w.HasGenre([]string{"webtoon", "Long Strip"}))
	assert.False(t, w.HasGenre([]string{"Long Strip"}))
	assert.False(t, HasAnyGenre(nil, []string{"a"}))
}

func TestPagePercent(t *testing.T) {
	assert.InDelta(t, 33.333, PagePercent(0, 3), 0.01)
	assert.InDelta(t, 66.666, PagePercent(1, 3), 0.01)
	assert.Equal(t, 100.0, PagePercent(2, 3))
	assert.Equal(t, 40.0, PagePercent(1, 5))
	assert.Equal(t, 100.0, PagePercent(9, 3))
	assert.Equal(t, 0.0, PagePercent(0, 0))
}

func TestChapter_ValidatePageIndex(t *testing.T) {
	c := &Chapter{Pages: make([]Page, 3)}
	assert.NoError(t, c.ValidatePageIndex(0))
	assert.NoError(t, c.ValidatePageIndex(2))
	assert.ErrorIs(t, c.ValidatePageIndex(3), errors.ErrValidation)
	assert.ErrorIs(t, c.ValidatePageIndex(-1), errors.ErrValidation)
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 9, 23, 59, 1, 5, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), DateOnly(in))
}

func TestSeedOf(t *testing.T) {
	now := time.Now()
	s := SeedOf(&Work{Slug: "s", URL: "u", Name: "n", LastRead: now})
	assert.Equal(t, "s", s.Slug)
	assert.Equal(t, now, *s.LastRead)
}
