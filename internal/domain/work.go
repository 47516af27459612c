// Package domain contains the library entities: works, chapters, page
// manifests, downloads and categories.
package domain

import (
	"strings"
	"time"

	"github.com/mangashelf/mangashelf/internal/genre"
)

// Status is the publication status of a work.
type Status string

// Work statuses.
const (
	StatusOngoing   Status = "ongoing"
	StatusComplete  Status = "complete"
	StatusSuspended Status = "suspended"
	StatusHiatus    Status = "hiatus"
	StatusUnknown   Status = ""
)

// ParseStatus maps free-form source wording onto a Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ongoing", "publishing", "releasing", "on going", "in progress":
		return StatusOngoing
	case "complete", "completed", "finished", "end", "ended":
		return StatusComplete
	case "suspended", "cancelled", "canceled", "discontinued", "dropped":
		return StatusSuspended
	case "hiatus", "on hiatus", "paused":
		return StatusHiatus
	default:
		return StatusUnknown
	}
}

// ReadingMode is how the reader lays out pages.
type ReadingMode string

// Reading modes.
const (
	ReadingModeRTL      ReadingMode = "right-to-left"
	ReadingModeLTR      ReadingMode = "left-to-right"
	ReadingModeVertical ReadingMode = "vertical"
	ReadingModeWebtoon  ReadingMode = "webtoon"
)

// Scaling is how a page is fitted to the viewport.
type Scaling string

// Scalings.
const (
	ScalingScreen   Scaling = "screen"
	ScalingWidth    Scaling = "width"
	ScalingHeight   Scaling = "height"
	ScalingOriginal Scaling = "original"
)

// SortOrder orders a work's chapter list.
type SortOrder string

// Sort orders.
const (
	SortRankAsc  SortOrder = "asc"
	SortRankDesc SortOrder = "desc"
	SortDateAsc  SortOrder = "date-asc"
	SortDateDesc SortOrder = "date-desc"
)

// Work is a series tracked in the library. (ProviderID, Slug) is unique.
type Work struct {
	ID         int64
	Slug       string
	URL        string // optional override when the slug cannot forge it
	ProviderID string
	Name       string
	Authors    []string
	Scanlators []string
	Genres     []string
	Synopsis   string
	Status     Status

	// Per-work reader preferences; zero values mean "use the global setting".
	BackgroundColor string
	BordersCrop     *bool
	ReadingMode     ReadingMode
	Scaling         Scaling
	SortOrder       SortOrder

	LastRead   time.Time
	LastUpdate *time.Time
}

// HasGenre reports whether any of genres appears in the work's genres.
func (w *Work) HasGenre(genres []string) bool {
	return HasAnyGenre(w.Genres, genres)
}

// HasAnyGenre reports whether have and want share a genre, ignoring case
// and the spelling differences between providers.
func HasAnyGenre(have, want []string) bool {
	return genre.Match(have, want)
}
