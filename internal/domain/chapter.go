package domain

import (
	"time"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// Page is one element of a chapter manifest. A page carries an image URL,
// a slug the provider resolves later, or inline text.
type Page struct {
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
	// Key is an optional per-page decryption key.
	Key  string `json:"key,omitempty"`
	Text string `json:"text,omitempty"`
	Read bool   `json:"read,omitempty"`
	// Filename is set once the page is stored in the chapter directory.
	Filename string `json:"filename,omitempty"`
}

// Chapter is one installment of a work. (WorkID, Slug) is unique.
type Chapter struct {
	ID         int64
	WorkID     int64
	Slug       string
	URL        string
	Title      string
	Scanlators []string
	// Pages is nil until the manifest has been fetched.
	Pages     []Page
	Scrambled bool
	Date      *time.Time
	Rank      int

	Downloaded        bool
	Recent            bool
	Read              bool
	LastPageReadIndex *int
}

// ValidatePageIndex checks idx against the manifest.
func (c *Chapter) ValidatePageIndex(idx int) error {
	if idx < 0 || idx >= len(c.Pages) {
		return errors.Validationf("page index %d out of range [0, %d)", idx, len(c.Pages))
	}
	return nil
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
