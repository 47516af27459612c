package domain

import "time"

// SearchResult is one hit from a provider search or popular list.
type SearchResult struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Cover string `json:"cover,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ChapterData is a chapter as a provider describes it.
type ChapterData struct {
	Slug       string     `json:"slug" validate:"required"`
	Title      string     `json:"title"`
	URL        string     `json:"url,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Scanlators []string   `json:"scanlators,omitempty"`
}

// WorkData is a full metadata snapshot from a provider. Chapters are ordered
// oldest to newest in the provider's canonical order.
type WorkData struct {
	Slug       string        `json:"slug" validate:"required"`
	URL        string        `json:"url,omitempty"`
	Name       string        `json:"name" validate:"required"`
	Authors    []string      `json:"authors"`
	Scanlators []string      `json:"scanlators"`
	Genres     []string      `json:"genres"`
	Status     Status        `json:"status"`
	Synopsis   string        `json:"synopsis"`
	Cover      string        `json:"cover,omitempty"`
	Chapters   []ChapterData `json:"chapters"`
	ServerID   string        `json:"server_id" validate:"required"`
	// LastRead is reported by providers that sync reading progress upstream.
	LastRead *time.Time `json:"last_read,omitempty"`
}

// Seed is the minimum needed to look a work up again.
type Seed struct {
	Slug     string
	URL      string
	Name     string
	LastRead *time.Time
}

// SeedOf builds the lookup seed for a stored work.
func SeedOf(w *Work) Seed {
	lr := w.LastRead
	return Seed{Slug: w.Slug, URL: w.URL, Name: w.Name, LastRead: &lr}
}

// ChapterPages is a chapter manifest returned by a provider.
type ChapterPages struct {
	Pages     []Page
	Scrambled bool
}
