// Package provider defines the uniform contract every remote source
// implements, the defaults shared by all of them, and the registry that
// enumerates the installed sources.
package provider

import (
	"context"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// Status of a provider.
type Status string

// Provider statuses. A disabled provider is hidden from search but still
// serves works already in the library.
const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Info is the fixed metadata of a provider.
type Info struct {
	// ID is stable across releases, e.g. "mangadex" or "webtoon_fr".
	ID   string `json:"id" validate:"required,provider_id"`
	Name string `json:"name" validate:"required"`
	// Lang is empty for multilingual providers.
	Lang    string `json:"lang" validate:"omitempty,lang"`
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
	// MainID groups language variants of one source: they share credentials
	// and per-provider settings. Defaults to ID.
	MainID string `json:"main_id,omitempty"`
	// Dir is the content store directory; variants may share one.
	// Defaults to MainID.
	Dir string `json:"dir,omitempty"`

	HasLogin bool   `json:"has_login"`
	IsNSFW   bool   `json:"is_nsfw"`
	Status   Status `json:"status,omitempty" validate:"omitempty,oneof=enabled disabled"`

	// LongStripGenres default a work's reading mode to webtoon when they
	// intersect its genres.
	LongStripGenres []string `json:"long_strip_genres,omitempty"`
	Filters         []Filter `json:"filters,omitempty" validate:"dive"`

	// Sync is set by providers that keep reading progress upstream.
	Sync bool `json:"sync"`
	// PreservesSlugsForever is set when chapters that vanish from the feed
	// stay addressable, so the updater must never delete them.
	PreservesSlugsForever bool `json:"preserves_slugs_forever"`
	// HasMostPopulars reports whether MostPopulars is implemented, which
	// also allows an empty search term.
	HasMostPopulars bool `json:"has_most_populars"`
}

func (i Info) normalized() Info {
	if i.MainID == "" {
		i.MainID = i.ID
	}
	if i.Dir == "" {
		i.Dir = i.MainID
	}
	if i.Status == "" {
		i.Status = StatusEnabled
	}
	return i
}

// PageImage is a page realized to bytes.
type PageImage struct {
	Data      []byte
	MediaType string
	// Name is the file name to store the page under.
	Name string
}

// ReadProgress is the reading state forwarded to providers that sync upstream.
type ReadProgress struct {
	WorkSlug    string
	ChapterSlug string
	PageIndex   int
	Read        bool
}

// Provider is one remote source.
//
// Implementations embed *Base for the optional methods and override what
// the source supports. Every method honors ctx cancellation.
type Provider interface {
	Info() Info

	// Search runs a free-text search. An empty term is only valid when the
	// provider has most-populars.
	Search(ctx context.Context, term string, filters Values) ([]domain.SearchResult, error)
	MostPopulars(ctx context.Context, filters Values) ([]domain.SearchResult, error)

	// GetMangaData returns the full metadata snapshot, chapters included.
	GetMangaData(ctx context.Context, seed domain.Seed) MangaResult
	GetChapterData(ctx context.Context, workSlug, workName, chapterSlug, chapterURL string) (*domain.ChapterPages, error)
	GetPageImage(ctx context.Context, workSlug, workName, chapterSlug string, page domain.Page) (*PageImage, error)
	GetCoverImage(ctx context.Context, url string) (*PageImage, error)
	GetMangaURL(slug, url string) string

	Login(ctx context.Context, username, password, address string) (bool, error)
	UpdateChapterReadProgress(ctx context.Context, progress ReadProgress) error
}
