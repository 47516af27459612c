// Package mangadex implements the MangaDex JSON API.
package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/fetcher"
	"github.com/mangashelf/mangashelf/internal/provider"
)

const (
	siteURL    = "https://mangadex.org"
	apiURL     = "https://api.mangadex.org"
	uploadsURL = "https://uploads.mangadex.org"

	feedPageSize = 500
	// atHomeTTL is shorter than the 15 minutes an at-home base URL stays valid.
	atHomeTTL = 10 * time.Minute
)

// languages maps provider language codes to MangaDex ones.
var languages = map[string]string{
	"en":    "en",
	"fr":    "fr",
	"es":    "es",
	"de":    "de",
	"it":    "it",
	"pt_BR": "pt-br",
}

var filters = []provider.Filter{
	{
		Key: "ratings", Name: "Content Rating", Type: provider.FilterSelect, ValueType: provider.ValueMultiple,
		Options: []provider.Option{
			{Key: "safe", Name: "Safe", Default: true},
			{Key: "suggestive", Name: "Suggestive", Default: true},
			{Key: "erotica", Name: "Erotica"},
			{Key: "pornographic", Name: "Pornographic"},
		},
	},
	{
		Key: "statuses", Name: "Status", Type: provider.FilterSelect, ValueType: provider.ValueMultiple,
		Options: []provider.Option{
			{Key: "ongoing", Name: "Ongoing"},
			{Key: "completed", Name: "Completed"},
			{Key: "hiatus", Name: "Paused"},
			{Key: "cancelled", Name: "Canceled"},
		},
	},
	{
		Key: "publication_demographic", Name: "Publication Demographic", Type: provider.FilterSelect, ValueType: provider.ValueMultiple,
		Options: []provider.Option{
			{Key: "shounen", Name: "Shounen"},
			{Key: "shoujo", Name: "Shoujo"},
			{Key: "seinen", Name: "Seinen"},
			{Key: "josei", Name: "Josei"},
			{Key: "none", Name: "None"},
		},
	},
}

func init() {
	for lang := range languages {
		info := newInfo(lang)
		provider.Register(info, func(deps provider.Deps) provider.Provider {
			return New(deps, info)
		})
	}
}

func newInfo(lang string) provider.Info {
	id := "mangadex"
	if lang != "en" {
		id += "_" + strings.ToLower(lang)
	}
	return provider.Info{
		ID:              id,
		MainID:          "mangadex",
		Name:            "MangaDex",
		Lang:            lang,
		BaseURL:         siteURL,
		LongStripGenres: []string{"Long Strip"},
		Filters:         filters,
		HasMostPopulars: true,
	}
}

// Option customizes a MangaDex provider.
type Option func(*MangaDex)

// WithEndpoints points the provider at other API and uploads hosts.
func WithEndpoints(api, uploads string) Option {
	return func(m *MangaDex) {
		m.api = strings.TrimRight(api, "/")
		m.uploads = strings.TrimRight(uploads, "/")
	}
}

// MangaDex is the MangaDex provider for one language.
type MangaDex struct {
	*provider.Base
	lang    string
	api     string
	uploads string

	mu     sync.Mutex
	atHome map[string]atHomeEntry
}

type atHomeEntry struct {
	base    string
	expires time.Time
}

// New creates a MangaDex provider for info.
func New(deps provider.Deps, info provider.Info, opts ...Option) *MangaDex {
	m := &MangaDex{
		Base: provider.NewBase(info, deps, fetcher.SessionConfig{
			UserAgent: "mangashelf",
			RPS:       5,
		}),
		lang:    languages[info.Lang],
		api:     apiURL,
		uploads: uploadsURL,
		atHome:  make(map[string]atHomeEntry),
	}
	if m.lang == "" {
		m.lang = "en"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Search queries the manga list by title.
func (m *MangaDex) Search(ctx context.Context, term string, values provider.Values) ([]domain.SearchResult, error) {
	q := m.listQuery(values)
	q.Set("title", term)
	q.Set("order[relevance]", "desc")
	return m.list(ctx, q)
}

// MostPopulars lists the most followed works.
func (m *MangaDex) MostPopulars(ctx context.Context, values provider.Values) ([]domain.SearchResult, error) {
	q := m.listQuery(values)
	q.Set("order[followedCount]", "desc")
	return m.list(ctx, q)
}

func (m *MangaDex) listQuery(given provider.Values) url.Values {
	values, err := provider.Resolve(filters, given)
	if err != nil {
		m.Logger().Warn("ignoring invalid filters", "error", err)
		values = provider.Defaults(filters)
	}

	q := url.Values{}
	q.Set("limit", "20")
	q.Add("includes[]", "cover_art")
	q.Add("availableTranslatedLanguage[]", m.lang)
	for _, r := range values.Strings("ratings") {
		q.Add("contentRating[]", r)
	}
	for _, s := range values.Strings("statuses") {
		q.Add("status[]", s)
	}
	for _, d := range values.Strings("publication_demographic") {
		q.Add("publicationDemographic[]", d)
	}
	return q
}

func (m *MangaDex) list(ctx context.Context, q url.Values) ([]domain.SearchResult, error) {
	resp, err := m.Session().Get(ctx, m.api+"/manga", fetcher.WithQuery(q))
	if err != nil {
		return nil, err
	}
	var body mangaListResponse
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(body.Data))
	for _, item := range body.Data {
		out = append(out, domain.SearchResult{
			Slug:  item.ID,
			Name:  item.Attributes.Title.pick(m.lang),
			Cover: m.coverURL(item),
		})
	}
	return out, nil
}

func (m *MangaDex) coverURL(item manga) string {
	for _, rel := range item.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return fmt.Sprintf("%s/covers/%s/%s.512.jpg", m.uploads, item.ID, rel.Attributes.FileName)
		}
	}
	return ""
}

// GetMangaData fetches the work and its full chapter feed.
func (m *MangaDex) GetMangaData(ctx context.Context, seed domain.Seed) provider.MangaResult {
	q := url.Values{}
	for _, inc := range []string{"author", "artist", "cover_art"} {
		q.Add("includes[]", inc)
	}
	resp, err := m.Session().Get(ctx, m.api+"/manga/"+url.PathEscape(seed.Slug), fetcher.WithQuery(q))
	if err != nil {
		return provider.FromError(seed.Slug, err)
	}
	var body mangaResponse
	if err := resp.JSON(&body); err != nil {
		return provider.Failed(err)
	}

	item := body.Data
	work := &domain.WorkData{
		Slug:     item.ID,
		Name:     item.Attributes.Title.pick(m.lang),
		Status:   domain.ParseStatus(item.Attributes.Status),
		Synopsis: provider.Synopsis(item.Attributes.Description.pick(m.lang)),
		Cover:    m.coverURL(item),
		ServerID: m.Info().ID,
		Authors:  []string{},
		Genres:   []string{},
	}
	for _, rel := range item.Relationships {
		if (rel.Type == "author" || rel.Type == "artist") && rel.Attributes.Name != "" && !contains(work.Authors, rel.Attributes.Name) {
			work.Authors = append(work.Authors, rel.Attributes.Name)
		}
	}
	for _, t := range item.Attributes.Tags {
		if name := t.Attributes.Name.pick("en"); name != "" {
			work.Genres = append(work.Genres, name)
		}
	}

	chapters, scanlators, err := m.feed(ctx, item.ID)
	if err != nil {
		return provider.Failed(err)
	}
	work.Chapters = chapters
	work.Scanlators = scanlators
	return provider.OK(work)
}

// feed pages through the chapter feed, oldest first.
func (m *MangaDex) feed(ctx context.Context, mangaID string) ([]domain.ChapterData, []string, error) {
	var (
		chapters   []domain.ChapterData
		scanlators []string
	)
	for offset := 0; ; offset += feedPageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(feedPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("order[volume]", "asc")
		q.Set("order[chapter]", "asc")
		q.Add("translatedLanguage[]", m.lang)
		q.Add("includes[]", "scanlation_group")
		for _, r := range []string{"safe", "suggestive", "erotica", "pornographic"} {
			q.Add("contentRating[]", r)
		}

		resp, err := m.Session().Get(ctx, m.api+"/manga/"+url.PathEscape(mangaID)+"/feed", fetcher.WithQuery(q))
		if err != nil {
			return nil, nil, err
		}
		var body feedResponse
		if err := resp.JSON(&body); err != nil {
			return nil, nil, err
		}

		for _, c := range body.Data {
			if c.Attributes.ExternalURL != "" {
				continue
			}
			var groups []string
			for _, rel := range c.Relationships {
				if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
					groups = append(groups, rel.Attributes.Name)
					if !contains(scanlators, rel.Attributes.Name) {
						scanlators = append(scanlators, rel.Attributes.Name)
					}
				}
			}
			var date *time.Time
			if !c.Attributes.PublishAt.IsZero() {
				d := domain.DateOnly(c.Attributes.PublishAt.UTC())
				date = &d
			}
			chapters = append(chapters, domain.ChapterData{
				Slug:       c.ID,
				Title:      chapterTitle(c),
				Date:       date,
				Scanlators: groups,
			})
		}

		if len(body.Data) == 0 || offset+feedPageSize >= body.Total {
			break
		}
	}
	if scanlators == nil {
		scanlators = []string{}
	}
	return chapters, scanlators, nil
}

func chapterTitle(c chapter) string {
	var parts []string
	if v := c.Attributes.Volume; v != "" {
		parts = append(parts, "Vol. "+v)
	}
	if n := c.Attributes.Chapter; n != "" {
		parts = append(parts, "Ch. "+n)
	}
	title := strings.Join(parts, " ")
	switch {
	case title == "" && c.Attributes.Title == "":
		return "Oneshot"
	case title == "":
		return c.Attributes.Title
	case c.Attributes.Title != "":
		return title + " - " + c.Attributes.Title
	default:
		return title
	}
}

// GetChapterData returns the page manifest. Pages carry "hash/file" slugs;
// the at-home server is resolved again at download time because its base
// URL expires.
func (m *MangaDex) GetChapterData(ctx context.Context, _, _, chapterSlug, _ string) (*domain.ChapterPages, error) {
	body, err := m.fetchAtHome(ctx, chapterSlug)
	if err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(body.Chapter.Data))
	for _, file := range body.Chapter.Data {
		pages = append(pages, domain.Page{Slug: body.Chapter.Hash + "/" + file})
	}
	return &domain.ChapterPages{Pages: pages}, nil
}

func (m *MangaDex) fetchAtHome(ctx context.Context, chapterSlug string) (*atHomeResponse, error) {
	resp, err := m.Session().Get(ctx, m.api+"/at-home/server/"+url.PathEscape(chapterSlug))
	if err != nil {
		return nil, err
	}
	var body atHomeResponse
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}
	if body.BaseURL == "" {
		return nil, errors.Parsef("at-home response for %s has no base url", chapterSlug)
	}

	m.mu.Lock()
	m.atHome[chapterSlug] = atHomeEntry{base: strings.TrimRight(body.BaseURL, "/"), expires: time.Now().Add(atHomeTTL)}
	m.mu.Unlock()
	return &body, nil
}

func (m *MangaDex) atHomeBase(ctx context.Context, chapterSlug string) (string, error) {
	m.mu.Lock()
	entry, ok := m.atHome[chapterSlug]
	m.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.base, nil
	}
	if _, err := m.fetchAtHome(ctx, chapterSlug); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atHome[chapterSlug].base, nil
}

// GetPageImage downloads one page from the at-home network.
func (m *MangaDex) GetPageImage(ctx context.Context, _, _, chapterSlug string, page domain.Page) (*provider.PageImage, error) {
	if page.Image != "" {
		return m.FetchPage(ctx, page.Image, "")
	}
	if page.Slug == "" {
		return nil, errors.Validation("page has neither slug nor image")
	}
	base, err := m.atHomeBase(ctx, chapterSlug)
	if err != nil {
		return nil, err
	}
	return m.FetchPage(ctx, base+"/data/"+page.Slug, path.Base(page.Slug))
}

// GetMangaURL returns the public title page.
func (m *MangaDex) GetMangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return siteURL + "/title/" + slug
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
