// Package mangaplus implements the MANGA Plus by SHUEISHA web API.
package mangaplus

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mangashelf/mangashelf/internal/codec"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/fetcher"
	"github.com/mangashelf/mangashelf/internal/provider"
)

const (
	siteURL = "https://mangaplus.shueisha.co.jp"
	apiURL  = "https://jumpg-webapi.tokyo-cdn.com/api"
)

// languageCodes maps provider languages to the API's Language enum.
var languageCodes = map[string]uint64{
	"en":    0,
	"es":    1,
	"fr":    2,
	"id":    3,
	"pt_BR": 4,
	"ru":    5,
	"th":    6,
	"de":    7,
	"vi":    9,
}

func init() {
	for lang := range languageCodes {
		info := newInfo(lang)
		provider.Register(info, func(deps provider.Deps) provider.Provider {
			return New(deps, info)
		})
	}
}

func newInfo(lang string) provider.Info {
	id := "mangaplus"
	if lang != "en" {
		id += "_" + strings.ToLower(lang)
	}
	return provider.Info{
		ID:      id,
		MainID:  "mangaplus",
		Name:    "MANGA Plus by SHUEISHA",
		Lang:    lang,
		BaseURL: siteURL,
		// The detail view only lists the first and latest chapters.
		PreservesSlugsForever: true,
		HasMostPopulars:       true,
	}
}

// Option customizes a MANGA Plus provider.
type Option func(*MangaPlus)

// WithAPI points the provider at another API host.
func WithAPI(api string) Option {
	return func(m *MangaPlus) { m.api = strings.TrimRight(api, "/") }
}

// MangaPlus is the MANGA Plus provider for one language.
type MangaPlus struct {
	*provider.Base
	language uint64
	api      string
}

// New creates a MANGA Plus provider for info.
func New(deps provider.Deps, info provider.Info, opts ...Option) *MangaPlus {
	m := &MangaPlus{
		Base: provider.NewBase(info, deps, fetcher.SessionConfig{
			Origin:  siteURL,
			Referer: siteURL + "/",
		}),
		language: languageCodes[info.Lang],
		api:      apiURL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MangaPlus) call(ctx context.Context, endpoint string, q url.Values) (*successResult, error) {
	resp, err := m.Session().Get(ctx, m.api+endpoint, fetcher.WithQuery(q))
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp.Body)
}

// Search filters the full title list by name.
func (m *MangaPlus) Search(ctx context.Context, term string, _ provider.Values) ([]domain.SearchResult, error) {
	res, err := m.call(ctx, "/title_list/all", nil)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	return m.results(res.Titles, func(t title) bool {
		return strings.Contains(strings.ToLower(t.Name), term)
	}), nil
}

// MostPopulars returns the hottest ranking.
func (m *MangaPlus) MostPopulars(ctx context.Context, _ provider.Values) ([]domain.SearchResult, error) {
	res, err := m.call(ctx, "/title_list/ranking", nil)
	if err != nil {
		return nil, err
	}
	return m.results(res.Titles, func(title) bool { return true }), nil
}

func (m *MangaPlus) results(titles []title, keep func(title) bool) []domain.SearchResult {
	out := []domain.SearchResult{}
	for _, t := range titles {
		if t.Language != m.language || !keep(t) {
			continue
		}
		out = append(out, domain.SearchResult{
			Slug:  strconv.FormatUint(t.ID, 10),
			Name:  t.Name,
			Cover: t.Portrait,
		})
	}
	return out
}

// GetMangaData fetches the title detail view.
func (m *MangaPlus) GetMangaData(ctx context.Context, seed domain.Seed) provider.MangaResult {
	res, err := m.call(ctx, "/title_detail", url.Values{"title_id": {seed.Slug}})
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return provider.NotFound(seed.Slug)
	}
	if err != nil {
		return provider.FromError(seed.Slug, err)
	}
	d := res.Detail
	if d == nil || d.Title.ID == 0 {
		return provider.NotFound(seed.Slug)
	}

	work := &domain.WorkData{
		Slug:       seed.Slug,
		Name:       d.Title.Name,
		Authors:    splitAuthors(d.Title.Author),
		Scanlators: []string{},
		Genres:     []string{},
		Synopsis:   provider.Synopsis(d.Synopsis),
		Cover:      d.Title.Portrait,
		ServerID:   m.Info().ID,
		Status:     domain.StatusOngoing,
	}
	if d.NonAppearance || d.NextTimestamp == 0 {
		work.Status = domain.StatusComplete
	}

	seen := map[uint64]bool{}
	for _, c := range d.Chapters {
		if c.ID == 0 || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		cd := domain.ChapterData{
			Slug:  strconv.FormatUint(c.ID, 10),
			Title: c.Name,
		}
		if c.SubTitle != "" {
			cd.Title += " - " + c.SubTitle
		}
		if c.Start > 0 {
			date := domain.DateOnly(time.Unix(c.Start, 0).UTC())
			cd.Date = &date
		}
		work.Chapters = append(work.Chapters, cd)
	}
	return provider.OK(work)
}

func splitAuthors(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, "/") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// GetChapterData fetches the viewer manifest. Each page carries its own
// XOR key.
func (m *MangaPlus) GetChapterData(ctx context.Context, _, _, chapterSlug, _ string) (*domain.ChapterPages, error) {
	q := url.Values{"chapter_id": {chapterSlug}, "split": {"yes"}, "img_quality": {"super_high"}}
	res, err := m.call(ctx, "/manga_viewer", q)
	if err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(res.Pages))
	for _, p := range res.Pages {
		if p.ImageURL == "" {
			continue
		}
		pages = append(pages, domain.Page{Image: p.ImageURL, Key: p.EncryptionKey})
	}
	return &domain.ChapterPages{Pages: pages}, nil
}

// GetPageImage downloads a page and decrypts it with the page key.
func (m *MangaPlus) GetPageImage(ctx context.Context, _, _, _ string, page domain.Page) (*provider.PageImage, error) {
	if page.Image == "" {
		return nil, errors.Validation("page has no image url")
	}
	resp, err := m.Session().Get(ctx, page.Image)
	if err != nil {
		return nil, err
	}
	data := resp.Body
	if page.Key != "" {
		if data, err = codec.XORStreamDecrypt(data, page.Key); err != nil {
			return nil, err
		}
	}
	data, mediaType, err := codec.Normalize(data)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, errors.Decodef("page %s is not an image after decryption", page.Image)
	}
	return &provider.PageImage{Data: data, MediaType: mediaType, Name: provider.HashedName(strings.SplitN(page.Image, "?", 2)[0], mediaType)}, nil
}

// GetMangaURL returns the public title page.
func (m *MangaPlus) GetMangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return siteURL + "/titles/" + slug
}
