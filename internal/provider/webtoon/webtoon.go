// Package webtoon implements WEBTOON (webtoons.com).
package webtoon

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/fetcher"
	"github.com/mangashelf/mangashelf/internal/provider"
)

const siteURL = "https://www.webtoons.com"

// maxListPages bounds the episode list walk.
const maxListPages = 200

// Every title on the site is a vertical strip, so every genre it uses is a
// long-strip genre.
var genres = []string{
	"Action", "Comedy", "Drama", "Fantasy", "Heartwarming", "Historical", "Horror",
	"Informative", "Local", "Mystery", "Romance", "School", "Sci-fi", "Slice of life",
	"Sports", "Superhero", "Supernatural", "Thriller",
}

// languages are the site's path prefixes.
var languages = []string{"en", "fr", "es", "de", "id", "th"}

// dateLayouts are the episode date formats used across languages.
var dateLayouts = []string{"Jan 2, 2006", "2 Jan 2006", "02.01.2006", "02/01/2006", "2006. 1. 2.", "2006-01-02"}

func init() {
	for _, lang := range languages {
		info := newInfo(lang)
		provider.Register(info, func(deps provider.Deps) provider.Provider {
			return New(deps, info)
		})
	}
}

func newInfo(lang string) provider.Info {
	id := "webtoon"
	if lang != "en" {
		id += "_" + lang
	}
	return provider.Info{
		ID:              id,
		MainID:          "webtoon",
		Name:            "WEBTOON",
		Lang:            lang,
		BaseURL:         siteURL,
		LongStripGenres: genres,
		HasMostPopulars: true,
	}
}

// Option customizes a WEBTOON provider.
type Option func(*Webtoon)

// WithSite points the provider at another host.
func WithSite(base string) Option {
	return func(w *Webtoon) { w.site = strings.TrimRight(base, "/") }
}

// Webtoon is the WEBTOON provider for one language.
type Webtoon struct {
	*provider.Base
	site string
	path string
}

// New creates a WEBTOON provider for info.
func New(deps provider.Deps, info provider.Info, opts ...Option) *Webtoon {
	path := info.Lang
	if !slices.Contains(languages, path) {
		path = "en"
	}
	w := &Webtoon{
		Base: provider.NewBase(info, deps, fetcher.SessionConfig{}),
		site: siteURL,
		path: path,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.acceptGates()
	return w
}

// acceptGates sets the consent and age gate cookies the site checks before
// serving lists and viewers.
func (w *Webtoon) acceptGates() {
	var cookies []*http.Cookie
	for name, value := range map[string]string{
		"ageGatePass": "true",
		"needCCPA":    "false",
		"needCOPPA":   "false",
		"needGDPR":    "false",
		"pagGDPR":     "true",
		"locale":      w.path,
	} {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	w.Session().SetCookies(w.site+"/", cookies)
}

func (w *Webtoon) get(ctx context.Context, rawURL string, opts ...fetcher.RequestOption) (*goquery.Document, *url.URL, error) {
	resp, err := w.Session().Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, errors.Parsef("parse %s: %v", rawURL, err)
	}
	return doc, resp.URL, nil
}

// Search queries the site search.
func (w *Webtoon) Search(ctx context.Context, term string, _ provider.Values) ([]domain.SearchResult, error) {
	doc, _, err := w.get(ctx, w.site+"/"+w.path+"/search", fetcher.WithQuery(url.Values{"keyword": {term}}))
	if err != nil {
		return nil, err
	}
	return cards(doc), nil
}

// MostPopulars lists the top ranking.
func (w *Webtoon) MostPopulars(ctx context.Context, _ provider.Values) ([]domain.SearchResult, error) {
	doc, _, err := w.get(ctx, w.site+"/"+w.path+"/top")
	if err != nil {
		return nil, err
	}
	return cards(doc), nil
}

func cards(doc *goquery.Document) []domain.SearchResult {
	out := []domain.SearchResult{}
	doc.Find("ul.card_lst li a, ul.webtoon_list li a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		slug := titleNo(href)
		if slug == "" || slices.ContainsFunc(out, func(r domain.SearchResult) bool { return r.Slug == slug }) {
			return
		}
		out = append(out, domain.SearchResult{
			Slug:  slug,
			Name:  strings.TrimSpace(a.Find(".subj, .title").First().Text()),
			Cover: a.Find("img").First().AttrOr("src", ""),
			URL:   href,
		})
	})
	return out
}

// titleNo extracts the title_no query parameter that identifies a series.
func titleNo(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("title_no"); v != "" {
		return v
	}
	return u.Query().Get("titleNo")
}

func (w *Webtoon) listURL(slug, workURL string) string {
	if workURL != "" {
		return workURL
	}
	return w.site + "/episodeList?titleNo=" + url.QueryEscape(slug)
}

// GetMangaURL returns the series page.
func (w *Webtoon) GetMangaURL(slug, rawURL string) string {
	return w.listURL(slug, rawURL)
}

// GetMangaData scrapes the series page and walks every page of its episode list.
func (w *Webtoon) GetMangaData(ctx context.Context, seed domain.Seed) provider.MangaResult {
	doc, final, err := w.get(ctx, w.listURL(seed.Slug, seed.URL))
	if err != nil {
		return provider.FromError(seed.Slug, err)
	}
	name := strings.TrimSpace(doc.Find(".info .subj").First().Text())
	if name == "" {
		return provider.NotFound(seed.Slug)
	}

	work := &domain.WorkData{
		Slug:       seed.Slug,
		URL:        final.String(),
		Name:       name,
		Authors:    authors(doc.Find(".author_area, .info .author").First()),
		Genres:     []string{},
		Scanlators: []string{},
		Synopsis:   provider.Synopsis(strings.TrimSpace(doc.Find("p.summary").First().Text())),
		Cover:      doc.Find(`meta[property="og:image"]`).AttrOr("content", ""),
		ServerID:   w.Info().ID,
		Status:     domain.StatusOngoing,
	}
	doc.Find(".info .genre").Each(func(_ int, s *goquery.Selection) {
		if g := strings.TrimSpace(s.Text()); g != "" && !slices.Contains(work.Genres, g) {
			work.Genres = append(work.Genres, g)
		}
	})
	if day := strings.ToUpper(doc.Find(".day_info").Text()); strings.Contains(day, "COMPLETED") {
		work.Status = domain.StatusComplete
	}

	chapters, err := w.episodes(ctx, doc, final)
	if err != nil {
		return provider.Failed(err)
	}
	work.Chapters = chapters
	return provider.OK(work)
}

func authors(sel *goquery.Selection) []string {
	sel = sel.Clone()
	sel.Find("button, .ico_info2").Remove()
	out := []string{}
	for _, a := range strings.Split(sel.Text(), ",") {
		if a = strings.Join(strings.Fields(a), " "); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// episodes collects the newest-first paginated list and returns it oldest first.
func (w *Webtoon) episodes(ctx context.Context, first *goquery.Document, listURL *url.URL) ([]domain.ChapterData, error) {
	seen := map[string]bool{}
	var out []domain.ChapterData

	doc := first
	for page := 1; page <= maxListPages; page++ {
		if page > 1 {
			u := *listURL
			q := u.Query()
			q.Set("page", strconv.Itoa(page))
			u.RawQuery = q.Encode()
			var err error
			if doc, _, err = w.get(ctx, u.String()); err != nil {
				return nil, err
			}
		}

		added := 0
		doc.Find("ul#_listUl li[data-episode-no]").Each(func(_ int, li *goquery.Selection) {
			no := li.AttrOr("data-episode-no", "")
			if no == "" || seen[no] {
				return
			}
			seen[no] = true
			added++
			c := domain.ChapterData{
				Slug:  no,
				Title: strings.TrimSpace(li.Find(".subj span").First().Text()),
				URL:   li.Find("a").First().AttrOr("href", ""),
			}
			if d, ok := parseDate(strings.TrimSpace(li.Find(".date").Text())); ok {
				c.Date = &d
			}
			out = append(out, c)
		})
		if added == 0 || doc.Find(".paginate a[href*='page="+strconv.Itoa(page+1)+"']").Length() == 0 {
			break
		}
	}
	slices.Reverse(out)
	return out, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// GetChapterData scrapes the viewer image list.
func (w *Webtoon) GetChapterData(ctx context.Context, workSlug, _, chapterSlug, chapterURL string) (*domain.ChapterPages, error) {
	if chapterURL == "" {
		chapterURL = w.site + "/" + w.path + "/viewer?" + url.Values{"title_no": {workSlug}, "episode_no": {chapterSlug}}.Encode()
	}
	doc, _, err := w.get(ctx, chapterURL)
	if err != nil {
		return nil, err
	}
	pages := []domain.Page{}
	doc.Find("#_imageList img").Each(func(_ int, img *goquery.Selection) {
		if src := strings.TrimSpace(img.AttrOr("data-url", img.AttrOr("src", ""))); src != "" {
			pages = append(pages, domain.Page{Image: src})
		}
	})
	if len(pages) == 0 {
		return nil, errors.Parsef("no pages found in %s", chapterURL)
	}
	return &domain.ChapterPages{Pages: pages}, nil
}

// GetPageImage fetches a page. The image host rejects requests without the
// site as referer.
func (w *Webtoon) GetPageImage(ctx context.Context, _, _, _ string, page domain.Page) (*provider.PageImage, error) {
	if page.Image == "" {
		return nil, errors.Validation("page has no image url")
	}
	return w.FetchPage(ctx, page.Image, "", fetcher.WithReferer(w.site+"/"))
}
