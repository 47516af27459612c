// Package madara implements sites built on the Madara WordPress theme.
package madara

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
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

const (
	searchResultSelector = "div.c-tabs-item__content, div.page-item-detail"
	titleSelector        = "div.post-title h3 a, div.post-title h5 a"
	chapterSelector      = "li.wp-manga-chapter"
	pageSelector         = "div.page-break source, div.page-break img, .reading-content img"
)

// Config describes one Madara site.
type Config struct {
	provider.Info
	// DateLayout parses absolute chapter release dates.
	DateLayout string
	// MangaPath is the directory works live under, "manga" by default.
	MangaPath string
}

var sites = []Config{
	{
		Info: provider.Info{
			ID: "toonily", Name: "Toonily", Lang: "en", BaseURL: "https://toonily.com",
			LongStripGenres: []string{"Webtoon", "Manhwa", "Manhua"}, HasMostPopulars: true,
		},
		DateLayout: "Jan 2, 06",
		MangaPath:  "serie",
	},
	{
		Info: provider.Info{
			ID: "mangaread", Name: "MangaRead", Lang: "en", BaseURL: "https://www.mangaread.org",
			HasMostPopulars: true,
		},
		DateLayout: "02.01.2006",
	},
}

func init() {
	for _, cfg := range sites {
		provider.Register(cfg.Info, func(deps provider.Deps) provider.Provider {
			return New(deps, cfg)
		})
	}
}

// Madara scrapes a Madara site.
type Madara struct {
	*provider.Base
	cfg Config
}

// New creates a provider for one Madara site.
func New(deps provider.Deps, cfg Config) *Madara {
	if cfg.MangaPath == "" {
		cfg.MangaPath = "manga"
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = "January 2, 2006"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Madara{
		Base: provider.NewBase(cfg.Info, deps, fetcher.SessionConfig{
			Headers: map[string]string{
				"Accept-Language": "en-US,en;q=0.9",
			},
		}),
		cfg: cfg,
	}
}

// document fetches rawURL, passing an anti-bot challenge once when a
// browser is available.
func (m *Madara) document(ctx context.Context, do func() (*fetcher.Response, error)) (*goquery.Document, error) {
	resp, err := do()
	if err != nil && resp != nil && provider.IsChallenge(resp.StatusCode, resp.Header, resp.Body) {
		passed, perr := m.PassChallenge(ctx, resp.URL.String())
		if perr != nil {
			return nil, errors.Wrap(perr, errors.CodeNetwork, "pass challenge")
		}
		if passed {
			resp, err = do()
		}
	}
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, errors.Parsef("parse %s: %v", resp.URL, err)
	}
	return doc, nil
}

func (m *Madara) get(ctx context.Context, rawURL string, opts ...fetcher.RequestOption) (*goquery.Document, error) {
	return m.document(ctx, func() (*fetcher.Response, error) {
		return m.Session().Get(ctx, rawURL, opts...)
	})
}

func (m *Madara) mangaURL(slug string) string {
	return m.cfg.BaseURL + "/" + m.cfg.MangaPath + "/" + slug + "/"
}

// GetMangaURL returns the work page.
func (m *Madara) GetMangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return m.mangaURL(slug)
}

// Search uses the theme's search page.
func (m *Madara) Search(ctx context.Context, term string, _ provider.Values) ([]domain.SearchResult, error) {
	q := url.Values{"s": {term}, "post_type": {"wp-manga"}}
	doc, err := m.get(ctx, m.cfg.BaseURL+"/", fetcher.WithQuery(q))
	if err != nil {
		return nil, err
	}
	return m.results(doc), nil
}

// MostPopulars lists works ordered by views.
func (m *Madara) MostPopulars(ctx context.Context, _ provider.Values) ([]domain.SearchResult, error) {
	q := url.Values{"m_orderby": {"views"}}
	doc, err := m.get(ctx, m.cfg.BaseURL+"/"+m.cfg.MangaPath+"/", fetcher.WithQuery(q))
	if err != nil {
		return nil, err
	}
	return m.results(doc), nil
}

func (m *Madara) results(doc *goquery.Document) []domain.SearchResult {
	out := []domain.SearchResult{}
	doc.Find(searchResultSelector).Each(func(_ int, item *goquery.Selection) {
		a := item.Find(titleSelector).First()
		slug := m.slugFromURL(a.AttrOr("href", ""))
		if slug == "" {
			return
		}
		out = append(out, domain.SearchResult{
			Slug:  slug,
			Name:  strings.TrimSpace(a.Text()),
			Cover: imageSource(item.Find("img").First()),
		})
	})
	return out
}

// slugFromURL extracts the work slug from an absolute or relative work URL.
func (m *Madara) slugFromURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == m.cfg.MangaPath && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// GetMangaData scrapes the work page and its chapter list.
func (m *Madara) GetMangaData(ctx context.Context, seed domain.Seed) provider.MangaResult {
	doc, err := m.get(ctx, m.mangaURL(seed.Slug))
	if err != nil {
		return provider.FromError(seed.Slug, err)
	}
	if doc.Find("div.post-title").Length() == 0 {
		return provider.NotFound(seed.Slug)
	}

	work := &domain.WorkData{
		Slug:       seed.Slug,
		Name:       strings.TrimSpace(doc.Find("div.post-title h1").First().Text()),
		Authors:    texts(doc.Find(".author-content a, .artist-content a")),
		Genres:     texts(doc.Find(".genres-content a")),
		Scanlators: []string{},
		ServerID:   m.Info().ID,
		Cover:      imageSource(doc.Find("div.summary_image img").First()),
	}
	if work.Name == "" {
		work.Name = seed.Name
	}
	if html, err := doc.Find("div.description-summary div.summary__content, div.summary__content").First().Html(); err == nil {
		work.Synopsis = provider.Synopsis(strings.TrimSpace(html))
	}
	doc.Find("div.post-content_item").Each(func(_ int, item *goquery.Selection) {
		heading := strings.ToLower(strings.TrimSpace(item.Find(".summary-heading").Text()))
		if strings.Contains(heading, "status") {
			work.Status = domain.ParseStatus(strings.TrimSpace(item.Find(".summary-content").Text()))
		}
	})

	items := doc.Find(chapterSelector)
	if items.Length() == 0 {
		items, err = m.ajaxChapters(ctx, seed.Slug, doc)
		if err != nil {
			return provider.Failed(err)
		}
	}
	work.Chapters = m.chapters(seed.Slug, items)
	return provider.OK(work)
}

// ajaxChapters loads the chapter list the way the theme's script does:
// the per-work endpoint first, then admin-ajax with the post id.
func (m *Madara) ajaxChapters(ctx context.Context, slug string, page *goquery.Document) (*goquery.Selection, error) {
	xhr := fetcher.WithHeader("X-Requested-With", "XMLHttpRequest")
	doc, err := m.document(ctx, func() (*fetcher.Response, error) {
		return m.Session().PostForm(ctx, m.mangaURL(slug)+"ajax/chapters/", url.Values{}, xhr)
	})
	if err == nil && doc.Find(chapterSelector).Length() > 0 {
		return doc.Find(chapterSelector), nil
	}

	postID, ok := page.Find("#manga-chapters-holder").Attr("data-id")
	if !ok {
		postID, ok = page.Find("input.rating-post-id").Attr("value")
	}
	if !ok {
		if err != nil {
			return nil, err
		}
		return doc.Find(chapterSelector), nil
	}
	form := url.Values{"action": {"manga_get_chapters"}, "manga": {postID}}
	doc, err = m.document(ctx, func() (*fetcher.Response, error) {
		return m.Session().PostForm(ctx, m.cfg.BaseURL+"/wp-admin/admin-ajax.php", form, xhr)
	})
	if err != nil {
		return nil, err
	}
	return doc.Find(chapterSelector), nil
}

// chapters converts the newest-first list into oldest-first chapter data.
func (m *Madara) chapters(workSlug string, items *goquery.Selection) []domain.ChapterData {
	prefix := m.mangaURL(workSlug)
	out := []domain.ChapterData{}
	items.Each(func(_ int, item *goquery.Selection) {
		a := item.Find("a").First()
		href := a.AttrOr("href", "")
		slug := strings.Trim(strings.TrimPrefix(href, prefix), "/")
		if slug == "" || strings.Contains(slug, "://") {
			return
		}
		c := domain.ChapterData{
			Slug:  slug,
			Title: strings.Join(strings.Fields(a.Text()), " "),
			URL:   href,
		}
		if d, ok := m.parseDate(strings.TrimSpace(item.Find(".chapter-release-date").Text()), time.Now()); ok {
			c.Date = &d
		}
		out = append(out, c)
	})
	slices.Reverse(out)
	return out
}

var relativeDate = regexp.MustCompile(`(?i)^(\d+)\s+(second|min|minute|hour|day|week|month|year)s?\s+ago$`)

// parseDate reads an absolute or "N units ago" release date.
func (m *Madara) parseDate(s string, now time.Time) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(m.cfg.DateLayout, s); err == nil {
		return domain.DateOnly(t), true
	}
	match := relativeDate.FindStringSubmatch(s)
	if match == nil {
		return time.Time{}, false
	}
	n, _ := strconv.Atoi(match[1])
	var t time.Time
	switch strings.ToLower(match[2]) {
	case "second", "min", "minute", "hour":
		t = now
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	case "year":
		t = now.AddDate(-n, 0, 0)
	}
	return domain.DateOnly(t), true
}

// GetChapterData scrapes page image URLs in reading order.
func (m *Madara) GetChapterData(ctx context.Context, workSlug, _, chapterSlug, chapterURL string) (*domain.ChapterPages, error) {
	if chapterURL == "" {
		chapterURL = m.mangaURL(workSlug) + chapterSlug + "/"
	}
	doc, err := m.get(ctx, chapterURL, fetcher.WithQuery(url.Values{"style": {"list"}}))
	if err != nil {
		return nil, err
	}
	pages := []domain.Page{}
	doc.Find(pageSelector).Each(func(_ int, img *goquery.Selection) {
		if src := imageSource(img); src != "" {
			pages = append(pages, domain.Page{Image: src})
		}
	})
	if len(pages) == 0 {
		return nil, errors.Parsef("no pages found in %s", chapterURL)
	}
	return &domain.ChapterPages{Pages: pages}, nil
}

// GetPageImage fetches a page with the chapter as referer.
func (m *Madara) GetPageImage(ctx context.Context, workSlug, _, chapterSlug string, page domain.Page) (*provider.PageImage, error) {
	if page.Image == "" {
		return nil, errors.Validation("page has no image url")
	}
	return m.FetchPage(ctx, page.Image, "", fetcher.WithReferer(m.mangaURL(workSlug)+chapterSlug+"/"))
}

// imageSource reads the lazy-loading attributes the theme uses before src.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "srcset", "src"} {
		v := strings.TrimSpace(img.AttrOr(attr, ""))
		if v == "" {
			continue
		}
		if attr == "srcset" {
			fields := strings.Fields(strings.Split(v, ",")[0])
			if len(fields) == 0 {
				continue
			}
			v = fields[0]
		}
		return v
	}
	return ""
}

func texts(sel *goquery.Selection) []string {
	out := []string{}
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	})
	return out
}
