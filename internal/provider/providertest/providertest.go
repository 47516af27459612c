// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"slices"
	"strings"
	"sync"

	"github.com/mangashelf/mangashelf/internal/codec"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/provider"
)

// PageHook runs before a page is served. A non-nil error fails the page.
type PageHook func(ctx context.Context, chapterSlug string, page domain.Page) error

var _ provider.Provider = (*Provider)(nil)

// Provider serves works, manifests and pages from memory.
type Provider struct {
	info provider.Info

	mu        sync.Mutex
	works     map[string]*domain.WorkData
	manifests map[string]*domain.ChapterPages
	cover     []byte
	pageHook  PageHook
	pageName  string
	pageData  []byte
	calls     map[string]int
	username  string
	password  string
	loggedIn  bool
	progress  []provider.ReadProgress
}

// New creates an empty provider.
func New(info provider.Info) *Provider {
	if info.Name == "" {
		info.Name = info.ID
	}
	return &Provider{
		info:      info,
		works:     make(map[string]*domain.WorkData),
		manifests: make(map[string]*domain.ChapterPages),
		cover:     PNG(color.RGBA{R: 200, A: 255}),
		calls:     make(map[string]int),
	}
}

// Factory adapts p for provider.Registry.Add.
func (p *Provider) Factory() provider.Factory {
	return func(provider.Deps) provider.Provider { return p }
}

// PNG returns a 2x2 PNG filled with c.
func PNG(c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := range 2 {
		for y := range 2 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// SetWork stores or replaces a work. ServerID defaults to the provider id.
func (p *Provider) SetWork(w domain.WorkData) {
	if w.ServerID == "" {
		w.ServerID = p.info.ID
	}
	w.Chapters = slices.Clone(w.Chapters)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.works[w.Slug] = &w
}

// SetChapters replaces the chapter list of a stored work.
func (p *Provider) SetChapters(workSlug string, chapters ...domain.ChapterData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.works[workSlug]; ok {
		w.Chapters = slices.Clone(chapters)
	}
}

// RemoveWork makes a slug resolve to not-found.
func (p *Provider) RemoveWork(slug string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.works, slug)
}

// SetPages sets the manifest of a chapter.
func (p *Provider) SetPages(chapterSlug string, pages []domain.Page, scrambled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manifests[chapterSlug] = &domain.ChapterPages{Pages: slices.Clone(pages), Scrambled: scrambled}
}

// SetPageHook installs a hook run before every page is served.
func (p *Provider) SetPageHook(h PageHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageHook = h
}

// SetPageImage makes every page serve data under name. Empty values restore
// the generated PNG and its hashed name.
func (p *Provider) SetPageImage(name string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageName, p.pageData = name, data
}

// SetCover sets the cover bytes; nil makes covers fail.
func (p *Provider) SetCover(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cover = data
}

// SetCredentials sets the account Login accepts.
func (p *Provider) SetCredentials(username, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.username, p.password = username, password
}

// Calls returns how many times method was called.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// Progress returns the read progress forwarded so far.
func (p *Provider) Progress() []provider.ReadProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.progress)
}

func (p *Provider) record(method string) {
	p.mu.Lock()
	p.calls[method]++
	p.mu.Unlock()
}

// Info returns the provider metadata.
func (p *Provider) Info() provider.Info {
	return p.info
}

// Search matches term against work names, case-insensitively.
func (p *Provider) Search(ctx context.Context, term string, _ provider.Values) ([]domain.SearchResult, error) {
	p.record("Search")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []domain.SearchResult{}
	for _, slug := range p.sortedSlugs() {
		w := p.works[slug]
		if strings.Contains(strings.ToLower(w.Name), strings.ToLower(term)) {
			out = append(out, domain.SearchResult{Slug: w.Slug, Name: w.Name, Cover: w.Cover})
		}
	}
	return out, nil
}

// MostPopulars lists every work.
func (p *Provider) MostPopulars(ctx context.Context, filters provider.Values) ([]domain.SearchResult, error) {
	return p.Search(ctx, "", filters)
}

func (p *Provider) sortedSlugs() []string {
	slugs := make([]string, 0, len(p.works))
	for s := range p.works {
		slugs = append(slugs, s)
	}
	slices.Sort(slugs)
	return slugs
}

// GetMangaData returns a copy of the stored work.
func (p *Provider) GetMangaData(ctx context.Context, seed domain.Seed) provider.MangaResult {
	p.record("GetMangaData")
	if err := ctx.Err(); err != nil {
		return provider.Failed(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.works[seed.Slug]
	if !ok {
		return provider.NotFound(seed.Slug)
	}
	cp := *w
	cp.Chapters = slices.Clone(w.Chapters)
	cp.Authors = slices.Clone(w.Authors)
	cp.Genres = slices.Clone(w.Genres)
	return provider.OK(&cp)
}

// GetChapterData returns the stored manifest.
func (p *Provider) GetChapterData(ctx context.Context, _, _, chapterSlug, _ string) (*domain.ChapterPages, error) {
	p.record("GetChapterData")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.manifests[chapterSlug]
	if !ok {
		return nil, errors.NotFoundf("chapter %q not found", chapterSlug)
	}
	return &domain.ChapterPages{Pages: slices.Clone(m.Pages), Scrambled: m.Scrambled}, nil
}

// GetPageImage serves a PNG for any page.
func (p *Provider) GetPageImage(ctx context.Context, _, _, chapterSlug string, page domain.Page) (*provider.PageImage, error) {
	p.record("GetPageImage")
	p.mu.Lock()
	hook, name, data := p.pageHook, p.pageName, p.pageData
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, chapterSlug, page); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := page.Image + page.Slug
	img := &provider.PageImage{
		Data:      PNG(color.RGBA{G: uint8(len(key)), A: 255}),
		MediaType: "image/png",
		Name:      provider.HashedName(key, "image/png"),
	}
	if data != nil {
		img.Data, img.MediaType = data, codec.MediaType(data)
	}
	if name != "" {
		img.Name = name
	}
	return img, nil
}

// GetCoverImage serves the configured cover.
func (p *Provider) GetCoverImage(ctx context.Context, _ string) (*provider.PageImage, error) {
	p.record("GetCoverImage")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cover == nil {
		return nil, errors.NotFound("no cover")
	}
	return &provider.PageImage{Data: p.cover, MediaType: "image/png", Name: "cover.png"}, nil
}

// GetMangaURL returns a fake public URL.
func (p *Provider) GetMangaURL(slug, url string) string {
	if url != "" {
		return url
	}
	return "https://example.test/" + p.info.ID + "/" + slug
}

// Login accepts the configured credentials.
func (p *Provider) Login(_ context.Context, username, password, _ string) (bool, error) {
	p.record("Login")
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.info.HasLogin {
		return false, errors.Unsupported(p.info.ID + " has no login")
	}
	p.loggedIn = username != "" && username == p.username && password == p.password
	return p.loggedIn, nil
}

// UpdateChapterReadProgress records progress.
func (p *Provider) UpdateChapterReadProgress(_ context.Context, progress provider.ReadProgress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, progress)
	return nil
}
