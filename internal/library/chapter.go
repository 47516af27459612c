package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mangashelf/mangashelf/internal/codec"
	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// Chapter returns the chapter with the given id.
func (l *Library) Chapter(ctx context.Context, id int64) (*domain.Chapter, error) {
	return l.store.GetChapter(ctx, id)
}

// ChapterWork returns c's work.
func (l *Library) ChapterWork(ctx context.Context, c *domain.Chapter) (*domain.Work, error) {
	return l.store.GetWork(ctx, c.WorkID)
}

// UpdateFull makes sure c has a page manifest, fetching it from the
// provider when missing. An empty manifest is an error.
func (l *Library) UpdateFull(ctx context.Context, c *domain.Chapter) error {
	if len(c.Pages) > 0 {
		return nil
	}
	w, err := l.ChapterWork(ctx, c)
	if err != nil {
		return err
	}
	p, err := l.Provider(w.ProviderID)
	if err != nil {
		return err
	}
	data, err := p.GetChapterData(ctx, w.Slug, w.Name, c.Slug, c.URL)
	if err != nil {
		return fmt.Errorf("get chapter data: %w", err)
	}
	if data == nil || len(data.Pages) == 0 {
		return errors.Parsef("chapter %q has no pages", c.Slug)
	}

	pages := slices.Clone(data.Pages)
	for i := range pages {
		pages[i].Filename = ""
		pages[i].Read = false
	}
	if err := l.store.UpdateChapterFields(ctx, c.ID, sqlite.Row{
		"pages":     pages,
		"scrambled": data.Scrambled,
	}); err != nil {
		return err
	}
	c.Pages = pages
	c.Scrambled = data.Scrambled
	return nil
}

// PageOnDisk reports whether page index of c is stored in its directory.
func (l *Library) PageOnDisk(w *domain.Work, c *domain.Chapter, index int) bool {
	if index < 0 || index >= len(c.Pages) {
		return false
	}
	return l.content.FileExists(l.ChapterPath(w, c), c.Pages[index].Filename)
}

// GetPage returns the local path of page index of c, fetching the page
// through the provider when it is not on disk yet. Once every page is
// stored the chapter is flagged downloaded.
func (l *Library) GetPage(ctx context.Context, c *domain.Chapter, index int) (string, error) {
	if err := c.ValidatePageIndex(index); err != nil {
		return "", err
	}
	w, err := l.ChapterWork(ctx, c)
	if err != nil {
		return "", err
	}
	dir := l.ChapterPath(w, c)
	page := c.Pages[index]
	if l.content.FileExists(dir, page.Filename) {
		return filepath.Join(dir, page.Filename), nil
	}

	name, mediaType, data, err := l.fetchPage(ctx, w, c, index)
	if err != nil {
		return "", err
	}
	if err := l.content.EnsureDir(dir); err != nil {
		return "", err
	}
	return l.storePage(ctx, c, index, dir, name, mediaType, data)
}

// ReadPage returns page index of c ready for display, fetching it first
// when needed. Image margins are trimmed when the work, or the global
// default, asks for it; the stored file is left as is.
func (l *Library) ReadPage(ctx context.Context, c *domain.Chapter, index int) ([]byte, string, error) {
	path, err := l.GetPage(ctx, c, index)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.CodeFilesystem, "read page")
	}
	mediaType := codec.MediaType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return data, mediaType, nil
	}

	w, err := l.ChapterWork(ctx, c)
	if err != nil {
		return nil, "", err
	}
	if !l.bordersCrop(w) {
		return data, mediaType, nil
	}
	img, err := codec.Decode(data)
	if err != nil {
		return nil, "", err
	}
	cropped := codec.CropBorders(img)
	if cropped.Bounds() == img.Bounds() {
		return data, mediaType, nil
	}
	out, err := codec.EncodeJPEG(cropped)
	if err != nil {
		return nil, "", err
	}
	return out, "image/jpeg", nil
}

func (l *Library) bordersCrop(w *domain.Work) bool {
	if w.BordersCrop != nil {
		return *w.BordersCrop
	}
	return l.settings != nil && l.settings.BordersCrop()
}

// fetchPage realizes a page to bytes and picks its file name.
func (l *Library) fetchPage(ctx context.Context, w *domain.Work, c *domain.Chapter, index int) (string, string, []byte, error) {
	page := c.Pages[index]
	if page.Text != "" && page.Image == "" && page.Slug == "" {
		return fmt.Sprintf("%03d.txt", index+1), "text/plain", []byte(page.Text), nil
	}

	p, err := l.Provider(w.ProviderID)
	if err != nil {
		return "", "", nil, err
	}
	img, err := p.GetPageImage(ctx, w.Slug, w.Name, c.Slug, page)
	if err != nil {
		return "", "", nil, fmt.Errorf("get page %d: %w", index, err)
	}
	if img == nil || len(img.Data) == 0 {
		return "", "", nil, errors.Decodef("page %d of %q is empty", index, c.Slug)
	}

	data, mediaType, err := codec.Normalize(img.Data)
	if err != nil {
		return "", "", nil, err
	}
	if c.Scrambled {
		if data, err = codec.DescramblePage(img.Data, data, page.Key); err != nil {
			return "", "", nil, err
		}
		mediaType = "image/jpeg"
	}

	name := img.Name
	if name == "" {
		name = provider.IndexedName(index, mediaType)
	}
	return provider.WithExtension(name, mediaType), mediaType, data, nil
}

// storePage writes a fetched page under a name no other page of c uses,
// records it in the manifest and flags the chapter downloaded when the
// directory holds every page. A downloaded chapter has no download row, so
// a queued one is removed.
func (l *Library) storePage(ctx context.Context, c *domain.Chapter, index int, dir, name, mediaType string, data []byte) (string, error) {
	l.pagesMu.Lock()
	defer l.pagesMu.Unlock()

	var (
		path     string
		dequeued int64
	)
	err := l.store.InTx(ctx, func(q *sqlite.Queries) error {
		current, err := q.GetChapter(ctx, c.ID)
		if err != nil {
			return err
		}
		pages := current.Pages
		if len(pages) != len(c.Pages) {
			pages = slices.Clone(c.Pages)
		}

		name = uniquePageName(pages, index, contentstore.SafeName(name), mediaType)
		if path, err = l.content.WritePage(dir, name, data); err != nil {
			return err
		}
		pages[index].Filename = filepath.Base(path)

		n, err := l.content.CountFiles(dir)
		if err != nil {
			return err
		}
		downloaded := n == len(pages)

		fields := sqlite.Row{"pages": pages}
		if downloaded {
			fields["downloaded"] = true
		}
		if err := q.UpdateChapterFields(ctx, c.ID, fields); err != nil {
			return err
		}
		if downloaded {
			if dequeued, err = q.DeleteDownloadsByChapter(ctx, []int64{c.ID}); err != nil {
				return err
			}
		}
		c.Pages = pages
		c.Downloaded = c.Downloaded || downloaded
		return nil
	})
	if err != nil {
		return "", err
	}
	if dequeued > 0 {
		l.events.Emit(events.New(events.DownloadChanged, events.DownloadChangedData{ChapterID: c.ID}))
	}
	return path, nil
}

// uniquePageName returns name unless another page of the manifest already
// uses it, then the page's indexed name, then a name hashed from both.
func uniquePageName(pages []domain.Page, index int, name, mediaType string) string {
	taken := func(n string) bool {
		for i, p := range pages {
			if i != index && p.Filename == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	if indexed := provider.IndexedName(index, mediaType); !taken(indexed) {
		return indexed
	}
	return provider.HashedName(fmt.Sprintf("%d/%s", index, name), mediaType)
}

// ResetChapters removes the files of each chapter and forgets its manifest,
// download and read state.
func (l *Library) ResetChapters(ctx context.Context, ids ...int64) error {
	var errs []error
	for _, id := range ids {
		if err := l.resetChapter(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("reset chapter %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (l *Library) resetChapter(ctx context.Context, id int64) error {
	c, err := l.store.GetChapter(ctx, id)
	if err != nil {
		return err
	}
	w, err := l.ChapterWork(ctx, c)
	if err != nil {
		return err
	}
	if err := l.content.RemoveDir(l.ChapterPath(w, c)); err != nil {
		return err
	}
	return l.store.InTx(ctx, func(q *sqlite.Queries) error {
		return q.UpdateChapterFields(ctx, id, sqlite.Row{
			"pages":                nil,
			"downloaded":           false,
			"read":                 false,
			"last_page_read_index": nil,
		})
	})
}

// MarkChaptersRead sets the read flag of chapters and clears their recent
// flag. Providers that sync progress upstream are told.
func (l *Library) MarkChaptersRead(ctx context.Context, read bool, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	fields := sqlite.Row{"read": read, "recent": false}
	if !read {
		fields["last_page_read_index"] = nil
	}
	rows := make([]sqlite.Row, len(ids))
	for i := range rows {
		rows[i] = fields
	}
	if err := l.store.UpdateRows(ctx, "chapters", ids, rows); err != nil {
		return err
	}

	for _, id := range ids {
		c, err := l.store.GetChapter(ctx, id)
		if err != nil {
			return err
		}
		l.forwardProgress(ctx, c, -1, read)
	}
	return nil
}

// SetReadProgress records that page index of c was viewed. Viewing the last
// page marks the chapter read.
func (l *Library) SetReadProgress(ctx context.Context, c *domain.Chapter, index int) error {
	if err := c.ValidatePageIndex(index); err != nil {
		return err
	}
	l.pagesMu.Lock()
	defer l.pagesMu.Unlock()

	read := c.Read || index == len(c.Pages)-1
	err := l.store.InTx(ctx, func(q *sqlite.Queries) error {
		current, err := q.GetChapter(ctx, c.ID)
		if err != nil {
			return err
		}
		pages := current.Pages
		if len(pages) != len(c.Pages) {
			pages = slices.Clone(c.Pages)
		}
		pages[index].Read = true
		if err := q.UpdateChapterFields(ctx, c.ID, sqlite.Row{
			"pages":                pages,
			"last_page_read_index": &index,
			"read":                 read,
			"recent":               false,
		}); err != nil {
			return err
		}
		if err := q.UpdateWorkFields(ctx, c.WorkID, sqlite.Row{"last_read": l.now()}); err != nil {
			return err
		}
		c.Pages = pages
		return nil
	})
	if err != nil {
		return err
	}
	c.LastPageReadIndex = &index
	c.Read = read
	c.Recent = false
	l.forwardProgress(ctx, c, index, read)
	return nil
}

// forwardProgress hands reading progress to the provider. Failures are
// logged; the local state is authoritative.
func (l *Library) forwardProgress(ctx context.Context, c *domain.Chapter, index int, read bool) {
	w, err := l.ChapterWork(ctx, c)
	if err != nil {
		return
	}
	p, err := l.Provider(w.ProviderID)
	if err != nil {
		return
	}
	err = p.UpdateChapterReadProgress(ctx, provider.ReadProgress{
		WorkSlug:    w.Slug,
		ChapterSlug: c.Slug,
		PageIndex:   index,
		Read:        read,
	})
	if err != nil && !errors.Is(err, errors.ErrUnsupported) {
		l.logger.Warn("failed to sync read progress", "provider", w.ProviderID, "chapter_id", c.ID, "error", err)
	}
}
