package library

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// ReconcilePath is called when path disappeared from the content store. It
// clears the downloaded flag of every chapter stored at or below path whose
// pages are no longer all on disk, and returns how many were changed.
func (l *Library) ReconcilePath(ctx context.Context, path string) (int, error) {
	path = filepath.Clean(path)
	works, err := l.store.ListWorks(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, w := range works {
		workPath := l.WorkPath(w)
		whole := within(workPath, path)
		if !whole && !within(path, workPath) {
			continue
		}
		n, err := l.clearMissing(ctx, w, func(c *domain.Chapter) bool {
			return whole || within(l.ChapterPath(w, c), path)
		})
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// VerifyDownloads checks every downloaded chapter against the content store
// and clears the flag of those with missing pages.
func (l *Library) VerifyDownloads(ctx context.Context) (int, error) {
	works, err := l.store.ListWorks(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, w := range works {
		n, err := l.clearMissing(ctx, w, func(*domain.Chapter) bool { return true })
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		l.logger.Warn("downloaded chapters with missing pages", "count", total)
	}
	return total, nil
}

func (l *Library) clearMissing(ctx context.Context, w *domain.Work, match func(*domain.Chapter) bool) (int, error) {
	chapters, err := l.store.ListDownloadedChapters(ctx, w.ID)
	if err != nil {
		return 0, err
	}
	var ids []int64
	var rows []sqlite.Row
	var changed []*domain.Chapter
	for _, c := range chapters {
		if !match(c) {
			continue
		}
		n, err := l.content.CountFiles(l.ChapterPath(w, c))
		if err != nil {
			return 0, err
		}
		if n >= len(c.Pages) && len(c.Pages) > 0 {
			continue
		}
		ids = append(ids, c.ID)
		rows = append(rows, sqlite.Row{"downloaded": false})
		c.Downloaded = false
		changed = append(changed, c)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := l.store.UpdateRows(ctx, "chapters", ids, rows); err != nil {
		return 0, err
	}
	for _, c := range changed {
		l.logger.Info("chapter files missing, marked not downloaded", "work_id", w.ID, "chapter_id", c.ID)
		l.events.Emit(events.New(events.DownloadChanged, events.DownloadChangedData{Chapter: c, ChapterID: c.ID}))
	}
	return len(ids), nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
