package library

import (
	"context"
	"fmt"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// AddFromProvider fetches the full metadata of seed and adds the work.
func (l *Library) AddFromProvider(ctx context.Context, providerID string, seed domain.Seed) (*domain.Work, error) {
	p, err := l.Provider(providerID)
	if err != nil {
		return nil, err
	}
	data, err := p.GetMangaData(ctx, seed).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("get manga data: %w", err)
	}
	return l.AddWork(ctx, providerID, data)
}

// AddWork creates a work and its chapters from a provider snapshot. The
// rows are inserted in one transaction; the work directory and the cover
// are best effort and never fail the creation.
func (l *Library) AddWork(ctx context.Context, providerID string, data *domain.WorkData) (*domain.Work, error) {
	if err := validate.Validate(data); err != nil {
		return nil, err
	}
	p, info, err := l.providerInfo(providerID)
	if err != nil {
		return nil, err
	}

	w := &domain.Work{
		Slug:       data.Slug,
		URL:        data.URL,
		ProviderID: providerID,
		Name:       data.Name,
		Authors:    data.Authors,
		Scanlators: data.Scanlators,
		Genres:     data.Genres,
		Synopsis:   data.Synopsis,
		Status:     data.Status,
		LastRead:   l.now(),
	}
	if l.settings != nil && l.settings.LongStripDetection() && w.HasGenre(info.LongStripGenres) {
		w.ReadingMode = domain.ReadingModeWebtoon
		w.Scaling = domain.ScalingWidth
	}

	err = l.store.InTx(ctx, func(q *sqlite.Queries) error {
		if err := q.CreateWork(ctx, w); err != nil {
			return err
		}
		seen := make(map[string]bool, len(data.Chapters))
		rank := 0
		for _, cd := range data.Chapters {
			if seen[cd.Slug] {
				l.logger.Warn("skipping duplicate chapter", "provider", providerID, "work", w.Slug, "chapter", cd.Slug)
				continue
			}
			seen[cd.Slug] = true
			c := chapterFromData(w.ID, cd)
			c.Rank = rank
			if err := q.CreateChapter(ctx, c); err != nil {
				return err
			}
			rank++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add work %s/%s: %w", providerID, data.Slug, err)
	}

	workPath := l.WorkPath(w)
	if err := l.content.EnsureDir(workPath); err != nil {
		l.logger.Warn("failed to create work directory", "work_id", w.ID, "path", workPath, "error", err)
	}
	if data.Cover != "" {
		if err := l.saveCover(ctx, p, w, data.Cover); err != nil {
			l.logger.Warn("failed to save cover", "work_id", w.ID, "error", err)
		}
	}

	l.indexWork(w)
	l.logger.Info("work added", "work_id", w.ID, "provider", providerID, "name", w.Name, "chapters", len(data.Chapters))
	l.events.Emit(events.New(events.WorkAdded, events.WorkAddedData{Work: w}))
	return w, nil
}

func chapterFromData(workID int64, cd domain.ChapterData) *domain.Chapter {
	return &domain.Chapter{
		WorkID:     workID,
		Slug:       cd.Slug,
		URL:        cd.URL,
		Title:      cd.Title,
		Scanlators: cd.Scanlators,
		Date:       cd.Date,
	}
}

// SaveCover fetches a cover through the provider and stores it.
func (l *Library) SaveCover(ctx context.Context, w *domain.Work, url string) error {
	p, err := l.Provider(w.ProviderID)
	if err != nil {
		return err
	}
	return l.saveCover(ctx, p, w, url)
}

func (l *Library) saveCover(ctx context.Context, p provider.Provider, w *domain.Work, url string) error {
	img, err := p.GetCoverImage(ctx, url)
	if err != nil {
		return err
	}
	_, err = l.content.SaveCover(l.WorkPath(w), img.Data)
	return err
}

// Work returns the work with the given id.
func (l *Library) Work(ctx context.Context, id int64) (*domain.Work, error) {
	return l.store.GetWork(ctx, id)
}

// Works lists the library, most recently read first.
func (l *Library) Works(ctx context.Context) ([]*domain.Work, error) {
	return l.store.ListWorks(ctx)
}

// Counts returns the derived chapter counts of a work.
func (l *Library) Counts(ctx context.Context, workID int64) (sqlite.WorkCounts, error) {
	return l.store.Counts(ctx, workID)
}

// Chapters lists the chapters of w in its preferred order.
func (l *Library) Chapters(ctx context.Context, w *domain.Work) ([]*domain.Chapter, error) {
	return l.store.ListChapters(ctx, w.ID, w.SortOrder)
}

// NextChapter returns the chapter after c (dir = 1) or before it (dir = -1),
// or nil past either end.
func (l *Library) NextChapter(ctx context.Context, c *domain.Chapter, dir int) (*domain.Chapter, error) {
	return l.store.NextChapter(ctx, c.WorkID, c.Rank, dir)
}

// UpdateWork applies a partial update to a work. A name change moves the
// work directory inside the transaction so a failed move leaves the row
// unchanged.
func (l *Library) UpdateWork(ctx context.Context, id int64, fields sqlite.Row) (*domain.Work, error) {
	var updated *domain.Work
	err := l.store.InTx(ctx, func(q *sqlite.Queries) error {
		w, err := q.GetWork(ctx, id)
		if err != nil {
			return err
		}
		if err := q.UpdateWorkFields(ctx, id, fields); err != nil {
			return err
		}
		if updated, err = q.GetWork(ctx, id); err != nil {
			return err
		}
		return l.moveWorkDir(w, updated)
	})
	if err != nil {
		return nil, err
	}
	l.indexWork(updated)
	return updated, nil
}

// RenameWork changes the name of a work and moves its directory.
func (l *Library) RenameWork(ctx context.Context, id int64, name string) (*domain.Work, error) {
	if err := validate.Var(name, "required"); err != nil {
		return nil, err
	}
	return l.UpdateWork(ctx, id, sqlite.Row{"name": name})
}

// moveWorkDir moves the directory of old to where updated expects it.
func (l *Library) moveWorkDir(old, updated *domain.Work) error {
	from, to := l.WorkPath(old), l.WorkPath(updated)
	if from == to {
		return nil
	}
	if err := l.content.Move(from, to); err != nil {
		return fmt.Errorf("move work directory: %w", err)
	}
	l.logger.Info("work directory moved", "work_id", updated.ID, "from", from, "to", to)
	return nil
}

// SetLastRead stamps the work as read now.
func (l *Library) SetLastRead(ctx context.Context, id int64) error {
	return l.store.UpdateWorkFields(ctx, id, sqlite.Row{"last_read": l.now()})
}

// DeleteWorks removes works with their chapters, downloads, category links
// and directories. Background workers are paused for the duration.
func (l *Library) DeleteWorks(ctx context.Context, ids ...int64) error {
	return l.withWorkersPaused(ctx, func() error {
		var errs []error
		for _, id := range ids {
			if err := l.deleteWork(ctx, id); err != nil {
				l.logger.Error("failed to delete work", "work_id", id, "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (l *Library) deleteWork(ctx context.Context, id int64) error {
	w, err := l.store.GetWork(ctx, id)
	if err != nil {
		return err
	}
	if err := l.store.DeleteWork(ctx, id); err != nil {
		return err
	}
	if err := l.content.RemoveDir(l.WorkPath(w)); err != nil {
		l.logger.Warn("failed to remove work directory", "work_id", id, "error", err)
	}
	if l.index != nil {
		if err := l.index.DeleteWork(id); err != nil {
			l.logger.Warn("failed to remove work from index", "work_id", id, "error", err)
		}
	}
	l.logger.Info("work deleted", "work_id", id, "name", w.Name)
	l.events.Emit(events.New(events.WorkDeleted, events.WorkDeletedData{WorkID: id, Name: w.Name}))
	return nil
}
