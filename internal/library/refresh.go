package library

import (
	"context"
	"fmt"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Work *domain.Work
	// Recent holds the ids of chapters that appeared.
	Recent  []int64
	Deleted int
	// Synced is set when the provider reported reading progress that
	// differs from the local one.
	Synced bool
}

// Refresh reconciles a work with the provider's current metadata.
//
// Chapters gone from the provider are deleted unless they are downloaded
// or the provider keeps slugs addressable forever; kept chapters hold on
// to their rank, and the provider's chapters are ranked around them in
// provider order. A failed lookup or an invalid snapshot leaves the work
// untouched.
func (l *Library) Refresh(ctx context.Context, w *domain.Work) (*RefreshResult, error) {
	p, info, err := l.providerInfo(w.ProviderID)
	if err != nil {
		return nil, err
	}
	data, err := p.GetMangaData(ctx, domain.SeedOf(w)).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("get manga data: %w", err)
	}
	if err := validate.Validate(data); err != nil {
		return nil, err
	}

	res := &RefreshResult{
		Synced: info.Sync && data.LastRead != nil && !data.LastRead.Equal(w.LastRead),
	}
	if data.Cover != "" {
		if err := l.saveCover(ctx, p, w, data.Cover); err != nil {
			l.logger.Warn("failed to refresh cover", "work_id", w.ID, "error", err)
		}
	}

	var removed []*domain.Chapter
	err = l.store.InTx(ctx, func(q *sqlite.Queries) error {
		existing, err := q.ListChapters(ctx, w.ID, domain.SortRankAsc)
		if err != nil {
			return err
		}
		fresh := uniqueChapters(data.Chapters)
		inFresh := make(map[string]bool, len(fresh))
		for _, cd := range fresh {
			inFresh[cd.Slug] = true
		}

		bySlug := make(map[string]*domain.Chapter, len(existing))
		reserved := make(map[int]bool)
		for _, c := range existing {
			if inFresh[c.Slug] {
				bySlug[c.Slug] = c
				continue
			}
			if !c.Downloaded && !info.PreservesSlugsForever {
				if err := q.DeleteChapter(ctx, c.ID); err != nil {
					return err
				}
				removed = append(removed, c)
				continue
			}
			reserved[c.Rank] = true
		}

		rank := 0
		for _, cd := range fresh {
			rank = nextFree(rank, reserved)
			if c, ok := bySlug[cd.Slug]; ok {
				c.Title = cd.Title
				c.URL = cd.URL
				c.Date = cd.Date
				c.Scanlators = cd.Scanlators
				c.Rank = rank
				if err := q.UpdateChapter(ctx, c); err != nil {
					return err
				}
			} else {
				c := chapterFromData(w.ID, cd)
				c.Rank = rank
				c.Recent = true
				if err := q.CreateChapter(ctx, c); err != nil {
					return err
				}
				res.Recent = append(res.Recent, c.ID)
			}
			rank++
		}

		updated := *w
		if data.URL != "" {
			updated.URL = data.URL
		}
		updated.Name = data.Name
		updated.Authors = data.Authors
		updated.Scanlators = data.Scanlators
		updated.Genres = data.Genres
		updated.Synopsis = data.Synopsis
		updated.Status = data.Status
		if res.Synced {
			updated.LastRead = *data.LastRead
		}
		if len(res.Recent) > 0 || len(removed) > 0 {
			now := l.now()
			updated.LastUpdate = &now
		}
		if err := q.UpdateWork(ctx, &updated); err != nil {
			return err
		}
		if err := l.moveWorkDir(w, &updated); err != nil {
			return err
		}
		res.Work = &updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh work %d: %w", w.ID, err)
	}

	res.Deleted = len(removed)
	for _, c := range removed {
		if err := l.content.RemoveDir(l.ChapterPath(res.Work, c)); err != nil {
			l.logger.Warn("failed to remove chapter directory", "chapter_id", c.ID, "error", err)
		}
	}
	l.indexWork(res.Work)
	*w = *res.Work
	return res, nil
}

// nextFree returns the smallest rank >= r that is not reserved.
func nextFree(r int, reserved map[int]bool) int {
	for reserved[r] {
		r++
	}
	return r
}

// uniqueChapters drops repeated slugs, keeping the first occurrence.
func uniqueChapters(chapters []domain.ChapterData) []domain.ChapterData {
	seen := make(map[string]bool, len(chapters))
	out := make([]domain.ChapterData, 0, len(chapters))
	for _, c := range chapters {
		if seen[c.Slug] {
			continue
		}
		seen[c.Slug] = true
		out = append(out, c)
	}
	return out
}
