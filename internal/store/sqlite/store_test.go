package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, logger.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestWork(t *testing.T, s *Store, slug string) *domain.Work {
	t.Helper()
	w := &domain.Work{
		Slug:       slug,
		ProviderID: "mangadex",
		Name:       "Work " + slug,
		Authors:    []string{"Mad Snail"},
		Genres:     []string{"Action", "Fantasy"},
		Status:     domain.StatusOngoing,
		LastRead:   time.Now(),
	}
	if err := s.CreateWork(context.Background(), w); err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	return w
}

func makeTestChapters(t *testing.T, s *Store, workID int64, slugs ...string) []*domain.Chapter {
	t.Helper()
	out := make([]*domain.Chapter, 0, len(slugs))
	for i, slug := range slugs {
		c := &domain.Chapter{WorkID: workID, Slug: slug, Title: "Chapter " + slug, Rank: i}
		if err := s.CreateChapter(context.Background(), c); err != nil {
			t.Fatalf("CreateChapter(%s): %v", slug, err)
		}
		out = append(out, c)
	}
	return out
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"works", "chapters", "downloads", "categories", "categories_works"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	if s.SchemaVersion() != 2 {
		t.Errorf("schema version: got %d, want 2", s.SchemaVersion())
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w := &domain.Work{Slug: "s", ProviderID: "p", Name: "n", LastRead: time.Now()}
	if err := s.CreateWork(context.Background(), w); err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	s.Close()

	s, err = Open(dbPath, logger.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetWork(context.Background(), w.ID); err != nil {
		t.Errorf("work lost across reopen: %v", err)
	}
}

func TestWork_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	crop := true
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	w := &domain.Work{
		Slug:            "tales-of-demons",
		URL:             "https://example.org/title/tod",
		ProviderID:      "mangadex",
		Name:            "Tales of Demons and Gods",
		Authors:         []string{"Mad Snail"},
		Scanlators:      []string{"Team A", "Team B"},
		Genres:          []string{"Action"},
		Synopsis:        "A story.",
		Status:          domain.StatusComplete,
		BackgroundColor: "black",
		BordersCrop:     &crop,
		ReadingMode:     domain.ReadingModeWebtoon,
		Scaling:         domain.ScalingWidth,
		SortOrder:       domain.SortRankDesc,
		LastRead:        time.Date(2024, 6, 1, 8, 30, 0, 123, time.UTC),
		LastUpdate:      &updated,
	}
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	if w.ID == 0 {
		t.Fatal("expected an id")
	}

	got, err := s.GetWorkBySlug(ctx, "mangadex", "tales-of-demons")
	if err != nil {
		t.Fatalf("GetWorkBySlug: %v", err)
	}
	if got.Name != w.Name || got.URL != w.URL || got.Status != w.Status || got.Synopsis != w.Synopsis {
		t.Errorf("scalar fields differ: %+v", got)
	}
	if len(got.Scanlators) != 2 || got.Scanlators[1] != "Team B" {
		t.Errorf("Scanlators: got %v", got.Scanlators)
	}
	if got.BordersCrop == nil || !*got.BordersCrop {
		t.Errorf("BordersCrop: got %v", got.BordersCrop)
	}
	if got.ReadingMode != domain.ReadingModeWebtoon || got.Scaling != domain.ScalingWidth || got.SortOrder != domain.SortRankDesc {
		t.Errorf("preferences differ: %+v", got)
	}
	if !got.LastRead.Equal(w.LastRead) {
		t.Errorf("LastRead: got %v, want %v", got.LastRead, w.LastRead)
	}
	if got.LastUpdate == nil || !got.LastUpdate.Equal(updated) {
		t.Errorf("LastUpdate: got %v", got.LastUpdate)
	}
}

func TestWork_UniqueNaturalKey(t *testing.T) {
	s := newTestStore(t)
	makeTestWork(t, s, "dup")

	err := s.CreateWork(context.Background(), &domain.Work{Slug: "dup", ProviderID: "mangadex", Name: "again", LastRead: time.Now()})
	if !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWork_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetWork(ctx, 42); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetWork: expected not found, got %v", err)
	}
	if err := s.DeleteWork(ctx, 42); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteWork: expected not found, got %v", err)
	}
}

func TestListWorks_OrderedByLastRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, slug := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{-2 * time.Hour, 0, -time.Hour}
		w := &domain.Work{Slug: slug, ProviderID: "p", Name: slug, LastRead: now.Add(offsets[i])}
		if err := s.CreateWork(ctx, w); err != nil {
			t.Fatalf("CreateWork: %v", err)
		}
	}

	works, err := s.ListWorks(ctx)
	if err != nil {
		t.Fatalf("ListWorks: %v", err)
	}
	var got []string
	for _, w := range works {
		got = append(got, w.Slug)
	}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
}

func TestDeleteWork_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := makeTestWork(t, s, "cascade")
	chapters := makeTestChapters(t, s, w.ID, "a", "b")
	if _, err := s.CreateDownload(ctx, &domain.Download{ChapterID: chapters[0].ID, Status: domain.DownloadPending, Date: time.Now()}); err != nil {
		t.Fatalf("CreateDownload: %v", err)
	}
	cat := &domain.Category{Label: "Favorites"}
	if err := s.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := s.AddWorksToCategory(ctx, cat.ID, []int64{w.ID}); err != nil {
		t.Fatalf("AddWorksToCategory: %v", err)
	}

	if err := s.DeleteWork(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWork: %v", err)
	}

	for table, query := range map[string]string{
		"chapters":         "SELECT COUNT(*) FROM chapters",
		"downloads":        "SELECT COUNT(*) FROM downloads",
		"categories_works": "SELECT COUNT(*) FROM categories_works",
	} {
		var n int
		if err := s.db.QueryRow(query).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s: %d orphan rows", table, n)
		}
	}
	if _, err := s.GetCategory(ctx, cat.ID); err != nil {
		t.Errorf("category should survive: %v", err)
	}
}

func TestChapter_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")

	date := time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC)
	last := 1
	c := &domain.Chapter{
		WorkID:            w.ID,
		Slug:              "ch-1",
		Title:             "Chapter 1",
		Scanlators:        []string{"Team"},
		Pages:             []domain.Page{{Image: "https://x/1.jpg"}, {Slug: "p2", Key: "ab"}},
		Scrambled:         true,
		Date:              &date,
		Rank:              0,
		Recent:            true,
		LastPageReadIndex: &last,
	}
	if err := s.CreateChapter(ctx, c); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}

	got, err := s.GetChapterBySlug(ctx, w.ID, "ch-1")
	if err != nil {
		t.Fatalf("GetChapterBySlug: %v", err)
	}
	if len(got.Pages) != 2 || got.Pages[1].Key != "ab" || got.Pages[0].Image != "https://x/1.jpg" {
		t.Errorf("Pages: got %+v", got.Pages)
	}
	if !got.Scrambled || !got.Recent || got.Read || got.Downloaded {
		t.Errorf("flags: got %+v", got)
	}
	if got.Date == nil || !got.Date.Equal(date) {
		t.Errorf("Date: got %v", got.Date)
	}
	if got.LastPageReadIndex == nil || *got.LastPageReadIndex != 1 {
		t.Errorf("LastPageReadIndex: got %v", got.LastPageReadIndex)
	}

	// A chapter with no manifest keeps nil pages.
	bare := makeTestChapters(t, s, w.ID, "ch-2")[0]
	got, err = s.GetChapter(ctx, bare.ID)
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if got.Pages != nil {
		t.Errorf("expected nil pages, got %v", got.Pages)
	}
}

func TestChapter_PagesStoredAsCanonicalJSON(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWork(t, s, "w")
	c := &domain.Chapter{WorkID: w.ID, Slug: "c", Pages: []domain.Page{{Slug: "b", Image: "a"}}}
	if err := s.CreateChapter(context.Background(), c); err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}

	var raw, authors string
	if err := s.db.QueryRow("SELECT pages FROM chapters WHERE id = ?", c.ID).Scan(&raw); err != nil {
		t.Fatalf("select pages: %v", err)
	}
	if raw != `[{"image":"a","slug":"b"}]` {
		t.Errorf("pages column: got %s", raw)
	}
	if err := s.db.QueryRow("SELECT authors FROM works WHERE id = ?", w.ID).Scan(&authors); err != nil {
		t.Fatalf("select authors: %v", err)
	}
	if authors != `["Mad Snail"]` {
		t.Errorf("authors column: got %s", authors)
	}
}

func TestChapter_ForeignKeyEnforced(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateChapter(context.Background(), &domain.Chapter{WorkID: 999, Slug: "orphan"})
	if !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("expected FK violation as conflict, got %v", err)
	}
}

func TestListChapters_Orders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")

	d := func(day int) *time.Time {
		v := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		return &v
	}
	for _, c := range []*domain.Chapter{
		{WorkID: w.ID, Slug: "a", Rank: 0, Date: d(5)},
		{WorkID: w.ID, Slug: "b", Rank: 1, Date: d(3)},
		{WorkID: w.ID, Slug: "c", Rank: 2, Date: d(9)},
	} {
		if err := s.CreateChapter(ctx, c); err != nil {
			t.Fatalf("CreateChapter: %v", err)
		}
	}

	tests := []struct {
		order domain.SortOrder
		want  string
	}{
		{"", "abc"},
		{domain.SortRankAsc, "abc"},
		{domain.SortRankDesc, "cba"},
		{domain.SortDateAsc, "bac"},
		{domain.SortDateDesc, "cab"},
	}
	for _, tt := range tests {
		chapters, err := s.ListChapters(ctx, w.ID, tt.order)
		if err != nil {
			t.Fatalf("ListChapters(%q): %v", tt.order, err)
		}
		var got string
		for _, c := range chapters {
			got += c.Slug
		}
		if got != tt.want {
			t.Errorf("ListChapters(%q): got %s, want %s", tt.order, got, tt.want)
		}
	}
}

func TestNextChapter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")
	makeTestChapters(t, s, w.ID, "a", "b", "c")

	next, err := s.NextChapter(ctx, w.ID, 0, 1)
	if err != nil || next == nil || next.Slug != "b" {
		t.Fatalf("next of a: got %v, %v", next, err)
	}
	prev, err := s.NextChapter(ctx, w.ID, 2, -1)
	if err != nil || prev == nil || prev.Slug != "b" {
		t.Fatalf("previous of c: got %v, %v", prev, err)
	}
	end, err := s.NextChapter(ctx, w.ID, 2, 1)
	if err != nil || end != nil {
		t.Errorf("past the end: got %v, %v", end, err)
	}
	start, err := s.NextChapter(ctx, w.ID, 0, -1)
	if err != nil || start != nil {
		t.Errorf("before the start: got %v, %v", start, err)
	}
	if _, err := s.NextChapter(ctx, w.ID, 0, 2); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("bad direction: got %v", err)
	}
}

func TestWorkCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")
	chapters := makeTestChapters(t, s, w.ID, "a", "b", "c", "d", "e")

	// a read, b unread, c read, d & e unread; d recent; a downloaded
	err := s.UpdateRows(ctx, "chapters",
		[]int64{chapters[0].ID, chapters[2].ID, chapters[3].ID},
		[]Row{
			{"read": true, "downloaded": true},
			{"read": true, "downloaded": false},
			{"read": false, "downloaded": false},
		})
	if err != nil {
		t.Fatalf("UpdateRows: %v", err)
	}
	if err := s.UpdateChapterFields(ctx, chapters[3].ID, Row{"recent": true}); err != nil {
		t.Fatalf("UpdateChapterFields: %v", err)
	}

	counts, err := s.Counts(ctx, w.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Unread != 3 {
		t.Errorf("Unread: got %d, want 3", counts.Unread)
	}
	if counts.Recent != 1 {
		t.Errorf("Recent: got %d, want 1", counts.Recent)
	}
	if counts.Downloaded != 1 {
		t.Errorf("Downloaded: got %d, want 1", counts.Downloaded)
	}
	if counts.ToRead != 2 {
		t.Errorf("ToRead: got %d, want 2", counts.ToRead)
	}
}

func TestRemapChapterSlugs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")
	makeTestChapters(t, s, w.ID, "old-1", "old-2")

	n, err := s.RemapChapterSlugs(ctx, w.ID, map[string]string{"old-1": "new-1", "missing": "x"})
	if err != nil {
		t.Fatalf("RemapChapterSlugs: %v", err)
	}
	if n != 1 {
		t.Errorf("remapped: got %d, want 1", n)
	}
	if _, err := s.GetChapterBySlug(ctx, w.ID, "new-1"); err != nil {
		t.Errorf("new slug not found: %v", err)
	}
}

func TestDownloads_Queue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")
	chapters := makeTestChapters(t, s, w.ID, "a", "b", "c")

	base := time.Now()
	for i, c := range []*domain.Chapter{chapters[2], chapters[0], chapters[1]} {
		created, err := s.CreateDownload(ctx, &domain.Download{
			ChapterID: c.ID,
			Status:    domain.DownloadPending,
			Date:      base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil || !created {
			t.Fatalf("CreateDownload: %v %v", created, err)
		}
	}

	// duplicate chapter is a no-op
	created, err := s.CreateDownload(ctx, &domain.Download{ChapterID: chapters[0].ID, Status: domain.DownloadPending, Date: base})
	if err != nil || created {
		t.Fatalf("duplicate CreateDownload: %v %v", created, err)
	}

	d, err := s.GetDownloadByChapter(ctx, chapters[0].ID)
	if err != nil {
		t.Fatalf("GetDownloadByChapter: %v", err)
	}
	d.Status = domain.DownloadError
	d.Percent = 140
	if err := s.UpdateDownload(ctx, d); err != nil {
		t.Fatalf("UpdateDownload: %v", err)
	}
	got, _ := s.GetDownload(ctx, d.ID)
	if got.Percent != 100 {
		t.Errorf("percent should clamp to 100, got %v", got.Percent)
	}

	all, err := s.ListDownloads(ctx, false)
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	if len(all) != 3 || all[0].ChapterID != chapters[2].ID || all[2].ChapterID != chapters[1].ID {
		t.Errorf("FIFO order broken: %+v", all)
	}

	pending, err := s.ListDownloads(ctx, true)
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected error row excluded, got %d rows", len(pending))
	}

	n, err := s.DeleteDownloadsByChapter(ctx, []int64{chapters[1].ID, chapters[2].ID})
	if err != nil || n != 2 {
		t.Fatalf("DeleteDownloadsByChapter: %d %v", n, err)
	}
	if err := s.DeleteDownload(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDownload: %v", err)
	}
	if _, err := s.GetDownload(ctx, d.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w1 := makeTestWork(t, s, "one")
	w2 := makeTestWork(t, s, "two")

	reading := &domain.Category{Label: "reading"}
	if err := s.CreateCategory(ctx, reading); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := s.CreateCategory(ctx, &domain.Category{Label: "reading"}); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("duplicate label: got %v", err)
	}
	if err := s.AddWorksToCategory(ctx, reading.ID, []int64{w1.ID, w2.ID, w1.ID}); err != nil {
		t.Fatalf("AddWorksToCategory: %v", err)
	}

	works, err := s.ListCategoryWorks(ctx, reading.ID)
	if err != nil || len(works) != 2 {
		t.Fatalf("ListCategoryWorks: %d %v", len(works), err)
	}

	if err := s.RemoveWorksFromCategory(ctx, reading.ID, []int64{w1.ID}); err != nil {
		t.Fatalf("RemoveWorksFromCategory: %v", err)
	}
	cats, err := s.WorkCategories(ctx, w1.ID)
	if err != nil || len(cats) != 0 {
		t.Errorf("WorkCategories(w1): %v %v", cats, err)
	}

	if err := s.RenameCategory(ctx, reading.ID, "Reading now"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}
	all, _ := s.ListCategories(ctx)
	if len(all) != 1 || all[0].Label != "Reading now" {
		t.Errorf("ListCategories: %+v", all)
	}
	if err := s.DeleteCategory(ctx, reading.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
}

func TestBulkRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := makeTestWork(t, s, "w")

	ids, err := s.InsertRows(ctx, "chapters", []Row{
		{"work_id": w.ID, "slug": "a", "rank": 0, "scanlators": []string{"z", "y"}},
		{"work_id": w.ID, "slug": "b", "rank": 1, "scanlators": []string{"x"}},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	date := time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC)
	if err := s.UpdateRows(ctx, "chapters", ids, []Row{{"title": "A", "date": &date}, {"title": "B", "date": nil}}); err != nil {
		t.Fatalf("UpdateRows: %v", err)
	}
	a, _ := s.GetChapter(ctx, ids[0])
	if a.Title != "A" || a.Date == nil || !a.Date.Equal(domain.DateOnly(date)) || a.Scanlators[0] != "z" {
		t.Errorf("chapter a: %+v", a)
	}

	n, err := s.DeleteRowsWhere(ctx, "chapters", []Row{{"work_id": w.ID, "slug": "b"}})
	if err != nil || n != 1 {
		t.Fatalf("DeleteRowsWhere: %d %v", n, err)
	}
	n, err = s.DeleteRows(ctx, "chapters", []int64{ids[0]})
	if err != nil || n != 1 {
		t.Fatalf("DeleteRows: %d %v", n, err)
	}
}

func TestBulkRows_Rejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertRows(ctx, "sqlite_master", []Row{{"name": "x"}}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("unknown table: got %v", err)
	}
	if _, err := s.InsertRows(ctx, "works", []Row{{"name; DROP TABLE works": "x"}}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("unknown column: got %v", err)
	}
	if _, err := s.InsertRows(ctx, "categories", []Row{{"label": "a"}, {"id": 9, "label": "b"}}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("mismatched columns: got %v", err)
	}
	if err := s.UpdateRows(ctx, "categories", []int64{1}, nil); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("length mismatch: got %v", err)
	}
}

func TestBulkRows_SingleTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// the second row violates UNIQUE(label); the first must roll back with it
	_, err := s.InsertRows(ctx, "categories", []Row{{"label": "x"}, {"label": "x"}})
	if !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	cats, _ := s.ListCategories(ctx)
	if len(cats) != 0 {
		t.Errorf("partial insert committed: %+v", cats)
	}
}

func TestInTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.Internalf("boom")
	err := s.InTx(ctx, func(q *Queries) error {
		if err := q.CreateWork(ctx, &domain.Work{Slug: "tx", ProviderID: "p", Name: "n", LastRead: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetWorkBySlug(ctx, "p", "tx"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("work should not exist after rollback: %v", err)
	}
}

func TestBackupAndRestore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "library.db")
	s, err := Open(dbPath, logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	w := &domain.Work{Slug: "kept", ProviderID: "p", Name: "Kept", LastRead: time.Now()}
	if err := s.CreateWork(ctx, w); err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	if err := s.Backup(ctx); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if _, err := os.Stat(dbPath + BackupSuffix); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	s.Close()

	// clobber the database header
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = 0xAB
	}
	if err := os.WriteFile(dbPath, garbage, 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	s, err = Open(dbPath, logger.Discard())
	if err != nil {
		t.Fatalf("reopen after corruption: %v", err)
	}
	defer s.Close()

	got, err := s.GetWorkBySlug(ctx, "p", "kept")
	if err != nil {
		t.Fatalf("work missing after restore: %v", err)
	}
	if got.Name != "Kept" {
		t.Errorf("Name: got %q", got.Name)
	}
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	got, err := canonicalJSON(map[string]any{"b": 1, "a": map[string]int{"z": 1, "y": 2}})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	if got != `{"a":{"y":2,"z":1},"b":1}` {
		t.Errorf("got %s", got)
	}
}
