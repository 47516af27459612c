package downloader_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/downloader"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/library/librarytest"
)

type stateSettings struct {
	mu    sync.Mutex
	state bool
}

func (s *stateSettings) SetDownloaderState(running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = running
	return nil
}

func (s *stateSettings) get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func newDownloader(env *librarytest.Env, settings downloader.Settings) *downloader.Downloader {
	return downloader.New(downloader.Options{
		Library:   env.Library,
		Settings:  settings,
		PageDelay: -1,
	})
}

func wait(t *testing.T, d *downloader.Downloader) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

// downloadEvents returns the download payloads of DownloadChanged events
// for rows in the given status.
func downloadEvents(env *librarytest.Env, status domain.DownloadStatus) []*domain.Download {
	var out []*domain.Download
	for _, e := range env.Events.Events(events.DownloadChanged) {
		data := e.Data.(events.DownloadChangedData)
		if data.Download != nil && data.Download.Status == status {
			out = append(out, data.Download)
		}
	}
	return out
}

func TestDownloader_ThreePageChapter(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "c")
	env.SetPages("c", 3)
	c := env.ChapterBySlug(t, w, "c")
	settings := &stateSettings{}
	d := newDownloader(env, settings)
	ctx := context.Background()

	n, err := d.Add(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	env.Events.Reset()
	assert.True(t, d.Start(ctx))
	assert.True(t, settings.get())
	wait(t, d)

	var percents []float64
	for _, dl := range downloadEvents(env, domain.DownloadDownloading) {
		if dl.Percent > 0 {
			percents = append(percents, dl.Percent)
		}
	}
	require.Len(t, percents, 3)
	assert.InDelta(t, 33.333, percents[0], 0.01)
	assert.InDelta(t, 66.666, percents[1], 0.01)
	assert.InDelta(t, 100.0, percents[2], 0.01)

	var finished []*domain.Chapter
	for _, e := range env.Events.Events(events.DownloadChanged) {
		if ch := e.Data.(events.DownloadChangedData).Chapter; ch != nil {
			finished = append(finished, ch)
		}
	}
	require.Len(t, finished, 1)
	assert.True(t, finished[0].Downloaded)

	stored := env.ChapterBySlug(t, w, "c")
	assert.True(t, stored.Downloaded)
	_, err = env.Store.GetDownloadByChapter(ctx, c.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	files, err := env.Content.CountFiles(env.Library.ChapterPath(w, stored))
	require.NoError(t, err)
	assert.Equal(t, 3, files)

	ended := env.Events.Events(events.DownloaderEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, events.DownloaderEndedData{Completed: 1}, ended[0].Data)
}

func TestDownloader_StopAndResume(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "c")
	env.SetPages("c", 5)
	c := env.ChapterBySlug(t, w, "c")
	settings := &stateSettings{}
	d := newDownloader(env, settings)
	ctx := context.Background()

	reached := make(chan struct{})
	release := make(chan struct{})
	env.Provider.SetPageHook(func(_ context.Context, _ string, page domain.Page) error {
		if strings.HasSuffix(page.Image, "/2.png") {
			close(reached)
			<-release
		}
		return nil
	})

	_, err := d.Add(ctx, c.ID)
	require.NoError(t, err)
	d.Start(ctx)

	select {
	case <-reached:
	case <-time.After(5 * time.Second):
		t.Fatal("second page never requested")
	}
	d.Stop(false)
	close(release)
	wait(t, d)

	assert.True(t, settings.get())
	dl, err := env.Store.GetDownloadByChapter(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadPending, dl.Status)
	assert.InDelta(t, 40.0, dl.Percent, 0.001)

	stored := env.ChapterBySlug(t, w, "c")
	assert.False(t, stored.Downloaded)
	files, err := env.Content.CountFiles(env.Library.ChapterPath(w, stored))
	require.NoError(t, err)
	assert.Equal(t, 2, files)

	env.Provider.SetPageHook(nil)
	calls := env.Provider.Calls("GetPageImage")
	d.Start(ctx)
	wait(t, d)

	assert.Equal(t, calls+3, env.Provider.Calls("GetPageImage"))
	assert.True(t, env.ChapterBySlug(t, w, "c").Downloaded)
	_, err = env.Store.GetDownloadByChapter(ctx, c.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDownloader_PageFailureMarksError(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "bad", "good")
	env.SetPages("bad", 2)
	env.SetPages("good", 1)
	env.Provider.SetPageHook(func(_ context.Context, chapterSlug string, page domain.Page) error {
		if chapterSlug == "bad" && strings.HasSuffix(page.Image, "/1.png") {
			return errors.New("connection reset")
		}
		return nil
	})
	bad, good := env.ChapterBySlug(t, w, "bad"), env.ChapterBySlug(t, w, "good")
	d := newDownloader(env, nil)
	ctx := context.Background()

	_, err := d.Add(ctx, bad.ID, good.ID)
	require.NoError(t, err)
	env.Events.Reset()
	d.Start(ctx)
	wait(t, d)

	dl, err := env.Store.GetDownloadByChapter(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadError, dl.Status)
	assert.Equal(t, 1, dl.Errors)
	assert.False(t, env.ChapterBySlug(t, w, "bad").Downloaded)
	assert.True(t, env.ChapterBySlug(t, w, "good").Downloaded)

	errored := downloadEvents(env, domain.DownloadError)
	require.Len(t, errored, 1)

	ended := env.Events.Events(events.DownloaderEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, events.DownloaderEndedData{Completed: 1, Failed: 1}, ended[0].Data)

	// The next run retries rows in error.
	env.Provider.SetPageHook(nil)
	d.Start(ctx)
	wait(t, d)
	assert.True(t, env.ChapterBySlug(t, w, "bad").Downloaded)
}

func TestDownloader_EmptyManifestIsAnError(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "c")
	env.Provider.SetPages("c", []domain.Page{}, false)
	c := env.ChapterBySlug(t, w, "c")
	d := newDownloader(env, nil)
	ctx := context.Background()

	_, err := d.Add(ctx, c.ID)
	require.NoError(t, err)
	d.Start(ctx)
	wait(t, d)

	dl, err := env.Store.GetDownloadByChapter(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadError, dl.Status)
}

func TestDownloader_Add(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "done", "todo")
	env.SetPages("done", 1)
	ctx := context.Background()
	done := env.ChapterBySlug(t, w, "done")
	require.NoError(t, env.Library.UpdateFull(ctx, done))
	_, err := env.Library.GetPage(ctx, done, 0)
	require.NoError(t, err)
	todo := env.ChapterBySlug(t, w, "todo")

	d := newDownloader(env, nil)
	n, err := d.Add(ctx, done.ID, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Add(ctx, todo.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = d.Add(ctx, 9999)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestDownloader_Remove(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "a", "b")
	a, b := env.ChapterBySlug(t, w, "a"), env.ChapterBySlug(t, w, "b")
	d := newDownloader(env, nil)
	ctx := context.Background()
	_, err := d.Add(ctx, a.ID, b.ID)
	require.NoError(t, err)

	env.Events.Reset()
	require.NoError(t, d.Remove(ctx, a.ID))

	rows, err := env.Store.ListDownloads(ctx, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ChapterID)

	removed := env.Events.Events(events.DownloadChanged)
	require.Len(t, removed, 1)
	data := removed[0].Data.(events.DownloadChangedData)
	assert.Equal(t, a.ID, data.ChapterID)
	assert.Nil(t, data.Download)
	assert.False(t, d.Running())
}

func TestDownloader_Offline(t *testing.T) {
	env := librarytest.New(t)
	w := env.AddWork(t, "w", "c")
	env.SetPages("c", 1)
	c := env.ChapterBySlug(t, w, "c")
	d := downloader.New(downloader.Options{
		Library:   env.Library,
		PageDelay: -1,
		Online:    func(context.Context) bool { return false },
	})
	ctx := context.Background()
	_, err := d.Add(ctx, c.ID)
	require.NoError(t, err)

	env.Events.Reset()
	d.Start(ctx)
	wait(t, d)

	assert.Empty(t, env.Events.Events())
	assert.Zero(t, env.Provider.Calls("GetChapterData"))
}

func TestDownloader_StopSavesState(t *testing.T) {
	env := librarytest.New(t)
	settings := &stateSettings{}
	d := newDownloader(env, settings)

	d.Start(context.Background())
	wait(t, d)
	assert.True(t, settings.get())

	d.Stop(true)
	assert.False(t, settings.get())
}
