package updater_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/library/librarytest"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
	"github.com/mangashelf/mangashelf/internal/updater"
)

type autoDownload bool

func (a autoDownload) NewChaptersAutoDownload() bool { return bool(a) }

type fakeDownloads struct {
	mu      sync.Mutex
	added   []int64
	started int
}

func (f *fakeDownloads) Add(_ context.Context, ids ...int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, ids...)
	return len(ids), nil
}

func (f *fakeDownloads) Start(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return true
}

func run(t *testing.T, u *updater.Updater) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u.Start(context.Background())
	require.NoError(t, u.Wait(ctx))
}

func TestUpdater_RefreshesQueuedWorks(t *testing.T) {
	env := librarytest.New(t)
	a := env.AddWork(t, "a", "1", "2")
	b := env.AddWork(t, "b", "1")
	env.Provider.SetChapters("a", librarytest.Chapters("1", "2", "3")...)

	u := updater.New(updater.Options{Library: env.Library})
	u.Add(a.ID, b.ID, a.ID)
	assert.Equal(t, 2, u.Pending())
	env.Events.Reset()
	run(t, u)

	assert.Zero(t, u.Pending())
	updated := env.Events.Events(events.WorkUpdated)
	require.Len(t, updated, 2)
	first := updated[0].Data.(events.WorkUpdatedData)
	assert.Equal(t, a.ID, first.Work.ID)
	assert.Equal(t, 1, first.Recent)
	assert.NoError(t, first.Err)

	require.Len(t, env.Events.Events(events.UpdaterStarted), 1)
	ended := env.Events.Events(events.UpdaterEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, events.UpdaterEndedData{Updated: 2, Recent: 1}, ended[0].Data)
}

func TestUpdater_CountsFailures(t *testing.T) {
	env := librarytest.New(t)
	a := env.AddWork(t, "a", "1")
	b := env.AddWork(t, "b", "1")
	env.Provider.RemoveWork("a")

	u := updater.New(updater.Options{Library: env.Library})
	u.Add(a.ID, b.ID)
	env.Events.Reset()
	run(t, u)

	updated := env.Events.Events(events.WorkUpdated)
	require.Len(t, updated, 2)
	assert.Error(t, updated[0].Data.(events.WorkUpdatedData).Err)
	assert.NoError(t, updated[1].Data.(events.WorkUpdatedData).Err)

	ended := env.Events.Events(events.UpdaterEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, events.UpdaterEndedData{Updated: 1, Errors: 1}, ended[0].Data)
	assert.Equal(t, map[string]int{"1": 0}, env.Ranks(t, a))
}

func TestUpdater_AutoDownload(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		env := librarytest.New(t)
		w := env.AddWork(t, "w", "1")
		env.Provider.SetChapters("w", librarytest.Chapters("1", "2", "3")...)

		downloads := &fakeDownloads{}
		u := updater.New(updater.Options{
			Library:   env.Library,
			Settings:  autoDownload(enabled),
			Downloads: downloads,
		})
		u.Add(w.ID)
		run(t, u)

		if enabled {
			assert.ElementsMatch(t, []int64{
				env.ChapterBySlug(t, w, "2").ID,
				env.ChapterBySlug(t, w, "3").ID,
			}, downloads.added)
			assert.Equal(t, 1, downloads.started)
		} else {
			assert.Empty(t, downloads.added)
			assert.Zero(t, downloads.started)
		}
	}
}

func TestUpdater_UpdateLibraryOrder(t *testing.T) {
	env := librarytest.New(t)
	ctx := context.Background()
	older := env.AddWork(t, "older", "1")
	newer := env.AddWork(t, "newer", "1")
	_, err := env.Library.UpdateWork(ctx, older.ID, sqlite.Row{"last_read": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	_, err = env.Library.UpdateWork(ctx, newer.ID, sqlite.Row{"last_read": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	u := updater.New(updater.Options{Library: env.Library})
	env.Events.Reset()
	require.NoError(t, u.UpdateLibrary(ctx))
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, u.Wait(waitCtx))

	updated := env.Events.Events(events.WorkUpdated)
	require.Len(t, updated, 2)
	assert.Equal(t, newer.ID, updated[0].Data.(events.WorkUpdatedData).Work.ID)
	assert.Equal(t, older.ID, updated[1].Data.(events.WorkUpdatedData).Work.ID)
}

func TestUpdater_StopKeepsQueue(t *testing.T) {
	env := librarytest.New(t)
	a := env.AddWork(t, "a", "1")
	b := env.AddWork(t, "b", "1")

	u := updater.New(updater.Options{Library: env.Library})
	u.Add(a.ID, b.ID)
	resume, err := u.Pause(context.Background())
	require.NoError(t, err)
	resume()

	assert.False(t, u.Running())
	assert.Equal(t, 2, u.Pending())
}
