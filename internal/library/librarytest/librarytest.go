// Package librarytest builds a library backed by a temporary database,
// content store and in-memory providers.
package librarytest

import (
	"context"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/logger"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/provider/providertest"
	"github.com/mangashelf/mangashelf/internal/search"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// ProviderID is the id of the default test provider.
const ProviderID = "testsrc"

// Settings is a mutable library.Settings.
type Settings struct {
	mu          sync.Mutex
	longStrip   bool
	bordersCrop bool
}

// LongStripDetection implements library.Settings.
func (s *Settings) LongStripDetection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.longStrip
}

// BordersCrop implements library.Settings.
func (s *Settings) BordersCrop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bordersCrop
}

// SetBordersCrop changes the setting.
func (s *Settings) SetBordersCrop(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bordersCrop = v
}

// SetLongStripDetection changes the setting.
func (s *Settings) SetLongStripDetection(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.longStrip = v
}

// Recorder keeps every emitted event.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the recorded events of the given types, or all of them.
func (r *Recorder) Events(types ...events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if len(types) == 0 || slices.Contains(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Env is a library wired to temporary storage.
type Env struct {
	Library     *library.Library
	Store       *sqlite.Store
	Content     *contentstore.Store
	Providers   *provider.Registry
	Provider    *providertest.Provider
	Settings    *Settings
	Credentials *credentials.Memory
	Index       *search.Index
	Events      *Recorder
}

// New creates an Env with one provider registered under ProviderID.
// Extra infos register more in-memory providers.
func New(t *testing.T, extra ...provider.Info) *Env {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()

	store, err := sqlite.Open(filepath.Join(dir, "library.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	content, err := contentstore.New(filepath.Join(dir, "content"), log)
	require.NoError(t, err)

	index, err := search.Open(search.Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	env := &Env{
		Store:       store,
		Content:     content,
		Providers:   provider.NewRegistry(provider.Deps{Logger: log}),
		Settings:    &Settings{},
		Credentials: credentials.NewMemory(),
		Index:       index,
		Events:      &Recorder{},
	}
	env.Provider = env.AddProvider(t, provider.Info{ID: ProviderID, Name: "Test Source", Lang: "en"})
	for _, info := range extra {
		env.AddProvider(t, info)
	}

	env.Library, err = library.New(library.Options{
		Store:       store,
		Content:     content,
		Providers:   env.Providers,
		Settings:    env.Settings,
		Credentials: env.Credentials,
		Index:       index,
		Events:      env.Events,
		Logger:      log,
	})
	require.NoError(t, err)
	return env
}

// AddProvider registers an in-memory provider.
func (e *Env) AddProvider(t *testing.T, info provider.Info) *providertest.Provider {
	t.Helper()
	p := providertest.New(info)
	require.NoError(t, e.Providers.Add(info, p.Factory()))
	return p
}

// Chapters builds chapter data for slugs.
func Chapters(slugs ...string) []domain.ChapterData {
	out := make([]domain.ChapterData, len(slugs))
	for i, s := range slugs {
		d := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		out[i] = domain.ChapterData{Slug: s, Title: "Chapter " + s, Date: &d}
	}
	return out
}

// AddWork publishes a work with the given chapter slugs on the default
// provider and adds it to the library.
func (e *Env) AddWork(t *testing.T, slug string, chapterSlugs ...string) *domain.Work {
	t.Helper()
	e.Provider.SetWork(domain.WorkData{
		Slug:     slug,
		Name:     "Work " + slug,
		Authors:  []string{"Author"},
		Genres:   []string{"Action"},
		Status:   domain.StatusOngoing,
		Cover:    "https://example.test/covers/" + slug + ".png",
		Chapters: Chapters(chapterSlugs...),
	})
	w, err := e.Library.AddFromProvider(context.Background(), ProviderID, domain.Seed{Slug: slug})
	require.NoError(t, err)
	return w
}

// SetPages publishes a manifest of n image pages for a chapter slug.
func (e *Env) SetPages(chapterSlug string, n int) {
	pages := make([]domain.Page, n)
	for i := range pages {
		pages[i] = domain.Page{Image: "https://example.test/" + chapterSlug + "/" + strconv.Itoa(i+1) + ".png"}
	}
	e.Provider.SetPages(chapterSlug, pages, false)
}

// ChapterBySlug loads a chapter of w.
func (e *Env) ChapterBySlug(t *testing.T, w *domain.Work, slug string) *domain.Chapter {
	t.Helper()
	c, err := e.Store.GetChapterBySlug(context.Background(), w.ID, slug)
	require.NoError(t, err)
	return c
}

// Ranks returns slug -> rank for the chapters of w.
func (e *Env) Ranks(t *testing.T, w *domain.Work) map[string]int {
	t.Helper()
	chapters, err := e.Store.ListChapters(context.Background(), w.ID, domain.SortRankAsc)
	require.NoError(t, err)
	out := make(map[string]int, len(chapters))
	for _, c := range chapters {
		out[c.Slug] = c.Rank
	}
	return out
}
