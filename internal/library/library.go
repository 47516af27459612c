// Package library is the single entry point for operations on works,
// chapters, downloads and categories. It keeps the database, the content
// store and the search index consistent with each other.
package library

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/provider"
	"github.com/mangashelf/mangashelf/internal/search"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
	"github.com/mangashelf/mangashelf/internal/validation"
)

var validate = validation.New()

// Settings is the part of the user settings the library reads.
type Settings interface {
	LongStripDetection() bool
	// BordersCrop is the default for works without their own preference.
	BordersCrop() bool
}

// Worker is a background worker that must be idle while works are deleted.
type Worker interface {
	// Pause stops the worker and waits until it is idle. The returned
	// function restarts it if it was running.
	Pause(ctx context.Context) (resume func(), err error)
}

// Options configures a Library. Store, Content and Providers are required.
type Options struct {
	Store       *sqlite.Store
	Content     *contentstore.Store
	Providers   *provider.Registry
	Settings    Settings
	Credentials credentials.Sink
	// Index is optional; without it Search is unavailable.
	Index  *search.Index
	Events events.Emitter
	Logger *slog.Logger
}

// Library implements the library operations.
type Library struct {
	store       *sqlite.Store
	content     *contentstore.Store
	providers   *provider.Registry
	settings    Settings
	credentials credentials.Sink
	index       *search.Index
	events      events.Emitter
	logger      *slog.Logger

	// pagesMu serializes manifest rewrites from concurrent GetPage calls.
	pagesMu sync.Mutex

	workersMu sync.Mutex
	workers   []Worker

	now func() time.Time
}

// New creates a Library.
func New(opts Options) (*Library, error) {
	if opts.Store == nil || opts.Content == nil || opts.Providers == nil {
		return nil, errors.Validation("library needs a store, a content store and a provider registry")
	}
	l := &Library{
		store:       opts.Store,
		content:     opts.Content,
		providers:   opts.Providers,
		settings:    opts.Settings,
		credentials: opts.Credentials,
		index:       opts.Index,
		events:      opts.Events,
		logger:      opts.Logger,
		now:         time.Now,
	}
	if l.events == nil {
		l.events = events.Discard
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.credentials == nil {
		l.credentials = credentials.NewMemory()
	}
	return l, nil
}

// Store exposes the database for the workers.
func (l *Library) Store() *sqlite.Store {
	return l.store
}

// Content exposes the content store for the workers.
func (l *Library) Content() *contentstore.Store {
	return l.content
}

// Emit forwards an event to the library's emitter.
func (l *Library) Emit(e events.Event) {
	l.events.Emit(e)
}

// AttachWorkers registers workers to pause around deletions.
func (l *Library) AttachWorkers(ws ...Worker) {
	l.workersMu.Lock()
	defer l.workersMu.Unlock()
	l.workers = append(l.workers, ws...)
}

// withWorkersPaused pauses every attached worker, runs fn and restarts the
// workers that were running.
func (l *Library) withWorkersPaused(ctx context.Context, fn func() error) error {
	l.workersMu.Lock()
	workers := append([]Worker(nil), l.workers...)
	l.workersMu.Unlock()

	var resumes []func()
	defer func() {
		for _, resume := range resumes {
			resume()
		}
	}()
	for _, w := range workers {
		resume, err := w.Pause(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "pause worker")
		}
		resumes = append(resumes, resume)
	}
	return fn()
}

// Provider returns the provider with the given id.
func (l *Library) Provider(id string) (provider.Provider, error) {
	return l.providers.Get(id)
}

// providerInfo returns a provider with its registered metadata, where
// MainID and Dir are always set.
func (l *Library) providerInfo(id string) (provider.Provider, provider.Info, error) {
	p, err := l.providers.Get(id)
	if err != nil {
		return nil, provider.Info{}, err
	}
	info, ok := l.providers.Info(id)
	if !ok {
		info = p.Info()
	}
	return p, info, nil
}

// providerDir is the content store directory of a provider. Works of
// uninstalled providers keep using the provider id.
func (l *Library) providerDir(providerID string) string {
	if info, ok := l.providers.Info(providerID); ok && info.Dir != "" {
		return info.Dir
	}
	return providerID
}

// WorkPath returns the directory of w.
func (l *Library) WorkPath(w *domain.Work) string {
	return l.content.WorkPath(l.providerDir(w.ProviderID), w.Name)
}

// ChapterPath returns the directory of c, a chapter of w.
func (l *Library) ChapterPath(w *domain.Work, c *domain.Chapter) string {
	return l.content.ChapterPath(l.WorkPath(w), c.Slug)
}

// CoverPath returns the cover file of w.
func (l *Library) CoverPath(w *domain.Work) string {
	return l.content.CoverPath(l.WorkPath(w))
}

func (l *Library) indexWork(w *domain.Work) {
	if l.index == nil {
		return
	}
	if err := l.index.IndexWork(w); err != nil {
		l.logger.Warn("failed to index work", "work_id", w.ID, "error", err)
	}
}
