// Package downloader materializes queued chapters to the content store.
package downloader

import (
	"context"
	"log/slog"
	"time"

	"github.com/mangashelf/mangashelf/internal/domain"
	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
	"github.com/mangashelf/mangashelf/internal/worker"
)

// DefaultPageDelay is the pause between two page requests.
const DefaultPageDelay = time.Second

// Settings persists whether the downloader should resume on next launch.
type Settings interface {
	SetDownloaderState(running bool) error
}

// Options configures a Downloader. Library is required.
type Options struct {
	Library  *library.Library
	Settings Settings
	// PageDelay defaults to DefaultPageDelay; a negative value disables it.
	PageDelay time.Duration
	// Online gates each run; nil means always online.
	Online func(ctx context.Context) bool
	Logger *slog.Logger
}

// Downloader works through the download queue one chapter at a time.
type Downloader struct {
	lib      *library.Library
	store    *sqlite.Store
	settings Settings
	delay    time.Duration
	online   func(ctx context.Context) bool
	logger   *slog.Logger
	runner   *worker.Runner
	now      func() time.Time
}

// New creates an idle Downloader.
func New(opts Options) *Downloader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	delay := opts.PageDelay
	switch {
	case delay == 0:
		delay = DefaultPageDelay
	case delay < 0:
		delay = 0
	}
	d := &Downloader{
		lib:      opts.Library,
		store:    opts.Library.Store(),
		settings: opts.Settings,
		delay:    delay,
		online:   opts.Online,
		logger:   logger.With("component", "downloader"),
		now:      time.Now,
	}
	d.runner = worker.New("downloader", d.loop, d.logger)
	return d
}

// Add queues chapters that are not downloaded yet and returns how many
// rows were created. Chapters already queued are left alone.
func (d *Downloader) Add(ctx context.Context, chapterIDs ...int64) (int, error) {
	added := 0
	for _, id := range chapterIDs {
		c, err := d.store.GetChapter(ctx, id)
		if err != nil {
			return added, err
		}
		if c.Downloaded {
			continue
		}
		dl := &domain.Download{ChapterID: id, Status: domain.DownloadPending, Date: d.now()}
		created, err := d.store.CreateDownload(ctx, dl)
		if err != nil {
			return added, err
		}
		if created {
			added++
			d.emit(dl, nil, nil)
		}
	}
	return added, nil
}

// Remove drops the download rows of chapters. The downloader is paused
// while the rows go away.
func (d *Downloader) Remove(ctx context.Context, chapterIDs ...int64) error {
	resume, err := d.runner.Pause(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "pause downloader")
	}
	defer resume()

	if _, err := d.store.DeleteDownloadsByChapter(ctx, chapterIDs); err != nil {
		return err
	}
	for _, id := range chapterIDs {
		d.lib.Emit(events.New(events.DownloadChanged, events.DownloadChangedData{ChapterID: id}))
	}
	return nil
}

// Start runs the queue and records that the downloader should resume on
// next launch. It reports false when a run is already active.
func (d *Downloader) Start(ctx context.Context) bool {
	if d.settings != nil {
		if err := d.settings.SetDownloaderState(true); err != nil {
			d.logger.Warn("failed to save downloader state", "error", err)
		}
	}
	return d.runner.Start(ctx)
}

// Stop asks the downloader to halt after the current page. With saveState
// set it also stops the downloader from resuming on next launch.
func (d *Downloader) Stop(saveState bool) {
	d.runner.Stop()
	if saveState && d.settings != nil {
		if err := d.settings.SetDownloaderState(false); err != nil {
			d.logger.Warn("failed to save downloader state", "error", err)
		}
	}
}

// Wait blocks until the downloader is idle.
func (d *Downloader) Wait(ctx context.Context) error {
	return d.runner.Wait(ctx)
}

// Running reports whether a run is active.
func (d *Downloader) Running() bool {
	return d.runner.Running()
}

// Pause stops the downloader and waits for it; resume restarts it if needed.
func (d *Downloader) Pause(ctx context.Context) (func(), error) {
	return d.runner.Pause(ctx)
}

func (d *Downloader) emit(dl *domain.Download, c *domain.Chapter, err error) {
	data := events.DownloadChangedData{Err: err}
	if c != nil {
		data.Chapter, data.ChapterID = c, c.ID
	} else {
		cp := *dl
		data.Download, data.ChapterID = &cp, dl.ChapterID
	}
	d.lib.Emit(events.New(events.DownloadChanged, data))
}
