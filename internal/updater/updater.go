// Package updater refreshes works in the background and queues new
// chapters for download.
package updater

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/worker"
)

// Settings is the part of the user settings the updater reads.
type Settings interface {
	NewChaptersAutoDownload() bool
}

// Downloads receives chapters that appeared during a refresh.
type Downloads interface {
	Add(ctx context.Context, chapterIDs ...int64) (int, error)
	Start(ctx context.Context) bool
}

// Options configures an Updater. Library is required.
type Options struct {
	Library   *library.Library
	Settings  Settings
	Downloads Downloads
	Logger    *slog.Logger
}

// Updater refreshes queued works one at a time, oldest request first.
type Updater struct {
	lib       *library.Library
	settings  Settings
	downloads Downloads
	logger    *slog.Logger
	runner    *worker.Runner

	mu     sync.Mutex
	queue  []int64
	queued map[int64]bool
}

// New creates an idle Updater.
func New(opts Options) *Updater {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	u := &Updater{
		lib:       opts.Library,
		settings:  opts.Settings,
		downloads: opts.Downloads,
		logger:    logger.With("component", "updater"),
		queued:    make(map[int64]bool),
	}
	u.runner = worker.New("updater", u.loop, u.logger)
	return u
}

// Add queues works for refresh. Works already queued keep their place.
func (u *Updater) Add(workIDs ...int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, id := range workIDs {
		if u.queued[id] {
			continue
		}
		u.queued[id] = true
		u.queue = append(u.queue, id)
	}
}

// UpdateLibrary queues every work, most recently read first, and starts
// the updater.
func (u *Updater) UpdateLibrary(ctx context.Context) error {
	works, err := u.lib.Works(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, len(works))
	for i, w := range works {
		ids[i] = w.ID
	}
	u.Add(ids...)
	u.Start(ctx)
	return nil
}

// Pending returns the number of queued works.
func (u *Updater) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}

// Start begins processing the queue. It reports false when a run is already
// active; that run picks up the new entries.
func (u *Updater) Start(ctx context.Context) bool {
	return u.runner.Start(ctx)
}

// Stop asks the updater to return after the current work.
func (u *Updater) Stop() {
	u.runner.Stop()
}

// Wait blocks until the updater is idle.
func (u *Updater) Wait(ctx context.Context) error {
	return u.runner.Wait(ctx)
}

// Running reports whether a run is active.
func (u *Updater) Running() bool {
	return u.runner.Running()
}

// Pause stops the updater and waits for it; resume restarts it if needed.
func (u *Updater) Pause(ctx context.Context) (func(), error) {
	return u.runner.Pause(ctx)
}

func (u *Updater) next() (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) == 0 {
		return 0, false
	}
	id := u.queue[0]
	u.queue = u.queue[1:]
	delete(u.queued, id)
	return id, true
}

func (u *Updater) loop(ctx context.Context, stop <-chan struct{}) {
	u.logger.Info("updater started", "queued", u.Pending())
	u.lib.Emit(events.New(events.UpdaterStarted, nil))

	var sum events.UpdaterEndedData
	for !worker.Stopped(stop) && ctx.Err() == nil {
		id, ok := u.next()
		if !ok {
			break
		}
		recent, err := u.update(ctx, id)
		if err != nil {
			sum.Errors++
			continue
		}
		sum.Updated++
		sum.Recent += recent
	}

	u.logger.Info("updater ended", "updated", sum.Updated, "recent", sum.Recent, "errors", sum.Errors)
	u.lib.Emit(events.New(events.UpdaterEnded, sum))
}

// update refreshes one work and reports how many chapters appeared.
func (u *Updater) update(ctx context.Context, id int64) (int, error) {
	w, err := u.lib.Work(ctx, id)
	if err != nil {
		u.logger.Warn("queued work is gone", "work_id", id, "error", err)
		return 0, err
	}

	res, err := u.lib.Refresh(ctx, w)
	if err != nil {
		u.logger.Error("failed to refresh work", "work_id", id, "name", w.Name, "error", err)
		u.lib.Emit(events.New(events.WorkUpdated, events.WorkUpdatedData{Work: w, Err: err}))
		return 0, err
	}

	u.logger.Debug("work refreshed", "work_id", id, "recent", len(res.Recent), "deleted", res.Deleted, "synced", res.Synced)
	u.lib.Emit(events.New(events.WorkUpdated, events.WorkUpdatedData{
		Work:    res.Work,
		Recent:  len(res.Recent),
		Deleted: res.Deleted,
		Synced:  res.Synced,
	}))

	if len(res.Recent) > 0 && u.downloads != nil && u.settings != nil && u.settings.NewChaptersAutoDownload() {
		if _, err := u.downloads.Add(ctx, res.Recent...); err != nil {
			u.logger.Error("failed to queue new chapters", "work_id", id, "error", err)
		} else {
			u.downloads.Start(ctx)
		}
	}
	return len(res.Recent), nil
}
