package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/downloader"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/notify"
	"github.com/mangashelf/mangashelf/internal/updater"
	"github.com/mangashelf/mangashelf/internal/watcher"
)

// DownloaderHandle wraps the downloader with shutdown capability.
type DownloaderHandle struct {
	*downloader.Downloader
}

// Shutdown implements do.Shutdownable. The persisted downloader state is
// kept so the queue resumes on the next start.
func (h *DownloaderHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.Stop(false)
	return h.Wait(ctx)
}

// ProvideDownloader provides the download queue worker.
func ProvideDownloader(i do.Injector) (*DownloaderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	lib := do.MustInvoke[*library.Library](i)
	prefs := do.MustInvoke[*SettingsHandle](i)
	net := do.MustInvoke[*NetStateHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	delay := cfg.Downloader.PageDelay
	if delay == 0 {
		delay = -1
	}

	d := downloader.New(downloader.Options{
		Library:   lib,
		Settings:  prefs.Settings,
		PageDelay: delay,
		Online:    net.Online,
		Logger:    log,
	})
	lib.AttachWorkers(d)

	return &DownloaderHandle{Downloader: d}, nil
}

// UpdaterHandle wraps the updater with shutdown capability.
type UpdaterHandle struct {
	*updater.Updater
}

// Shutdown implements do.Shutdownable.
func (h *UpdaterHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.Stop()
	return h.Wait(ctx)
}

// ProvideUpdater provides the library refresh worker.
func ProvideUpdater(i do.Injector) (*UpdaterHandle, error) {
	lib := do.MustInvoke[*library.Library](i)
	prefs := do.MustInvoke[*SettingsHandle](i)
	downloads := do.MustInvoke[*DownloaderHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	u := updater.New(updater.Options{
		Library:   lib,
		Settings:  prefs.Settings,
		Downloads: downloads.Downloader,
		Logger:    log,
	})
	lib.AttachWorkers(u)

	return &UpdaterHandle{Updater: u}, nil
}

// NotifierHandle wraps the desktop notification listener with shutdown
// capability.
type NotifierHandle struct {
	notifier notify.Notifier
	bus      *EventBusHandle
	subID    string
	cancel   context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *NotifierHandle) Shutdown() error {
	h.cancel()
	h.bus.Unsubscribe(h.subID)
	if c, ok := h.notifier.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ProvideNotifier provides the desktop notification listener.
func ProvideNotifier(i do.Injector) (*NotifierHandle, error) {
	bus := do.MustInvoke[*EventBusHandle](i)
	prefs := do.MustInvoke[*SettingsHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	n := notify.Open(appName, log.With("component", "notify"))
	listener := notify.NewListener(n, prefs.Settings, log.With("component", "notify"))

	sub, err := bus.Subscribe(listener.Types()...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go listener.Run(ctx, sub.C)

	return &NotifierHandle{notifier: n, bus: bus, subID: sub.ID, cancel: cancel}, nil
}

// ContentWatcherHandle wraps the content store watcher with shutdown
// capability. Watcher is nil when watching is disabled.
type ContentWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ContentWatcherHandle) Shutdown() error {
	h.cancel()
	if h.Watcher == nil {
		return nil
	}
	return h.Watcher.Stop()
}

// ProvideContentWatcher provides the watcher that unmarks chapters whose
// pages are deleted outside mangashelf.
func ProvideContentWatcher(i do.Injector) (*ContentWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	content := do.MustInvoke[*contentstore.Store](i)
	lib := do.MustInvoke[*library.Library](i)
	log := do.MustInvoke[*slog.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	if !cfg.Storage.WatchContentStore {
		return &ContentWatcherHandle{cancel: cancel}, nil
	}

	w, err := watcher.New(log.With("component", "watcher"), watcher.Options{MaxDepth: 2, IgnoreHidden: true})
	if err != nil {
		cancel()
		return nil, err
	}
	if err := w.Watch(content.Root()); err != nil {
		cancel()
		_ = w.Stop()
		return nil, err
	}

	go watcher.Reconcile(ctx, w, lib, log.With("component", "watcher"))

	log.Info("Content store watcher started", "root", content.Root())

	return &ContentWatcherHandle{Watcher: w, cancel: cancel}, nil
}
