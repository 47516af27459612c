package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/di"
	"github.com/mangashelf/mangashelf/internal/di/providers"
	"github.com/mangashelf/mangashelf/internal/library"
)

const stopTimeout = 30 * time.Second

func newDaemonCmd(o *config.Overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the updater and downloader in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), o)
		},
	}
}

func runDaemon(parent context.Context, o *config.Overrides) error {
	injector := di.NewContainer(*o)
	if err := di.BootstrapDaemon(injector); err != nil {
		return err
	}

	log := do.MustInvoke[*slog.Logger](injector)
	prefs := do.MustInvoke[*providers.SettingsHandle](injector)
	lib := do.MustInvoke[*library.Library](injector)
	store := do.MustInvoke[*providers.StoreHandle](injector)
	upd := do.MustInvoke[*providers.UpdaterHandle](injector)
	dl := do.MustInvoke[*providers.DownloaderHandle](injector)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if n, err := lib.VerifyDownloads(ctx); err != nil {
		log.Error("Download verification failed", "error", err)
	} else if n > 0 {
		log.Warn("Chapters with missing pages marked as not downloaded", "chapters", n)
	}

	if prefs.UpdateAtStartup() {
		if err := upd.UpdateLibrary(ctx); err != nil {
			log.Error("Failed to queue library update", "error", err)
		}
	}
	if prefs.DownloaderState() {
		log.Info("Resuming downloads")
		dl.Start(ctx)
	}

	log.Info("mangashelf running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	signal.Stop(quit)

	log.Info("Shutting down gracefully...")

	// Workers stop between items; the downloader state is kept so the
	// queue resumes on the next start.
	upd.Stop()
	dl.Stop(false)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := upd.Wait(stopCtx); err != nil {
		log.Warn("Updater did not stop in time", "error", err)
	}
	if err := dl.Wait(stopCtx); err != nil {
		log.Warn("Downloader did not stop in time", "error", err)
	}
	cancel()

	if err := store.Backup(stopCtx); err != nil {
		log.Error("Database backup failed", "error", err)
	}

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Bye")
	return nil
}
