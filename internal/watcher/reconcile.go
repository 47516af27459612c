package watcher

import (
	"context"
	"log/slog"
)

// PathReconciler brings the library back in line with a removed path.
type PathReconciler interface {
	ReconcilePath(ctx context.Context, path string) (int, error)
}

// Reconcile runs w and forwards every removal to r until ctx is done.
func Reconcile(ctx context.Context, w *Watcher, r PathReconciler, logger *slog.Logger) {
	go w.Start(ctx) //nolint:errcheck // Start only returns nil

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.Errors():
			logger.Warn("content store watcher error", "error", err)
		case e := <-w.Events():
			if e.Type != EventRemoved {
				continue
			}
			n, err := r.ReconcilePath(ctx, e.Path)
			if err != nil {
				logger.Error("failed to reconcile removed path", "path", e.Path, "error", err)
				continue
			}
			if n > 0 {
				logger.Info("content removed outside mangashelf", "path", e.Path, "chapters", n)
			}
		}
	}
}
