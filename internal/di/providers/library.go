package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/events"
	"github.com/mangashelf/mangashelf/internal/importer"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/provider"
)

// EventBusHandle wraps the event bus with shutdown capability.
type EventBusHandle struct {
	*events.Bus
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Bus.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideEventBus provides the in-process event bus.
func ProvideEventBus(i do.Injector) (*EventBusHandle, error) {
	log := do.MustInvoke[*slog.Logger](i)

	bus := events.NewBus(log.With("component", "events"))
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)

	return &EventBusHandle{Bus: bus, cancel: cancel}, nil
}

// ProvideLibrary provides the library service.
func ProvideLibrary(i do.Injector) (*library.Library, error) {
	store := do.MustInvoke[*StoreHandle](i)
	content := do.MustInvoke[*contentstore.Store](i)
	registry := do.MustInvoke[*provider.Registry](i)
	prefs := do.MustInvoke[*SettingsHandle](i)
	creds := do.MustInvoke[credentials.Sink](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	bus := do.MustInvoke[*EventBusHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	return library.New(library.Options{
		Store:       store.Store,
		Content:     content,
		Providers:   registry,
		Settings:    prefs.Settings,
		Credentials: creds,
		Index:       index.Index,
		Events:      bus.Bus,
		Logger:      log.With("component", "library"),
	})
}

// ProvideImporter provides the backup importer.
func ProvideImporter(i do.Injector) (*importer.Importer, error) {
	lib := do.MustInvoke[*library.Library](i)
	log := do.MustInvoke[*slog.Logger](i)

	return importer.New(lib, importer.DefaultMappings, log.With("component", "importer")), nil
}

// ReindexSearchIfNeeded rebuilds the search index when it is empty but the
// library is not, e.g. after the index was deleted or its mapping changed.
func ReindexSearchIfNeeded(ctx context.Context, i do.Injector) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	lib := do.MustInvoke[*library.Library](i)
	log := do.MustInvoke[*slog.Logger](i)

	docCount, err := index.DocumentCount()
	if err != nil || docCount > 0 {
		return
	}
	works, err := lib.Works(ctx)
	if err != nil || len(works) == 0 {
		return
	}

	log.Info("Search index empty, rebuilding", "works", len(works))
	if err := lib.Reindex(ctx); err != nil {
		log.Error("Search reindex failed", "error", err)
	}
}
