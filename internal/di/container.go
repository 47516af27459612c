// Package di provides dependency injection configuration for mangashelf.
package di

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/di/providers"
	"github.com/mangashelf/mangashelf/internal/importer"
	"github.com/mangashelf/mangashelf/internal/library"
	"github.com/mangashelf/mangashelf/internal/provider"
)

// NewContainer creates and configures the DI container with all providers.
// overrides carries the values set on the command line.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, overrides)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideContentStore)
	do.Provide(injector, providers.ProvideSettings)
	do.Provide(injector, providers.ProvideCredentials)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Network layer
	do.Provide(injector, providers.ProvideSessions)
	do.Provide(injector, providers.ProvideProviders)
	do.Provide(injector, providers.ProvideNetState)

	// Library
	do.Provide(injector, providers.ProvideEventBus)
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideImporter)

	// Workers
	do.Provide(injector, providers.ProvideDownloader)
	do.Provide(injector, providers.ProvideUpdater)
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideContentWatcher)

	return injector
}

// Bootstrap initializes the services every command needs.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*slog.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*contentstore.Store](injector)
	_ = do.MustInvoke[*providers.SettingsHandle](injector)
	_ = do.MustInvoke[credentials.Sink](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.SessionsHandle](injector)
	_ = do.MustInvoke[*provider.Registry](injector)
	_ = do.MustInvoke[*providers.EventBusHandle](injector)
	_ = do.MustInvoke[*library.Library](injector)
	_ = do.MustInvoke[*importer.Importer](injector)

	// Workers register with the library so deletions can pause them.
	_ = do.MustInvoke[*providers.DownloaderHandle](injector)
	_ = do.MustInvoke[*providers.UpdaterHandle](injector)

	providers.ReindexSearchIfNeeded(context.Background(), injector)

	return nil
}

// BootstrapDaemon additionally starts the long-running listeners.
func BootstrapDaemon(injector *do.RootScope) error {
	if err := Bootstrap(injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.NotifierHandle](injector)
	_ = do.MustInvoke[*providers.ContentWatcherHandle](injector)
	return nil
}
