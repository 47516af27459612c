package providers

import (
	"log/slog"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/mangashelf/mangashelf/internal/config"
	"github.com/mangashelf/mangashelf/internal/contentstore"
	"github.com/mangashelf/mangashelf/internal/credentials"
	"github.com/mangashelf/mangashelf/internal/settings"
	"github.com/mangashelf/mangashelf/internal/store/sqlite"
)

// StoreHandle wraps the database with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the sqlite store, migrated to the latest schema.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	store, err := sqlite.Open(cfg.DatabasePath(), log.With("component", "store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database opened", "path", cfg.DatabasePath(), "schema_version", store.SchemaVersion())

	return &StoreHandle{Store: store}, nil
}

// ProvideContentStore provides the on-disk tree of covers and pages.
func ProvideContentStore(i do.Injector) (*contentstore.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	return contentstore.New(cfg.Storage.DataDir, log.With("component", "contentstore"))
}

// SettingsHandle wraps the settings store with shutdown capability.
type SettingsHandle struct {
	*settings.Settings
}

// Shutdown implements do.Shutdownable.
func (h *SettingsHandle) Shutdown() error {
	return h.Close()
}

// ProvideSettings provides the preference store.
func ProvideSettings(i do.Injector) (*SettingsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	s, err := settings.Open(cfg.SettingsPath(), log.With("component", "settings"))
	if err != nil {
		return nil, err
	}
	return &SettingsHandle{Settings: s}, nil
}

// ProvideCredentials provides the credentials sink. Logins are written to
// disk only when the plaintext fallback is enabled.
func ProvideCredentials(i do.Injector) (credentials.Sink, error) {
	cfg := do.MustInvoke[*config.Config](i)
	prefs := do.MustInvoke[*SettingsHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	if prefs.CredentialsPlaintextFallback() {
		path := filepath.Join(cfg.Storage.ConfigDir, "credentials.json")
		log.Info("Storing credentials in plaintext", "path", path)
		return credentials.NewFileSink(path), nil
	}
	return credentials.NewMemory(), nil
}
